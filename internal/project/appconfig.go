package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigDir returns the default directory for application configuration.
// On all platforms this is ~/.cutrun/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cutrun")
}

// DefaultConfigPath returns the default path for the application config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// DefaultDatabasePath returns where the run database lives when the config
// does not name one.
func DefaultDatabasePath() string {
	return filepath.Join(DefaultConfigDir(), "cutrun.db")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// SaveAppConfig persists an AppConfig to the given path, as TOML when the
// path ends in .toml and as JSON otherwise. It creates any missing parent
// directories automatically.
func SaveAppConfig(path string, config model.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadAppConfig reads an AppConfig from the given path.
// If the file does not exist, it returns DefaultAppConfig with no error.
// Fields the file leaves out keep their defaults.
func LoadAppConfig(path string) (model.AppConfig, error) {
	defaults := model.DefaultAppConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaults.DatabasePath = DefaultDatabasePath()
			return defaults, nil
		}
		return model.AppConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	config := defaults
	config.Machines = nil
	if isTOML(path) {
		err = toml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return model.AppConfig{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if config.Machines == nil {
		config.Machines = defaults.Machines
	}
	if config.DatabasePath == "" {
		config.DatabasePath = DefaultDatabasePath()
	}
	config.DatabasePath = ExpandPath(config.DatabasePath)
	return config, nil
}

// ModelLookup reports whether a machine model is known.
type ModelLookup func(machineModel string) bool

// ValidateAppConfig checks the roster and stock settings. Machine IDs must be
// unique and every model must be known to known.
func ValidateAppConfig(config model.AppConfig, known ModelLookup) error {
	var errs []error
	if config.StockLengthMM <= 0 {
		errs = append(errs, fmt.Errorf("stock_length_mm must be positive, got %g", config.StockLengthMM))
	}
	if config.KerfMM < 0 {
		errs = append(errs, fmt.Errorf("kerf_mm must not be negative, got %g", config.KerfMM))
	}
	if config.IdleTimeoutMinutes < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout_minutes must not be negative, got %d", config.IdleTimeoutMinutes))
	}

	seen := make(map[string]bool, len(config.Machines))
	for i, m := range config.Machines {
		switch {
		case m.ID == "":
			errs = append(errs, fmt.Errorf("machine %d: id is required", i+1))
		case seen[m.ID]:
			errs = append(errs, fmt.Errorf("machine %s: duplicate id", m.ID))
		}
		seen[m.ID] = true
		if known != nil && !known(m.Model) {
			errs = append(errs, fmt.Errorf("machine %s: unknown model %q", m.ID, m.Model))
		}
	}
	return errors.Join(errs...)
}
