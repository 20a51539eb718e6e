package model

import "time"

// AppConfig holds shop-level preferences, the machine roster and defaults
// used when planning runs.
type AppConfig struct {
	DatabasePath string `json:"database_path" toml:"database_path"`
	LogLevel     string `json:"log_level" toml:"log_level"` // "debug", "info", "warn", "error"
	Operator     string `json:"operator" toml:"operator"`

	// Stock defaults used when a cut list has lengths but no pieces-per-bar
	StockLengthMM float64 `json:"stock_length_mm" toml:"stock_length_mm"`
	KerfMM        float64 `json:"kerf_mm" toml:"kerf_mm"`

	// Runs with no event for this long are paused automatically; 0 disables
	IdleTimeoutMinutes int `json:"idle_timeout_minutes" toml:"idle_timeout_minutes"`

	Machines []Machine `json:"machines" toml:"machines"`
}

// DefaultAppConfig returns an AppConfig populated with sensible defaults:
// 12 m stock, a 3 mm blade and one of each common machine type.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		LogLevel:           "info",
		StockLengthMM:      12000,
		KerfMM:             3,
		IdleTimeoutMinutes: 30,
		Machines: []Machine{
			{ID: "shear-1", Name: "Shear 1", Model: "SHEAR-CM60"},
			{ID: "bender-1", Name: "Bender 1", Model: "BENDER-BP40"},
		},
	}
}

// IdleTimeout returns the idle auto-pause threshold as a duration.
func (c AppConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// FindMachine returns a pointer to the machine with the given ID, or nil.
func (c *AppConfig) FindMachine(id string) *Machine {
	for i := range c.Machines {
		if c.Machines[i].ID == id {
			return &c.Machines[i]
		}
	}
	return nil
}

// MachineIDs returns the roster IDs in configuration order.
func (c *AppConfig) MachineIDs() []string {
	ids := make([]string, len(c.Machines))
	for i, m := range c.Machines {
		ids[i] = m.ID
	}
	return ids
}
