// cutrun tracks rebar cut runs: it checks loads against the machine
// capability table, plans slots for each loaded bar, counts strokes and
// credits finished pieces back to the cut list.
//
// Build:
//   go build -o cutrun ./cmd/cutrun
//
// Configuration is read from ~/.cutrun/config.json, or from the file named
// by CUTRUN_CONFIG (JSON, or TOML when the name ends in .toml).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/capacity"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/cli"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/project"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/run"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/store"
	"go.uber.org/zap"
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	configPath := os.Getenv("CUTRUN_CONFIG")
	if configPath == "" {
		configPath = project.DefaultConfigPath()
	}
	configPath = project.ExpandPath(configPath)

	cfg, err := project.LoadAppConfig(configPath)
	if err != nil {
		return err
	}

	registry := capacity.Default()
	if err := project.ValidateAppConfig(cfg, func(m string) bool {
		_, ok := registry.Lookup(m)
		return ok
	}); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", configPath, err)
	}

	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	coord := run.New(registry, st, run.WithLogger(logger))
	if _, err := coord.Restore(ctx); err != nil {
		return err
	}
	paused, err := coord.PauseIdle(ctx, time.Now(), cfg.IdleTimeout())
	if err != nil {
		return err
	}
	if len(paused) > 0 {
		logger.Info("Idle runs paused on startup", zap.Strings("machines", paused))
	}

	app := &cli.App{
		Config:     cfg,
		ConfigPath: configPath,
		Registry:   registry,
		Store:      st,
		Runs:       coord,
		Logger:     logger,
		Color:      cli.IsTerminal(os.Stdout),
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
