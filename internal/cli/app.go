// Package cli implements the cutrun command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/capacity"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/run"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/store"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App holds everything the commands operate on.
type App struct {
	Config     model.AppConfig
	ConfigPath string
	Registry   *capacity.Registry
	Store      *store.Store
	Runs       *run.Coordinator
	Logger     *zap.Logger

	// Color enables lipgloss styling; main sets it when stdout is a terminal.
	Color bool
}

// NewRootCmd creates the top-level "cutrun" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "cutrun",
		Short:         "Rebar cut-run planner and stroke tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMachinesCmd(app),
		newCheckCmd(app),
		newPlanCmd(app),
		newAdviseCmd(app),
		newEstimateCmd(app),
		newImportCmd(app),
		newItemsCmd(app),
		newRunCmd(app),
		newReplayCmd(app),
		newExportCmd(app),
		newBackupCmd(app),
		newConfigCmd(app),
	)

	return root
}

// NewLogger builds a JSON production logger at the given level. An empty
// level means info.
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// machine resolves a roster ID from the configuration.
func (a *App) machine(id string) (model.Machine, error) {
	m := a.Config.FindMachine(id)
	if m == nil {
		return model.Machine{}, fmt.Errorf("unknown machine %q (configured: %v)", id, a.Config.MachineIDs())
	}
	return *m, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
