package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/project"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(app.Config, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprintf(out(cmd), "%s\n%s\n", app.paint(styleDim, "# "+app.ConfigPath), data)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(app.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", app.ConfigPath)
			}
			cfg := model.DefaultAppConfig()
			cfg.DatabasePath = project.DefaultDatabasePath()
			if err := project.SaveAppConfig(app.ConfigPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s %s\n", app.paint(styleGreen, "WROTE"), app.ConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}
