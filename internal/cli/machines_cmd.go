package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/capacity"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/spf13/cobra"
)

func newMachinesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "machines",
		Short: "List configured machines and their bar limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, m := range app.Config.Machines {
				spec, ok := app.Registry.Lookup(m.Model)
				if !ok {
					rows = append(rows, []string{m.ID, m.Name, m.Model, app.paint(styleRed, "unknown model"), ""})
					continue
				}
				var limits []string
				for _, size := range app.Registry.SupportedSizes(m.Model) {
					n, _ := app.Registry.MaxBars(m.Model, size)
					limits = append(limits, fmt.Sprintf("%s:%d", size, n))
				}
				var blocked []string
				for _, size := range model.BarSizes {
					if spec.Blocked[size] {
						blocked = append(blocked, size.String())
					}
				}
				rows = append(rows, []string{
					m.ID, m.Name, m.Model,
					strings.Join(limits, " "),
					app.paint(styleRed, strings.Join(blocked, " ")),
				})
			}
			fmt.Fprint(out(cmd), app.table([]string{"ID", "NAME", "MODEL", "MAX BARS", "BLOCKED"}, rows))
			return nil
		},
	}
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <machine> <size> <bars>",
		Short: "Check a load against the machine capability table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.machine(args[0])
			if err != nil {
				return err
			}
			size, err := model.ParseBarSize(args[1])
			if err != nil {
				return err
			}
			bars, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid bar count %q: %w", args[2], err)
			}

			if err := app.Registry.Check(m.Model, size, bars); err != nil {
				var capErr *capacity.CapabilityError
				if errors.As(err, &capErr) {
					fmt.Fprintf(out(cmd), "%s %s\n", app.paint(styleRed, "REFUSED"), capErr.Error())
				}
				return err
			}

			limit, _ := app.Registry.MaxBars(m.Model, size)
			fmt.Fprintf(out(cmd), "%s %d x %s on %s (limit %d)\n",
				app.paint(styleGreen, "OK"), bars, size, m.ID, limit)
			return nil
		},
	}
}
