package cli

import (
	"fmt"
	"strconv"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPlanCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <mark> <bars>",
		Short: "Show the slot plan for loading bars of a mark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.Store.Item(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading item %s: %w", args[0], err)
			}
			bars, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid bar count %q: %w", args[1], err)
			}

			plan, slots := engine.Plan(item, bars)
			w := out(cmd)
			fmt.Fprintln(w, app.header(fmt.Sprintf("%s %s", item.Mark, item.BarSize)))
			fmt.Fprintf(w, "Remaining:       %d of %d pieces\n", item.RemainingPieces(), item.TotalPieces)
			fmt.Fprintf(w, "Pieces per bar:  %d\n", plan.PiecesPerBar)
			fmt.Fprintf(w, "Bars needed:     %d\n", plan.TotalBarsNeeded)
			fmt.Fprintf(w, "Last bar pieces: %d\n", plan.LastBarPieces)
			if !plan.Feasible {
				fmt.Fprintln(w, app.paint(styleRed, "Infeasible: check bar count and pieces per bar"))
				return engine.ErrInfeasiblePlan
			}
			fmt.Fprintln(w)
			fmt.Fprint(w, app.slotTable(slots))
			return nil
		},
	}
}

func newAdviseCmd(app *App) *cobra.Command {
	var machineID string

	cmd := &cobra.Command{
		Use:   "advise <mark>",
		Short: "Compare every allowed load for a mark on a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.machine(machineID)
			if err != nil {
				return err
			}
			item, err := app.Store.Item(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading item %s: %w", args[0], err)
			}

			options, err := engine.CompareLoads(item, m.Model, app.Registry)
			if err != nil {
				return err
			}
			best, ok := engine.Recommend(options)

			var rows [][]string
			for _, opt := range options {
				if !opt.Feasible {
					rows = append(rows, []string{strconv.Itoa(opt.Bars), app.paint(styleRed, "infeasible"), "", "", "", ""})
					continue
				}
				mark := ""
				if ok && opt.Bars == best.Bars {
					mark = app.paint(styleGreen, "recommended")
				}
				over := strconv.Itoa(opt.Overproduction)
				if opt.Overproduction > 0 {
					over = app.paint(styleYellow, over)
				}
				rows = append(rows, []string{
					strconv.Itoa(opt.Bars),
					strconv.Itoa(opt.PiecesThisRun),
					strconv.Itoa(opt.PartialSlots),
					over,
					strconv.Itoa(opt.RunsToFinish),
					mark,
				})
			}

			w := out(cmd)
			fmt.Fprintln(w, app.header(fmt.Sprintf("%s %s on %s", item.Mark, item.BarSize, m.ID)))
			fmt.Fprint(w, app.table([]string{"BARS", "PIECES", "PARTIAL", "OVERRUN", "RUNS", ""}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&machineID, "machine", "m", "", "Machine ID from the roster")
	_ = cmd.MarkFlagRequired("machine")
	return cmd
}

func newEstimateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Estimate stock bars to pull for every open mark",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Store.Items.List(cmd.Context())
			if err != nil {
				return err
			}
			var open []model.CutPlanItem
			for _, it := range items {
				if !it.Done() {
					open = append(open, it)
				}
			}

			est := model.EstimateStock(open, app.Config.StockLengthMM, app.Config.KerfMM)
			var rows [][]string
			for _, l := range est.Lines {
				rows = append(rows, []string{
					l.Mark, l.BarSize.String(),
					strconv.Itoa(l.PiecesPerBar),
					humanize.Comma(int64(l.Remaining)),
					humanize.Comma(int64(l.BarsNeeded)),
					humanize.CommafWithDigits(l.DropPerBarMM, 0),
				})
			}

			w := out(cmd)
			fmt.Fprint(w, app.table([]string{"MARK", "SIZE", "PER BAR", "REMAINING", "BARS", "DROP MM"}, rows))
			fmt.Fprintf(w, "\nTotal: %s bars for %s pieces, %s mm drop\n",
				humanize.Comma(int64(est.TotalBars)),
				humanize.Comma(int64(est.TotalPieces)),
				humanize.CommafWithDigits(est.TotalDropMM, 0))
			for _, mark := range est.Unplannable {
				fmt.Fprintf(w, "%s %s does not fit a %s mm bar\n",
					app.paint(styleYellow, "WARN"), mark, humanize.CommafWithDigits(app.Config.StockLengthMM, 0))
			}
			return nil
		},
	}
}
