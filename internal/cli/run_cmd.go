package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/run"
	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive cut runs on machines",
	}

	cmd.AddCommand(
		newRunStartCmd(app),
		newRunStrokeCmd(app),
		newRunRemoveCmd(app),
		newRunEventCmd(app, "pause", "Pause the open run on a machine", app.Runs.Pause),
		newRunEventCmd(app, "resume", "Resume a paused run", app.Runs.Resume),
		newRunEventCmd(app, "abort", "Abort the open run without crediting pieces", app.Runs.Abort),
		newRunStatusCmd(app),
		newRunWatchCmd(app),
	)
	return cmd
}

func newRunStartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <machine> <mark> <bars>",
		Short: "Load bars of a mark and open a run",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.machine(args[0])
			if err != nil {
				return err
			}
			item, err := app.Store.Item(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("loading item %s: %w", args[1], err)
			}
			bars, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid bar count %q: %w", args[2], err)
			}

			o, err := app.Runs.Start(cmd.Context(), m, item, bars)
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), app.formatRun(o.Run))
			return nil
		},
	}
}

func newRunStrokeCmd(app *App) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "stroke <machine>",
		Short: "Record machine strokes on the open run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}
			var o run.Outcome
			for i := 0; i < count; i++ {
				var err error
				o, err = app.Runs.Stroke(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if o.AllDone {
					break
				}
			}
			app.printOutcome(cmd, o)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of strokes")
	return cmd
}

func newRunRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <machine> <slot>",
		Short: "Take a spent partial bar off the machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid slot %q: %w", args[1], err)
			}
			o, err := app.Runs.Remove(cmd.Context(), args[0], slot)
			if err != nil {
				return err
			}
			if !o.Changed {
				fmt.Fprintf(out(cmd), "%s slot %d is not removable\n", app.paint(styleYellow, "IGNORED"), slot)
			}
			app.printOutcome(cmd, o)
			return nil
		},
	}
}

func newRunEventCmd(app *App, use, short string, apply func(context.Context, string) (run.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <machine>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := apply(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !o.Changed {
				fmt.Fprintf(out(cmd), "%s run is already %s\n", app.paint(styleYellow, "IGNORED"), o.Run.Status)
			}
			app.printOutcome(cmd, o)
			return nil
		},
	}
}

func newRunStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [machine]",
		Short: "Show open runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := out(cmd)
			if len(args) == 1 {
				r, ok := app.Runs.Current(args[0])
				if !ok {
					return fmt.Errorf("%s: %w", args[0], run.ErrNoRun)
				}
				fmt.Fprint(w, app.formatRun(r))
				return nil
			}

			runs := app.Runs.OpenRuns()
			if len(runs) == 0 {
				fmt.Fprintln(w, app.paint(styleDim, "No open runs"))
				return nil
			}
			for i, r := range runs {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprint(w, app.formatRun(r))
			}
			return nil
		},
	}
}

func newRunWatchCmd(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Pause idle runs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := app.Config.IdleTimeout()
			if threshold <= 0 {
				return errors.New("idle timeout is disabled in the configuration")
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out(cmd), "Watching for runs idle longer than %s\n", threshold)
			err := app.Runs.WatchIdle(ctx, interval, threshold)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often to check for idle runs")
	return cmd
}

func (a *App) printOutcome(cmd *cobra.Command, o run.Outcome) {
	w := out(cmd)
	if o.AllDone && !o.Run.Status.Open() {
		fmt.Fprintf(w, "%s run %s %s after %d strokes\n",
			a.paint(styleGreen, "DONE"), o.Run.ID, o.Run.Status, o.StrokesDone)
		return
	}
	fmt.Fprint(w, a.formatRun(o.Run))
}
