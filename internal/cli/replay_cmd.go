package cli

import (
	"fmt"
	"strconv"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/run"
	"github.com/spf13/cobra"
)

func newReplayCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Apply a recorded YAML event script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := run.LoadScript(args[0])
			if err != nil {
				return err
			}

			steps, err := app.Runs.Replay(cmd.Context(), script, app.Config.Machines, app.Store)

			var rows [][]string
			for i, st := range steps {
				applied := app.paint(styleGreen, "yes")
				if !st.Outcome.Changed {
					applied = app.paint(styleYellow, "ignored")
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					st.Event.Machine,
					st.Event.Action,
					applied,
					strconv.Itoa(st.Outcome.StrokesDone),
					string(st.Outcome.Run.Status),
				})
			}
			fmt.Fprint(out(cmd), app.table([]string{"#", "MACHINE", "ACTION", "APPLIED", "STROKES", "STATUS"}, rows))
			return err
		},
	}
}
