package cli

import (
	"fmt"
	"strconv"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/importer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a cut list from CSV or Excel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := importer.Import(args[0], importer.Options{
				StockLengthMM: app.Config.StockLengthMM,
				KerfMM:        app.Config.KerfMM,
			})

			w := out(cmd)
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "%s %s\n", app.paint(styleYellow, "WARN"), warn)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(w, "%s %s\n", app.paint(styleRed, "ERROR"), e)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("import failed with %d errors", len(result.Errors))
			}

			if dryRun {
				fmt.Fprintf(w, "%d items parsed, nothing saved\n", len(result.Items))
				return nil
			}
			for _, item := range result.Items {
				if err := app.Store.Items.Upsert(cmd.Context(), item); err != nil {
					return fmt.Errorf("saving item %s: %w", item.Mark, err)
				}
			}
			app.Logger.Info("Cut list imported",
				zap.String("file", args[0]),
				zap.Int("items", len(result.Items)),
				zap.Int("warnings", len(result.Warnings)))
			fmt.Fprintf(w, "%s %d items imported\n", app.paint(styleGreen, "OK"), len(result.Items))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without saving")
	return cmd
}

func newItemsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List cut-plan items and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Store.Items.List(cmd.Context())
			if err != nil {
				return err
			}

			var rows [][]string
			for _, it := range items {
				remaining := strconv.Itoa(it.RemainingPieces())
				if it.Done() {
					remaining = app.paint(styleGreen, "done")
				}
				rows = append(rows, []string{
					it.Mark,
					it.BarSize.String(),
					strconv.Itoa(it.PiecesPerBar),
					fmt.Sprintf("%d/%d", it.CompletedPieces, it.TotalPieces),
					remaining,
					it.Shape,
				})
			}
			fmt.Fprint(out(cmd), app.table([]string{"MARK", "SIZE", "PER BAR", "DONE", "REMAINING", "SHAPE"}, rows))
			return nil
		},
	}
}
