package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/export"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/project"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write run sheets, bundle tags and the run log",
	}
	cmd.AddCommand(newExportRunCmd(app), newExportLogCmd(app))
	return cmd
}

func newExportRunCmd(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Write the run sheet and bundle tags PDFs for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, events, err := app.Store.History(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading run %s: %w", args[0], err)
			}
			item, err := app.Store.Item(ctx, r.ItemMark)
			if err != nil {
				return fmt.Errorf("loading item %s: %w", r.ItemMark, err)
			}

			short := r.ID
			if len(short) > 8 {
				short = short[:8]
			}
			sheetPath := filepath.Join(dir, fmt.Sprintf("run-%s-%s.pdf", r.ItemMark, short))
			tagsPath := filepath.Join(dir, fmt.Sprintf("tags-%s-%s.pdf", r.ItemMark, short))
			withTags := len(export.CollectBundleTags(r, item)) > 0

			var g errgroup.Group
			g.Go(func() error {
				return export.ExportRunSheet(sheetPath, r, item, events)
			})
			if withTags {
				g.Go(func() error {
					return export.ExportBundleTags(tagsPath, r, item)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintf(w, "%s %s\n", app.paint(styleGreen, "WROTE"), sheetPath)
			if withTags {
				fmt.Fprintf(w, "%s %s\n", app.paint(styleGreen, "WROTE"), tagsPath)
			} else {
				fmt.Fprintln(w, app.paint(styleDim, "No finished bars to tag"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	return cmd
}

func newExportLogCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "log <file.xlsx>",
		Short: "Write every run, event and item to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, records, err := app.loadAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.ExportRunLog(args[0], items, records); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s %s (%d runs)\n", app.paint(styleGreen, "WROTE"), args[0], len(records))
			return nil
		},
	}
}

func newBackupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON snapshot of items and runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file.json>",
		Short: "Write a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, records, err := app.loadAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := project.ExportSnapshot(args[0], project.NewSnapshot(app.Config, items, records)); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s %s (%d items, %d runs)\n",
				app.paint(styleGreen, "WROTE"), args[0], len(items), len(records))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Load a snapshot; runs already present are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := project.ImportSnapshot(args[0])
			if err != nil {
				return err
			}
			added, skipped, err := app.restoreSnapshot(cmd.Context(), snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s %d items, %d runs imported, %d runs skipped\n",
				app.paint(styleGreen, "OK"), len(snap.Items), added, skipped)
			return nil
		},
	})

	return cmd
}

// loadAll reads every item and every run with its events.
func (a *App) loadAll(ctx context.Context) ([]model.CutPlanItem, []project.RunRecord, error) {
	items, err := a.Store.Items.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	runs, err := a.Store.Runs.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	records := make([]project.RunRecord, 0, len(runs))
	for _, r := range runs {
		events, err := a.Store.Events.ListByRun(ctx, r.ID)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, project.RunRecord{Run: r, Events: events})
	}
	return items, records, nil
}

func (a *App) restoreSnapshot(ctx context.Context, snap project.Snapshot) (added, skipped int, err error) {
	for _, item := range snap.Items {
		if err := a.Store.Items.Upsert(ctx, item); err != nil {
			return added, skipped, fmt.Errorf("saving item %s: %w", item.Mark, err)
		}
	}
	for _, rec := range snap.Runs {
		_, err := a.Store.Runs.Get(ctx, rec.Run.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return added, skipped, err
		}
		if err := a.Store.Record(ctx, rec.Run, rec.Events...); err != nil {
			return added, skipped, fmt.Errorf("restoring run %s: %w", rec.Run.ID, err)
		}
		added++
	}
	a.Logger.Info("Snapshot imported",
		zap.Int("items", len(snap.Items)),
		zap.Int("runs", added),
		zap.Int("skipped", skipped))
	return added, skipped, nil
}
