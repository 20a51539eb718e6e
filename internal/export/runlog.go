package export

import (
	"fmt"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/project"
	"github.com/xuri/excelize/v2"
)

const (
	runsSheet   = "Runs"
	eventsSheet = "Events"
	itemsSheet  = "Items"
)

// ExportRunLog writes runs, their events and the item ledger to an .xlsx
// workbook with one sheet each.
func ExportRunLog(path string, items []model.CutPlanItem, records []project.RunRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", runsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{eventsSheet, itemsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRuns(f, records, header); err != nil {
		return err
	}
	if err := writeEvents(f, records, header); err != nil {
		return err
	}
	if err := writeItems(f, items, header); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save run log: %w", err)
	}
	return nil
}

func writeRuns(f *excelize.File, records []project.RunRecord, style int) error {
	rows := [][]any{{
		"Run", "Machine", "Model", "Mark", "Size", "Status", "Bars",
		"Strokes", "Pieces", "Overproduction", "Committed", "Started", "Finished",
	}}
	for _, rec := range records {
		r := rec.Run
		finished := ""
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format(time.DateTime)
		}
		rows = append(rows, []any{
			r.ID, r.MachineID, r.Model, r.ItemMark, r.BarSize.String(), string(r.Status), len(r.Slots),
			engine.StrokesDone(r.Slots), engine.PiecesProduced(r.Slots), engine.Overproduction(r.Plan, r.Slots),
			r.Committed, r.StartedAt.Format(time.DateTime), finished,
		})
	}
	return writeSheet(f, runsSheet, rows, style)
}

func writeEvents(f *excelize.File, records []project.RunRecord, style int) error {
	rows := [][]any{{"Run", "Seq", "Action", "Slot", "Applied", "Strokes", "At"}}
	for _, rec := range records {
		for _, ev := range rec.Events {
			var slot any = ""
			if ev.Slot >= 0 {
				slot = ev.Slot + 1
			}
			rows = append(rows, []any{
				ev.RunID, ev.Seq, string(ev.Action), slot, ev.Changed, ev.StrokesDone,
				ev.At.Format(time.DateTime),
			})
		}
	}
	return writeSheet(f, eventsSheet, rows, style)
}

func writeItems(f *excelize.File, items []model.CutPlanItem, style int) error {
	rows := [][]any{{"Mark", "Size", "Length (mm)", "Pieces/Bar", "Total", "Completed", "Remaining", "Shape"}}
	for _, it := range items {
		rows = append(rows, []any{
			it.Mark, it.BarSize.String(), it.CutLengthMM, it.PiecesPerBar, it.TotalPieces,
			it.CompletedPieces, it.RemainingPieces(), it.Shape,
		})
	}
	return writeSheet(f, itemsSheet, rows, style)
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, style int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}
