// Package export writes run paperwork: the printable run sheet, bundle tags
// and the spreadsheet run log.
package export

import (
	"fmt"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/go-pdf/fpdf"
)

// statusColor represents an RGB color for a slot status.
type statusColor struct {
	R, G, B int
}

var statusColors = map[model.SlotStatus]statusColor{
	model.SlotActive:    {R: 33, G: 150, B: 243},  // blue
	model.SlotRemovable: {R: 255, G: 152, B: 0},   // orange
	model.SlotRemoved:   {R: 158, G: 158, B: 158}, // grey
	model.SlotCompleted: {R: 76, G: 175, B: 80},   // green
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	contentWidth = pageWidth - marginLeft - marginRight
	barRowHeight = 7.0
)

// ExportRunSheet renders a run as a PDF: plan and progress on the first page
// with one drawn bar per slot, then the audit log.
func ExportRunSheet(path string, run model.Run, item model.CutPlanItem, events []model.RunEvent) error {
	if len(run.Slots) == 0 {
		return fmt.Errorf("run %s has no slots to export", run.ID)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	pdf.AddPage()
	y := renderRunHeader(pdf, run, item)
	y = renderSlotBars(pdf, run, y+4)
	renderSlotTable(pdf, run.Slots, y+6)
	renderFooter(pdf)

	if len(events) > 0 {
		renderEventLog(pdf, run, events)
	}

	return pdf.OutputFileAndClose(path)
}

// renderRunHeader draws the title, plan and progress summary and returns the
// y position below it.
func renderRunHeader(pdf *fpdf.Fpdf, run model.Run, item model.CutPlanItem) float64 {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("Run Sheet: %s  %s on %s (%s)", run.ItemMark, run.BarSize, run.MachineID, run.Model)
	pdf.CellFormat(contentWidth, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+headerHeight, pageWidth-marginRight, marginTop+headerHeight)

	progress := engine.Summarize(run.Slots)
	left := []struct {
		label string
		value string
	}{
		{"Run", run.ID},
		{"Status", string(run.Status)},
		{"Started", run.StartedAt.Format(time.DateTime)},
		{"Pieces per bar", fmt.Sprintf("%d", run.Plan.PiecesPerBar)},
		{"Bars loaded", fmt.Sprintf("%d", len(run.Slots))},
		{"Bars still needed", fmt.Sprintf("%d", run.Plan.TotalBarsNeeded)},
		{"Last bar pieces", fmt.Sprintf("%d", run.Plan.LastBarPieces)},
	}
	right := []struct {
		label string
		value string
	}{
		{"Order quantity", fmt.Sprintf("%d", item.TotalPieces)},
		{"Completed before run", fmt.Sprintf("%d", item.CompletedPieces)},
		{"Strokes done", fmt.Sprintf("%d", progress.StrokesDone)},
		{"Pieces planned", fmt.Sprintf("%d", progress.PiecesPlanned)},
		{"Pieces produced", fmt.Sprintf("%d", progress.PiecesProduced)},
		{"Overproduction", fmt.Sprintf("%d", engine.Overproduction(run.Plan, run.Slots))},
		{"Shape", shapeOrStraight(item.Shape)},
	}

	y := marginTop + headerHeight + 4
	pdf.SetFont("Helvetica", "", 10)
	for i := range left {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(45, 6, left[i].label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(85, 6, left[i].value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)

		pdf.SetXY(marginLeft+contentWidth/2+5, y)
		pdf.CellFormat(45, 6, right[i].label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, right[i].value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 6
	}
	return y
}

// renderSlotBars draws each loaded bar as a strip split into its planned
// cuts, filling the cuts already made in the slot's status color.
func renderSlotBars(pdf *fpdf.Fpdf, run model.Run, y float64) float64 {
	ppb := run.Plan.PiecesPerBar
	if ppb <= 0 {
		return y
	}

	labelW := 25.0
	stripW := contentWidth - labelW - 30
	pieceW := stripW / float64(ppb)

	for _, s := range run.Slots {
		if y > pageHeight-marginBottom-60 {
			break
		}
		col := statusColors[s.Status]

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(marginLeft, y)
		label := fmt.Sprintf("Bar %d", s.Index+1)
		if s.IsPartial {
			label += " (P)"
		}
		pdf.CellFormat(labelW, barRowHeight-1, label, "", 0, "L", false, 0, "")

		for k := 0; k < ppb; k++ {
			x := marginLeft + labelW + float64(k)*pieceW
			switch {
			case k < s.CutsDone:
				pdf.SetFillColor(col.R, col.G, col.B)
				pdf.SetDrawColor(30, 30, 30)
				pdf.Rect(x, y, pieceW, barRowHeight-1, "FD")
			case k < s.PlannedCuts:
				pdf.SetDrawColor(30, 30, 30)
				pdf.Rect(x, y, pieceW, barRowHeight-1, "D")
			default:
				// Drop past the planned cuts of a partial bar
				pdf.SetFillColor(235, 235, 235)
				pdf.SetDrawColor(200, 200, 200)
				pdf.Rect(x, y, pieceW, barRowHeight-1, "FD")
			}
		}

		pdf.SetXY(marginLeft+labelW+stripW+2, y)
		pdf.CellFormat(28, barRowHeight-1, s.Status.String(), "", 0, "L", false, 0, "")
		y += barRowHeight
	}
	return y
}

// renderSlotTable draws the per-slot breakdown table.
func renderSlotTable(pdf *fpdf.Fpdf, slots model.Slots, y float64) {
	colWidths := []float64{20, 35, 35, 35, 40, 30}
	headers := []string{"Slot", "Planned", "Cut", "Left", "Status", "Partial"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 6

	pdf.SetFont("Helvetica", "", 9)
	for i, s := range slots {
		if y > pageHeight-marginBottom-8 {
			break
		}
		partial := ""
		if s.IsPartial {
			partial = "yes"
		}
		rowData := []string{
			fmt.Sprintf("%d", s.Index+1),
			fmt.Sprintf("%d", s.PlannedCuts),
			fmt.Sprintf("%d", s.CutsDone),
			fmt.Sprintf("%d", s.PlannedCuts-s.CutsDone),
			s.Status.String(),
			partial,
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		xPos = marginLeft
		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 6
	}
}

// renderEventLog lists the run's audit events, continuing on new pages.
func renderEventLog(pdf *fpdf.Fpdf, run model.Run, events []model.RunEvent) {
	colWidths := []float64{15, 55, 30, 20, 25, 30}
	headers := []string{"#", "Time", "Action", "Slot", "Applied", "Strokes"}

	var y float64
	newPage := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(marginLeft, marginTop)
		pdf.CellFormat(contentWidth, headerHeight, "Event Log: "+run.ID, "", 0, "L", false, 0, "")
		y = marginTop + headerHeight + 2

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		x := marginLeft
		for i, h := range headers {
			pdf.SetXY(x, y)
			pdf.CellFormat(colWidths[i], 6, h, "1", 0, "C", true, 0, "")
			x += colWidths[i]
		}
		y += 6
		pdf.SetFont("Helvetica", "", 9)
	}

	newPage()
	for _, ev := range events {
		if y > pageHeight-marginBottom-6 {
			newPage()
		}
		slot := "-"
		if ev.Slot >= 0 {
			slot = fmt.Sprintf("%d", ev.Slot+1)
		}
		applied := "yes"
		if !ev.Changed {
			applied = "ignored"
			pdf.SetTextColor(150, 100, 0)
		}
		row := []string{
			fmt.Sprintf("%d", ev.Seq),
			ev.At.Format(time.DateTime),
			string(ev.Action),
			slot,
			applied,
			fmt.Sprintf("%d", ev.StrokesDone),
		}
		x := marginLeft
		for i, cell := range row {
			pdf.SetXY(x, y)
			pdf.CellFormat(colWidths[i], 5, cell, "1", 0, "C", false, 0, "")
			x += colWidths[i]
		}
		pdf.SetTextColor(0, 0, 0)
		y += 5
	}
	renderFooter(pdf)
}

func renderFooter(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(contentWidth, 4, "Generated by cutrun", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func shapeOrStraight(shape string) string {
	if shape == "" {
		return "straight"
	}
	return shape
}
