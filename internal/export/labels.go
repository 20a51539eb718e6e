package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// TagInfo holds the data encoded into each bundle tag's QR code. One tag is
// printed per bar that yielded pieces.
type TagInfo struct {
	ItemMark string `json:"mark"`
	BarSize  string `json:"bar_size"`
	Shape    string `json:"shape,omitempty"`
	Pieces   int    `json:"pieces"`
	Slot     int    `json:"slot"`
	RunID    string `json:"run"`
	Machine  string `json:"machine"`
	Partial  bool   `json:"partial"`
}

// Tag layout constants for Avery 5160-compatible labels (3 columns, 10 rows per page).
// Each label cell is approximately 66.7mm x 25.4mm on US Letter paper.
const (
	labelMarginTop  = 12.7 // mm
	labelMarginLeft = 4.8  // mm
	labelWidth      = 66.7 // mm per label
	labelHeight     = 25.4 // mm per label
	labelCols       = 3
	labelRows       = 10
	labelsPerPage   = labelCols * labelRows
	qrSize          = 20.0 // QR code size in mm
	labelPadding    = 2.0  // mm internal padding
)

// ExportBundleTags generates a PDF of QR-coded tags for every bar of the run
// that produced pieces. Removed partial bars get a tag for the pieces they
// yielded before being pulled.
func ExportBundleTags(path string, run model.Run, item model.CutPlanItem) error {
	tags := CollectBundleTags(run, item)
	if len(tags) == 0 {
		return fmt.Errorf("run %s has no cut bars to tag", run.ID)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, tag := range tags {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		posOnPage := i % labelsPerPage
		col := posOnPage % labelCols
		row := posOnPage / labelCols

		x := labelMarginLeft + float64(col)*labelWidth
		y := labelMarginTop + float64(row)*labelHeight

		if err := renderTag(pdf, x, y, tag); err != nil {
			return fmt.Errorf("failed to render tag for slot %d: %w", tag.Slot, err)
		}
	}

	return pdf.OutputFileAndClose(path)
}

// renderTag draws a single tag at the given position.
func renderTag(pdf *fpdf.Fpdf, x, y float64, info TagInfo) error {
	// Light border for cutting guide
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, labelWidth, labelHeight, "D")

	qrData, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal tag info: %w", err)
	}

	qrPNG, err := qrcode.Encode(string(qrData), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	imgName := fmt.Sprintf("qr_%s_%d", info.RunID, info.Slot)
	pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))

	qrX := x + labelWidth - qrSize - labelPadding
	qrY := y + (labelHeight-qrSize)/2
	pdf.ImageOptions(imgName, qrX, qrY, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	textX := x + labelPadding
	textW := labelWidth - qrSize - 3*labelPadding

	// Mark (bold, larger)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(textX, y+labelPadding)

	mark := info.ItemMark
	if pdf.GetStringWidth(mark) > textW {
		for len(mark) > 0 && pdf.GetStringWidth(mark+"...") > textW {
			mark = mark[:len(mark)-1]
		}
		mark += "..."
	}
	pdf.CellFormat(textW, 4.5, mark, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(textX, y+labelPadding+5)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("%s  x%d pcs", info.BarSize, info.Pieces), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(textX, y+labelPadding+9)
	pdf.CellFormat(textW, 3, fmt.Sprintf("%s bar %d", info.Machine, info.Slot+1), "", 1, "L", false, 0, "")

	if info.Shape != "" {
		pdf.SetXY(textX, y+labelPadding+12.5)
		pdf.CellFormat(textW, 3, "Shape "+info.Shape, "", 1, "L", false, 0, "")
	}

	if info.Partial {
		pdf.SetXY(textX, y+labelPadding+16)
		pdf.SetFont("Helvetica", "I", 6)
		pdf.SetTextColor(150, 100, 0)
		pdf.CellFormat(textW, 3, "Partial bar", "", 0, "L", false, 0, "")
	}

	pdf.SetTextColor(0, 0, 0)

	return nil
}

// CollectBundleTags returns one tag per completed or removed slot that has
// cuts, in load order.
func CollectBundleTags(run model.Run, item model.CutPlanItem) []TagInfo {
	var tags []TagInfo
	for _, s := range run.Slots {
		if s.CutsDone == 0 {
			continue
		}
		if s.Status != model.SlotCompleted && s.Status != model.SlotRemoved {
			continue
		}
		tags = append(tags, TagInfo{
			ItemMark: run.ItemMark,
			BarSize:  run.BarSize.String(),
			Shape:    item.Shape,
			Pieces:   s.CutsDone,
			Slot:     s.Index,
			RunID:    run.ID,
			Machine:  run.MachineID,
			Partial:  s.IsPartial,
		})
	}
	return tags
}
