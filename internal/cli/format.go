package cli

import (
	"fmt"
	"strings"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorBlue   = lipgloss.Color("#83a598")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")
)

var (
	styleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	styleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	styleRed    = lipgloss.NewStyle().Foreground(colorRed)
	styleBlue   = lipgloss.NewStyle().Foreground(colorBlue)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
)

// paint renders text in style when color output is enabled.
func (a *App) paint(style lipgloss.Style, text string) string {
	if !a.Color {
		return text
	}
	return style.Render(text)
}

func (a *App) header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", a.paint(styleHeader, upper), a.paint(styleDim, line))
}

func slotStyle(st model.SlotStatus) lipgloss.Style {
	switch st {
	case model.SlotActive:
		return styleBlue
	case model.SlotRemovable:
		return styleYellow
	case model.SlotCompleted:
		return styleGreen
	default:
		return styleDim
	}
}

func runStyle(st model.RunStatus) lipgloss.Style {
	switch st {
	case model.RunActive:
		return styleGreen
	case model.RunPaused:
		return styleYellow
	case model.RunAborted:
		return styleRed
	default:
		return styleDim
	}
}

// table renders an aligned table with a header separator line. Widths are
// measured on visible text so styled cells line up.
func (a *App) table(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	const colGap = 2

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := widths[i] - lipgloss.Width(cell)
			if style != nil {
				cell = a.paint(*style, cell)
			}
			b.WriteString(cell)
			if i < len(headers)-1 {
				b.WriteString(strings.Repeat(" ", pad+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, &styleHeader)
	for i, w := range widths {
		b.WriteString(a.paint(styleDim, strings.Repeat("─", w)))
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}

// formatRun renders a run with its slot arena and progress.
func (a *App) formatRun(r model.Run) string {
	var b strings.Builder
	p := engine.Summarize(r.Slots)

	fmt.Fprintf(&b, "%s\n", a.header(fmt.Sprintf("%s  %s %s", r.MachineID, r.ItemMark, r.BarSize)))
	fmt.Fprintf(&b, "Run:       %s\n", r.ID)
	fmt.Fprintf(&b, "Status:    %s\n", a.paint(runStyle(r.Status), string(r.Status)))
	fmt.Fprintf(&b, "Started:   %s\n", humanize.Time(r.StartedAt))
	fmt.Fprintf(&b, "Strokes:   %d\n", p.StrokesDone)
	fmt.Fprintf(&b, "Pieces:    %d of %d planned\n", p.PiecesProduced, p.PiecesPlanned)
	if extra := engine.Overproduction(r.Plan, r.Slots); extra > 0 {
		fmt.Fprintf(&b, "Overrun:   %s\n", a.paint(styleYellow, fmt.Sprintf("%d pieces", extra)))
	}
	b.WriteString("\n")
	b.WriteString(a.slotTable(r.Slots))
	return b.String()
}

func (a *App) slotTable(slots model.Slots) string {
	rows := make([][]string, 0, len(slots))
	for _, s := range slots {
		partial := ""
		if s.IsPartial {
			partial = "partial"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Index),
			fmt.Sprintf("%d/%d", s.CutsDone, s.PlannedCuts),
			a.paint(slotStyle(s.Status), s.Status.String()),
			partial,
		})
	}
	return a.table([]string{"SLOT", "CUTS", "STATUS", ""}, rows)
}
