package cli

import (
	"strings"
	"testing"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestTable_AlignsColumns(t *testing.T) {
	app := &App{}
	got := app.table([]string{"A", "LONGER"}, [][]string{{"wide cell", "x"}, {"y"}})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "A          LONGER", lines[0])
	assert.Equal(t, "─────────  ──────", lines[1])
	assert.Equal(t, "wide cell  x", lines[2])
	assert.Equal(t, "y          ", lines[3])
}

func TestTable_NoHeaders(t *testing.T) {
	app := &App{}
	assert.Empty(t, app.table(nil, [][]string{{"a"}}))
}

func TestPaint_PlainWithoutColor(t *testing.T) {
	app := &App{}
	assert.Equal(t, "done", app.paint(styleGreen, "done"))
	assert.Equal(t, "DONE\n────", app.header("done"))
}

func TestSlotTable(t *testing.T) {
	app := &App{}
	slots := model.Slots{
		{Index: 0, PlannedCuts: 4, CutsDone: 4, Status: model.SlotCompleted},
		{Index: 1, PlannedCuts: 2, CutsDone: 2, Status: model.SlotRemovable, IsPartial: true},
	}
	got := app.slotTable(slots)
	assert.Contains(t, got, "4/4")
	assert.Contains(t, got, "completed")
	assert.Contains(t, got, "removable")
	assert.Contains(t, got, "partial")
}
