package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/xuri/excelize/v2"
)

var testOpts = Options{StockLengthMM: 12000, KerfMM: 3}

// ─── DetectCSVDelimiter Tests ──────────────────────────────

func TestDetectCSVDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "Mark,Size,PPB,Qty\nB1,15M,4,20\nB2,10M,6,12\n", ','},
		{"semicolon", "Mark;Size;PPB;Qty\nB1;15M;4;20\nB2;10M;6;12\n", ';'},
		{"tab", "Mark\tSize\tPPB\tQty\nB1\t15M\t4\t20\nB2\t10M\t6\t12\n", '\t'},
		{"pipe", "Mark|Size|PPB|Qty\nB1|15M|4|20\nB2|10M|6|12\n", '|'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCSVDelimiter([]byte(tt.data)); got != tt.want {
				t.Errorf("expected %q delimiter, got %q", tt.want, got)
			}
		})
	}
}

// ─── DetectColumns Tests ───────────────────────────────────

func TestDetectColumns_StandardHeaders(t *testing.T) {
	row := []string{"Mark", "Size", "Length", "Pieces per bar", "Quantity", "Completed", "Shape"}
	mapping, isHeader := DetectColumns(row)

	if !isHeader {
		t.Fatal("expected header to be detected")
	}
	want := ColumnMapping{Mark: 0, Size: 1, Length: 2, PiecesPerBar: 3, Quantity: 4, Completed: 5, Shape: 6}
	if mapping != want {
		t.Errorf("expected %+v, got %+v", want, mapping)
	}
}

func TestDetectColumns_CaseInsensitiveAliases(t *testing.T) {
	row := []string{"QTY", "BAR MARK", "PPB", "BAR SIZE"}
	mapping, isHeader := DetectColumns(row)

	if !isHeader {
		t.Fatal("expected header to be detected")
	}
	if mapping.Quantity != 0 || mapping.Mark != 1 || mapping.PiecesPerBar != 2 || mapping.Size != 3 {
		t.Errorf("unexpected mapping %+v", mapping)
	}
	if mapping.Length != -1 || mapping.Completed != -1 || mapping.Shape != -1 {
		t.Errorf("expected absent columns at -1, got %+v", mapping)
	}
}

func TestDetectColumns_NoHeader(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"B1", "15M", "2350", "5", "20"})
	if isHeader {
		t.Error("expected no header")
	}
	if mapping != positionalMapping {
		t.Errorf("expected positional mapping, got %+v", mapping)
	}
}

// ─── CSV Reader Tests ──────────────────────────────────────

func TestImportCSVFromReader_WithHeaders(t *testing.T) {
	data := "Mark,Size,Length,PPB,Qty,Completed,Shape\n" +
		"B201,15m,2350,5,40,10,17\n" +
		"B202,10M,,8,16,,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}

	b201 := result.Items[0]
	if b201.Mark != "B201" || b201.BarSize != model.Bar15M {
		t.Errorf("unexpected item %+v", b201)
	}
	if b201.PiecesPerBar != 5 || b201.TotalPieces != 40 || b201.CompletedPieces != 10 {
		t.Errorf("unexpected counts %+v", b201)
	}
	if b201.CutLengthMM != 2350 || b201.Shape != "17" {
		t.Errorf("unexpected length or shape %+v", b201)
	}
	if result.Items[1].RemainingPieces() != 16 {
		t.Errorf("expected 16 remaining, got %d", result.Items[1].RemainingPieces())
	}
}

func TestImportCSVFromReader_WithoutHeaders(t *testing.T) {
	data := "B1,20M,3000,,12\nB2,25M,,2,6\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[0].PiecesPerBar != 3 {
		t.Errorf("expected 3 pieces per bar derived from 3000 mm, got %d", result.Items[0].PiecesPerBar)
	}
}

func TestImportCSVFromReader_DerivesPiecesPerBar(t *testing.T) {
	data := "Mark,Size,Cut Length,Qty\nC1,15M,2350,20\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d (errors: %v)", len(result.Items), result.Errors)
	}
	if result.Items[0].PiecesPerBar != 5 {
		t.Errorf("expected 5 pieces per bar, got %d", result.Items[0].PiecesPerBar)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "Derived 5 pieces per bar") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected derivation warning, got %v", result.Warnings)
	}
}

func TestImportCSVFromReader_RowErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"missing mark", ",15M,,4,10", "Missing bar mark"},
		{"bad size", "B1,16M,,4,10", "Invalid bar size"},
		{"missing quantity", "B1,15M,,4,", "Missing quantity"},
		{"bad quantity", "B1,15M,,4,ten", "Invalid quantity"},
		{"zero quantity", "B1,15M,,4,0", "must be positive"},
		{"no yield and no length", "B1,15M,,,10", "Needs pieces per bar"},
		{"too long for stock", "B1,15M,13000,,10", "does not fit"},
		{"bad yield", "B1,15M,,-2,10", "Invalid pieces per bar"},
		{"bad completed", "B1,15M,,4,10,x", "Invalid completed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "Mark,Size,Length,PPB,Qty,Completed\n" + tt.row + "\n"
			result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)
			if len(result.Items) != 0 {
				t.Errorf("expected no items, got %+v", result.Items)
			}
			if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestImportCSVFromReader_DuplicateMark(t *testing.T) {
	data := "Mark,Size,PPB,Qty\nB1,15M,4,10\nB1,15M,4,12\nB2,10M,6,6\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(result.Items))
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Duplicate mark B1") {
		t.Errorf("expected duplicate mark error, got %v", result.Errors)
	}
}

func TestImportCSVFromReader_CompletedOverQuantityWarns(t *testing.T) {
	data := "Mark,Size,PPB,Qty,Done\nB1,15M,4,10,12\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if !result.Items[0].Done() {
		t.Error("expected item to be done")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "exceeds quantity") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected overproduction warning, got %v", result.Warnings)
	}
}

func TestImportCSVFromReader_MissingRequiredColumnInHeader(t *testing.T) {
	data := "Mark,Qty\nB1,10\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	for _, col := range []string{"Size", "Pieces per bar or Length"} {
		if !strings.Contains(result.Errors[0], col) {
			t.Errorf("expected %s in missing columns, got %s", col, result.Errors[0])
		}
	}
}

func TestImportCSVFromReader_EmptyRowsAndWhitespace(t *testing.T) {
	data := "Mark,Size,PPB,Qty\n\n  B1 , 15m , 4 , 10 \n,,,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', testOpts)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 1 || result.Items[0].Mark != "B1" {
		t.Errorf("unexpected items %+v", result.Items)
	}
}

func TestImportCSVFromReader_EmptyFile(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader(""), ',', testOpts)
	if len(result.Errors) == 0 {
		t.Error("expected error for empty input")
	}
}

// ─── CSV File Tests ────────────────────────────────────────

func TestImportCSV_SemicolonFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutlist.csv")
	data := "Mark;Size;PPB;Qty\nB1;15M;4;10\nB2;20M;3;9\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	result := Import(path, testOpts)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Warnings[0] != "Detected semicolon delimiter" {
		t.Errorf("expected delimiter warning first, got %v", result.Warnings)
	}
}

func TestImportCSV_FileNotFound(t *testing.T) {
	result := ImportCSV("/nonexistent/cutlist.csv", testOpts)
	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

func TestImportCSV_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	result := ImportCSV(path, testOpts)
	if len(result.Errors) != 1 || result.Errors[0] != "File is empty" {
		t.Errorf("expected empty file error, got %v", result.Errors)
	}
}

// ─── Excel Import Tests ────────────────────────────────────

func createTestExcel(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cutlist.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("failed to create cell reference: %v", err)
			}
			if err := f.SetCellValue(sheet, cellRef, cell); err != nil {
				t.Fatalf("failed to set cell value: %v", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save Excel file: %v", err)
	}
	return path
}

func TestImportExcel_WithHeaders(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Bar Mark", "Bar Size", "Cut Length", "Total Pieces", "Shape Code"},
		{"B301", "20M", 1800, 24, "T1"},
		{"B302", "10M", 900, 50, ""},
	})

	result := Import(path, testOpts)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	b301 := result.Items[0]
	if b301.BarSize != model.Bar20M || b301.TotalPieces != 24 || b301.Shape != "T1" {
		t.Errorf("unexpected item %+v", b301)
	}
	if b301.PiecesPerBar != 6 {
		t.Errorf("expected 6 pieces per bar from 1800 mm, got %d", b301.PiecesPerBar)
	}
}

func TestImportExcel_WithoutHeaders(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"B1", "15M", "", 4, 10},
		{"B2", "10M", "", 6, 12},
	})

	result := ImportExcel(path, testOpts)

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d (errors: %v)", len(result.Items), result.Errors)
	}
}

func TestImportExcel_FileNotFound(t *testing.T) {
	result := ImportExcel("/nonexistent/file.xlsx", testOpts)
	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

func TestImportExcel_InvalidData(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Mark", "Size", "PPB", "Qty"},
		{"B1", "15M", "abc", 2},
	})

	result := ImportExcel(path, testOpts)
	if len(result.Errors) == 0 {
		t.Error("expected error for invalid pieces per bar")
	}
}
