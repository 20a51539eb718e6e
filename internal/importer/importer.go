// Package importer reads cut lists from CSV and Excel files. It supports
// automatic delimiter detection, flexible column mapping, and
// case-insensitive header recognition.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/xuri/excelize/v2"
)

// ImportResult holds the results of an import operation.
type ImportResult struct {
	Items    []model.CutPlanItem
	Errors   []string
	Warnings []string
}

// Options supplies the stock used to derive pieces per bar for rows that
// give a cut length but no yield.
type Options struct {
	StockLengthMM float64
	KerfMM        float64
}

// ColumnMapping maps semantic column roles to their indices in the data.
type ColumnMapping struct {
	Mark         int
	Size         int
	Length       int
	PiecesPerBar int
	Quantity     int
	Completed    int
	Shape        int
}

// headerAliases maps canonical column names to their accepted aliases (all lowercase).
var headerAliases = map[string][]string{
	"mark":      {"mark", "bar mark", "label", "item", "id"},
	"size":      {"size", "bar size", "bar", "dia", "diameter"},
	"length":    {"length", "cut length", "len", "length mm", "cut length mm", "l"},
	"ppb":       {"pieces per bar", "ppb", "pcs/bar", "per bar", "yield"},
	"quantity":  {"quantity", "qty", "total", "total pieces", "pieces", "pcs", "count"},
	"completed": {"completed", "done", "cut", "completed pieces"},
	"shape":     {"shape", "shape code", "bend", "bend shape"},
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// positionalMapping is used for files without a header row:
// Mark, Size, Length, PiecesPerBar, Quantity, Completed, Shape.
var positionalMapping = ColumnMapping{
	Mark:         0,
	Size:         1,
	Length:       2,
	PiecesPerBar: 3,
	Quantity:     4,
	Completed:    5,
	Shape:        6,
}

// DetectColumns examines a header row and returns a ColumnMapping.
// It performs case-insensitive matching against known aliases for each column role.
// Returns the mapping and true if a header was detected, or the positional
// mapping and false if no header was found.
func DetectColumns(row []string) (ColumnMapping, bool) {
	mapping := ColumnMapping{-1, -1, -1, -1, -1, -1, -1}
	fields := map[string]*int{
		"mark":      &mapping.Mark,
		"size":      &mapping.Size,
		"length":    &mapping.Length,
		"ppb":       &mapping.PiecesPerBar,
		"quantity":  &mapping.Quantity,
		"completed": &mapping.Completed,
		"shape":     &mapping.Shape,
	}

	isHeader := false
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized != alias {
					continue
				}
				isHeader = true
				if idx := fields[role]; *idx == -1 {
					*idx = i
				}
			}
		}
	}

	if !isHeader {
		return positionalMapping, false
	}
	return mapping, true
}

// getCell safely retrieves a cell value from a row by column index.
// Returns empty string if the index is out of range or negative.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseRow extracts a CutPlanItem from a row using the given column mapping.
// Returns the item, any error message, and any warning messages.
func parseRow(row []string, mapping ColumnMapping, rowLabel string, opts Options) (model.CutPlanItem, string, []string) {
	var warnings []string

	mark := getCell(row, mapping.Mark)
	if mark == "" {
		return model.CutPlanItem{}, fmt.Sprintf("%s: Missing bar mark", rowLabel), nil
	}

	sizeStr := getCell(row, mapping.Size)
	size, err := model.ParseBarSize(sizeStr)
	if err != nil {
		return model.CutPlanItem{}, fmt.Sprintf("%s: Invalid bar size '%s'", rowLabel, sizeStr), nil
	}

	qtyStr := getCell(row, mapping.Quantity)
	if qtyStr == "" {
		return model.CutPlanItem{}, fmt.Sprintf("%s: Missing quantity value", rowLabel), nil
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil {
		return model.CutPlanItem{}, fmt.Sprintf("%s: Invalid quantity '%s'", rowLabel, qtyStr), nil
	}
	if qty <= 0 {
		return model.CutPlanItem{}, fmt.Sprintf("%s: Quantity must be positive", rowLabel), nil
	}

	var length float64
	if s := getCell(row, mapping.Length); s != "" {
		length, err = strconv.ParseFloat(s, 64)
		if err != nil || length < 0 {
			return model.CutPlanItem{}, fmt.Sprintf("%s: Invalid length '%s'", rowLabel, s), nil
		}
	}

	var ppb int
	if s := getCell(row, mapping.PiecesPerBar); s != "" {
		ppb, err = strconv.Atoi(s)
		if err != nil || ppb < 0 {
			return model.CutPlanItem{}, fmt.Sprintf("%s: Invalid pieces per bar '%s'", rowLabel, s), nil
		}
	}
	if ppb == 0 {
		if length <= 0 {
			return model.CutPlanItem{}, fmt.Sprintf("%s: Needs pieces per bar or a cut length", rowLabel), nil
		}
		ppb = model.PiecesPerBar(opts.StockLengthMM, length, opts.KerfMM)
		if ppb <= 0 {
			return model.CutPlanItem{}, fmt.Sprintf("%s: Cut length %.0f mm does not fit %.0f mm stock", rowLabel, length, opts.StockLengthMM), nil
		}
		warnings = append(warnings, fmt.Sprintf("%s: Derived %d pieces per bar from %.0f mm length", rowLabel, ppb, length))
	}

	item := model.NewCutPlanItem(mark, size, ppb, qty)
	item.CutLengthMM = length
	item.Shape = getCell(row, mapping.Shape)

	if s := getCell(row, mapping.Completed); s != "" {
		done, err := strconv.Atoi(s)
		if err != nil || done < 0 {
			return model.CutPlanItem{}, fmt.Sprintf("%s: Invalid completed count '%s'", rowLabel, s), nil
		}
		if done > qty {
			warnings = append(warnings, fmt.Sprintf("%s: Completed %d exceeds quantity %d", rowLabel, done, qty))
		}
		item.CompletedPieces = done
	}

	return item, "", warnings
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Import reads a cut list, choosing Excel or CSV by file extension.
func Import(path string, opts Options) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx":
		return ImportExcel(path, opts)
	default:
		return ImportCSV(path, opts)
	}
}

// ImportCSV imports cut-plan items from a CSV file.
// It automatically detects the delimiter and maps columns by header names.
func ImportCSV(path string, opts Options) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	var warnings []string
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		warnings = append(warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	records, err := readCSV(bytes.NewReader(data), delimiter)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}
	if len(records) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	return importFromRows(records, "Line", warnings, opts)
}

// ImportCSVFromReader imports cut-plan items from a CSV reader with a known delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune, opts Options) ImportResult {
	result := ImportResult{}

	records, err := readCSV(reader, delimiter)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}
	if len(records) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	return importFromRows(records, "Line", nil, opts)
}

func readCSV(r io.Reader, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// ImportExcel imports cut-plan items from the first sheet of an Excel file.
func ImportExcel(path string, opts Options) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "Sheet is empty")
		return result
	}

	return importFromRows(rows, "Row", nil, opts)
}

// importFromRows is the shared import logic for both CSV and Excel data.
// It detects headers, maps columns, and parses each row into items.
func importFromRows(rows [][]string, rowPrefix string, initialWarnings []string, opts Options) ImportResult {
	result := ImportResult{
		Warnings: initialWarnings,
	}

	mapping, hasHeader := DetectColumns(rows[0])
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")

		missing := []string{}
		if mapping.Mark == -1 {
			missing = append(missing, "Mark")
		}
		if mapping.Size == -1 {
			missing = append(missing, "Size")
		}
		if mapping.Quantity == -1 {
			missing = append(missing, "Quantity")
		}
		if mapping.PiecesPerBar == -1 && mapping.Length == -1 {
			missing = append(missing, "Pieces per bar or Length")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	}

	seen := make(map[string]string)
	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}

		rowLabel := fmt.Sprintf("%s %d", rowPrefix, i+1)
		item, errMsg, warnings := parseRow(row, mapping, rowLabel, opts)
		if errMsg != "" {
			result.Errors = append(result.Errors, errMsg)
			continue
		}
		if first, dup := seen[item.Mark]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: Duplicate mark %s (first on %s)", rowLabel, item.Mark, first))
			continue
		}
		seen[item.Mark] = rowLabel
		result.Warnings = append(result.Warnings, warnings...)
		result.Items = append(result.Items, item)
	}

	return result
}
