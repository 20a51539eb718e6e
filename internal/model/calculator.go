package model

import "math"

// StockEstimate holds the results of a stock-pull calculation for a cut list.
type StockEstimate struct {
	StockLengthMM float64     `json:"stock_length_mm"` // Length of one stock bar
	KerfMM        float64     `json:"kerf_mm"`         // Blade loss per cut
	Lines         []StockLine `json:"lines"`
	TotalBars     int         `json:"total_bars"`    // Stock bars to pull across all marks
	TotalDropMM   float64     `json:"total_drop_mm"` // Offcut length left on full bars
	TotalPieces   int         `json:"total_pieces"`  // Pieces still owed across all marks
	Unplannable   []string    `json:"unplannable"`   // Marks whose piece does not fit a stock bar
}

// StockLine is the per-mark part of a StockEstimate.
type StockLine struct {
	Mark          string  `json:"mark"`
	BarSize       BarSize `json:"bar_size"`
	PiecesPerBar  int     `json:"pieces_per_bar"`
	Remaining     int     `json:"remaining"`
	BarsNeeded    int     `json:"bars_needed"`
	DropPerBarMM  float64 `json:"drop_per_bar_mm"` // Offcut on each full bar
	LastBarPieces int     `json:"last_bar_pieces"`
}

// PiecesPerBar returns how many pieces of cutLengthMM one stock bar yields.
// Every piece except the last costs one kerf; the last cut leaves the drop.
func PiecesPerBar(stockLengthMM, cutLengthMM, kerfMM float64) int {
	if stockLengthMM <= 0 || cutLengthMM <= 0 || kerfMM < 0 {
		return 0
	}
	if cutLengthMM > stockLengthMM {
		return 0
	}
	return int(math.Floor((stockLengthMM + kerfMM) / (cutLengthMM + kerfMM)))
}

// DropLength returns the offcut left on a bar after cutting n pieces.
func DropLength(stockLengthMM, cutLengthMM, kerfMM float64, n int) float64 {
	if n <= 0 {
		return stockLengthMM
	}
	used := float64(n)*cutLengthMM + float64(n-1)*kerfMM
	if used >= stockLengthMM {
		return 0
	}
	// The final cut separates the drop and consumes one more kerf.
	return math.Max(0, stockLengthMM-used-kerfMM)
}

// EstimateStock computes how many stock bars each mark still needs. Items
// without PiecesPerBar get it derived from their cut length.
func EstimateStock(items []CutPlanItem, stockLengthMM, kerfMM float64) StockEstimate {
	est := StockEstimate{
		StockLengthMM: stockLengthMM,
		KerfMM:        kerfMM,
		Lines:         []StockLine{},
		Unplannable:   []string{},
	}

	for _, item := range items {
		ppb := item.PiecesPerBar
		if ppb <= 0 {
			ppb = PiecesPerBar(stockLengthMM, item.CutLengthMM, kerfMM)
		}
		if ppb <= 0 {
			est.Unplannable = append(est.Unplannable, item.Mark)
			continue
		}

		item.PiecesPerBar = ppb
		plan := NewRunPlan(item, 0)
		line := StockLine{
			Mark:          item.Mark,
			BarSize:       item.BarSize,
			PiecesPerBar:  ppb,
			Remaining:     item.RemainingPieces(),
			BarsNeeded:    plan.TotalBarsNeeded,
			LastBarPieces: plan.LastBarPieces,
		}
		if item.CutLengthMM > 0 {
			line.DropPerBarMM = DropLength(stockLengthMM, item.CutLengthMM, kerfMM, ppb)
			fullBars := plan.TotalBarsNeeded
			if plan.LastBarPieces > 0 {
				fullBars--
			}
			est.TotalDropMM += float64(fullBars) * line.DropPerBarMM
		}

		est.Lines = append(est.Lines, line)
		est.TotalBars += line.BarsNeeded
		est.TotalPieces += line.Remaining
	}

	return est
}
