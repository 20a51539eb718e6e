package engine

import (
	"fmt"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// Limiter reports the locked bar limit for a machine model and bar size.
// *capacity.Registry satisfies it.
type Limiter interface {
	MaxBars(machineModel string, size model.BarSize) (int, bool)
}

// LoadOption describes what happens if the operator loads Bars bars.
type LoadOption struct {
	Bars           int
	Feasible       bool
	PartialSlots   int
	PiecesThisRun  int // Planned cuts across all slots
	Overproduction int // Pieces beyond what the mark still needs
	RunsToFinish   int // Runs at this load until the mark is done
}

// CompareLoads evaluates every bar count from 1 up to the machine's locked
// limit for the item's bar size. It never suggests more bars than the
// registry allows; an unsupported pair yields an error.
func CompareLoads(item model.CutPlanItem, machineModel string, limits Limiter) ([]LoadOption, error) {
	limit, ok := limits.MaxBars(machineModel, item.BarSize)
	if !ok {
		return nil, fmt.Errorf("%s cannot run %s", machineModel, item.BarSize)
	}

	options := make([]LoadOption, 0, limit)
	remaining := item.RemainingPieces()

	for bars := 1; bars <= limit; bars++ {
		plan, slots := Plan(item, bars)
		opt := LoadOption{Bars: bars, Feasible: plan.Feasible}
		if plan.Feasible {
			for _, s := range slots {
				opt.PiecesThisRun += s.PlannedCuts
				if s.IsPartial {
					opt.PartialSlots++
				}
			}
			if extra := opt.PiecesThisRun - remaining; extra > 0 {
				opt.Overproduction = extra
			}
			perRun := plan.FullCapacity(bars)
			opt.RunsToFinish = (remaining + perRun - 1) / perRun
		}
		options = append(options, opt)
	}

	return options, nil
}

// Recommend picks the feasible option that finishes in the fewest runs,
// breaking ties by least overproduction and then fewest bars.
func Recommend(options []LoadOption) (LoadOption, bool) {
	var best LoadOption
	found := false
	for _, opt := range options {
		if !opt.Feasible {
			continue
		}
		if !found || better(opt, best) {
			best = opt
			found = true
		}
	}
	return best, found
}

func better(a, b LoadOption) bool {
	if a.RunsToFinish != b.RunsToFinish {
		return a.RunsToFinish < b.RunsToFinish
	}
	if a.Overproduction != b.Overproduction {
		return a.Overproduction < b.Overproduction
	}
	return a.Bars < b.Bars
}
