// Package engine allocates cut slots for a run and tracks strokes against
// them. Every function here is a pure transformation of an explicit state
// value: inputs are never mutated and the same input always yields the same
// output, so a persisted snapshot can be replayed safely.
package engine

import (
	"errors"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// ErrInfeasiblePlan is returned by callers that refuse to start a run the
// planner rejected (non-positive pieces per bar or bars loaded).
var ErrInfeasiblePlan = errors.New("run plan is infeasible")

// ComputeSlots assigns planned cuts to each of barsLoaded bars.
//
// When the loaded bars cannot exceed what the order still needs, every bar
// gets a full slot. Otherwise bars are walked in load order, each taking
// min(piecesPerBar, piecesLeft); a bar that takes less than a full yield is
// partial. Bars loaded beyond the need still get full slots: the excess is
// cut as work-in-progress stock, not dropped.
func ComputeSlots(plan model.RunPlan, barsLoaded int) (bool, model.Slots) {
	ppb := plan.PiecesPerBar
	if ppb <= 0 || barsLoaded <= 0 {
		return false, nil
	}
	if !wellFormed(plan) {
		return false, nil
	}

	totalRemaining := plan.TotalRemaining()
	slots := make(model.Slots, barsLoaded)

	if plan.FullCapacity(barsLoaded) <= totalRemaining {
		for i := range slots {
			slots[i] = newSlot(i, ppb, ppb)
		}
		return true, slots
	}

	piecesLeft := totalRemaining
	for i := range slots {
		if piecesLeft <= 0 {
			slots[i] = newSlot(i, ppb, ppb)
			continue
		}
		cuts := min(ppb, piecesLeft)
		slots[i] = newSlot(i, cuts, ppb)
		piecesLeft -= cuts
	}
	return true, slots
}

// Plan derives a run plan for item with barsLoaded bars and returns it with
// its slots. The returned plan's Feasible flag is the planner's verdict.
func Plan(item model.CutPlanItem, barsLoaded int) (model.RunPlan, model.Slots) {
	plan := model.NewRunPlan(item, barsLoaded)
	feasible, slots := ComputeSlots(plan, barsLoaded)
	plan.Feasible = feasible
	return plan, slots
}

// wellFormed rejects plans whose counts could not have come from a real
// order: negative counts, or a last-bar remainder that is not a remainder.
func wellFormed(plan model.RunPlan) bool {
	if plan.TotalBarsNeeded < 0 || plan.LastBarPieces < 0 {
		return false
	}
	if plan.LastBarPieces >= plan.PiecesPerBar {
		return false
	}
	return plan.LastBarPieces == 0 || plan.TotalBarsNeeded > 0
}

func newSlot(index, plannedCuts, piecesPerBar int) model.ActiveSlot {
	return model.ActiveSlot{
		Index:       index,
		PlannedCuts: plannedCuts,
		Status:      model.SlotActive,
		IsPartial:   plannedCuts < piecesPerBar,
	}
}
