package engine

import "github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"

// RecordStroke applies one stroke to every active slot: each gains exactly one
// cut and then completes (full bar) or becomes removable (partial bar) once it
// reaches its planned cuts. Slots in any other state are untouched.
//
// With no active slot the stroke is ignored and the input is returned as is
// with changed=false, so a bounced pedal cannot push counts past the plan.
func RecordStroke(slots model.Slots) (model.Slots, bool) {
	if slots.CountByStatus(model.SlotActive) == 0 {
		return slots, false
	}

	next := slots.Clone()
	for i := range next {
		switch next[i].Status {
		case model.SlotActive:
			next[i].CutsDone++
			if next[i].CutsDone >= next[i].PlannedCuts {
				if next[i].IsPartial {
					next[i].Status = model.SlotRemovable
				} else {
					next[i].Status = model.SlotCompleted
				}
			}
		case model.SlotRemovable, model.SlotRemoved, model.SlotCompleted:
			// Not receiving strokes.
		}
	}
	return next, true
}

// RemoveBar marks a removable slot as removed. Any other request (unknown
// index, a slot still cutting, one already removed or completed) is ignored
// and returns the input with changed=false.
func RemoveBar(slots model.Slots, index int) (model.Slots, bool) {
	slot, ok := slots.At(index)
	if !ok {
		return slots, false
	}

	switch slot.Status {
	case model.SlotRemovable:
		next := slots.Clone()
		next[index].Status = model.SlotRemoved
		return next, true
	case model.SlotActive, model.SlotRemoved, model.SlotCompleted:
		return slots, false
	default:
		return slots, false
	}
}

// StrokesDone is the number of strokes the run has taken: the highest cut
// count of any slot. A removed partial bar freezes below the run total, so
// no single slot (slot 0 included) can stand in for it, and neither can a
// sum or an average.
func StrokesDone(slots model.Slots) int {
	strokes := 0
	for _, s := range slots {
		if s.CutsDone > strokes {
			strokes = s.CutsDone
		}
	}
	return strokes
}

// AllDone reports whether every slot is completed or removed.
func AllDone(slots model.Slots) bool {
	for _, s := range slots {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// PiecesProduced is the total number of pieces cut across all bars.
func PiecesProduced(slots model.Slots) int {
	total := 0
	for _, s := range slots {
		total += s.CutsDone
	}
	return total
}

// Progress summarizes a slot arena for display and persistence.
type Progress struct {
	Slots          int  `json:"slots"`
	Active         int  `json:"active"`
	Removable      int  `json:"removable"`
	Removed        int  `json:"removed"`
	Completed      int  `json:"completed"`
	StrokesDone    int  `json:"strokes_done"`
	PiecesPlanned  int  `json:"pieces_planned"`
	PiecesProduced int  `json:"pieces_produced"`
	AllDone        bool `json:"all_done"`
}

// Summarize computes a Progress snapshot for slots.
func Summarize(slots model.Slots) Progress {
	p := Progress{
		Slots:          len(slots),
		Active:         slots.CountByStatus(model.SlotActive),
		Removable:      slots.CountByStatus(model.SlotRemovable),
		Removed:        slots.CountByStatus(model.SlotRemoved),
		Completed:      slots.CountByStatus(model.SlotCompleted),
		StrokesDone:    StrokesDone(slots),
		PiecesProduced: PiecesProduced(slots),
		AllDone:        AllDone(slots),
	}
	for _, s := range slots {
		p.PiecesPlanned += s.PlannedCuts
	}
	return p
}

// Overproduction returns the pieces produced beyond what the plan needed.
func Overproduction(plan model.RunPlan, slots model.Slots) int {
	extra := PiecesProduced(slots) - plan.TotalRemaining()
	if extra < 0 {
		return 0
	}
	return extra
}
