package model

import "fmt"

// SlotStatus is the lifecycle state of one loaded bar during a run.
//
//	active ──plannedCuts reached, full──▶ completed
//	active ──plannedCuts reached, partial──▶ removable ──operator──▶ removed
//
// completed and removed are terminal for the run.
type SlotStatus int

const (
	SlotActive    SlotStatus = iota + 1 // Receiving strokes
	SlotRemovable                       // Partial bar spent, waiting for the operator to pull it
	SlotRemoved                         // Partial bar pulled off the machine
	SlotCompleted                       // Full bar spent
)

func (s SlotStatus) String() string {
	switch s {
	case SlotActive:
		return "active"
	case SlotRemovable:
		return "removable"
	case SlotRemoved:
		return "removed"
	case SlotCompleted:
		return "completed"
	default:
		return fmt.Sprintf("SlotStatus(%d)", int(s))
	}
}

// Valid reports whether s is one of the four declared states.
func (s SlotStatus) Valid() bool {
	return s >= SlotActive && s <= SlotCompleted
}

// Terminal reports whether no further transition can leave s.
func (s SlotStatus) Terminal() bool {
	return s == SlotRemoved || s == SlotCompleted
}

// MarshalText stores the status by name so persisted snapshots stay readable.
func (s SlotStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid slot status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText rejects anything outside the closed set.
func (s *SlotStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = SlotActive
	case "removable":
		*s = SlotRemovable
	case "removed":
		*s = SlotRemoved
	case "completed":
		*s = SlotCompleted
	default:
		return fmt.Errorf("unknown slot status %q", string(text))
	}
	return nil
}

// ActiveSlot is the tracked state of one physical bar loaded for a run.
type ActiveSlot struct {
	Index       int        `json:"index"`        // Load order, stable for the run
	PlannedCuts int        `json:"planned_cuts"` // Pieces this bar yields before it is spent
	CutsDone    int        `json:"cuts_done"`
	Status      SlotStatus `json:"status"`
	IsPartial   bool       `json:"is_partial"` // PlannedCuts < pieces per bar
}

// Slots is the per-run arena of slots, addressed by position. Position i
// always holds the slot with Index i.
type Slots []ActiveSlot

// Clone returns an independent copy. Engine transitions never alias inputs.
func (s Slots) Clone() Slots {
	if s == nil {
		return nil
	}
	out := make(Slots, len(s))
	copy(out, s)
	return out
}

// At returns the slot at index i and whether it exists.
func (s Slots) At(i int) (ActiveSlot, bool) {
	if i < 0 || i >= len(s) {
		return ActiveSlot{}, false
	}
	return s[i], true
}

// CountByStatus returns how many slots are in status st.
func (s Slots) CountByStatus(st SlotStatus) int {
	n := 0
	for _, slot := range s {
		if slot.Status == st {
			n++
		}
	}
	return n
}
