package model

import (
	"time"

	"github.com/google/uuid"
)

// MachineKind distinguishes shears from benders.
type MachineKind string

const (
	KindCutter MachineKind = "cutter"
	KindBender MachineKind = "bender"
)

// MachineSpec describes what one machine model may physically process.
// A size in Blocked never has a MaxBars entry, and a size missing from
// MaxBars is not allowed at all.
type MachineSpec struct {
	Model   string           `json:"model"`
	Kind    MachineKind      `json:"kind"`
	MaxBars map[BarSize]int  `json:"max_bars"` // Locked per-run bar limit
	Blocked map[BarSize]bool `json:"blocked"`  // Sizes refused regardless of count
}

// Machine is one physical machine on the shop floor.
type Machine struct {
	ID    string `json:"id" toml:"id"`
	Name  string `json:"name" toml:"name"`
	Model string `json:"model" toml:"model"`
}

// CutPlanItem is one bar mark on a cut list: a quantity of identical pieces
// cut (and optionally bent) from stock bars of one size.
type CutPlanItem struct {
	Mark            string  `json:"mark"`
	BarSize         BarSize `json:"bar_size"`
	CutLengthMM     float64 `json:"cut_length_mm"`
	PiecesPerBar    int     `json:"pieces_per_bar"`
	TotalPieces     int     `json:"total_pieces"`
	CompletedPieces int     `json:"completed_pieces"`
	Shape           string  `json:"shape,omitempty"` // Bend shape code; empty for straight cuts
}

func NewCutPlanItem(mark string, size BarSize, piecesPerBar, totalPieces int) CutPlanItem {
	return CutPlanItem{
		Mark:         mark,
		BarSize:      size,
		PiecesPerBar: piecesPerBar,
		TotalPieces:  totalPieces,
	}
}

// RemainingPieces returns the pieces still owed on this mark, never negative.
// Overproduction from earlier runs shows up as completed > total.
func (c CutPlanItem) RemainingPieces() int {
	if r := c.TotalPieces - c.CompletedPieces; r > 0 {
		return r
	}
	return 0
}

// Done reports whether the mark needs no more pieces.
func (c CutPlanItem) Done() bool {
	return c.RemainingPieces() == 0
}

// RunPlan is the derived cutting plan for one run. It is immutable once the
// run starts; reloading bars produces a new plan.
type RunPlan struct {
	PiecesPerBar    int  `json:"pieces_per_bar"`
	TotalBarsNeeded int  `json:"total_bars_needed"`
	LastBarPieces   int  `json:"last_bar_pieces"` // 0 when the remainder divides evenly
	BarsThisRun     int  `json:"bars_this_run"`
	Feasible        bool `json:"feasible"`
}

// NewRunPlan derives the bar counts for the remaining pieces of item.
// Feasible is left false; the planner decides it.
func NewRunPlan(item CutPlanItem, barsLoaded int) RunPlan {
	plan := RunPlan{
		PiecesPerBar: item.PiecesPerBar,
		BarsThisRun:  barsLoaded,
	}
	if item.PiecesPerBar <= 0 {
		return plan
	}
	remaining := item.RemainingPieces()
	plan.TotalBarsNeeded = remaining / item.PiecesPerBar
	plan.LastBarPieces = remaining % item.PiecesPerBar
	if plan.LastBarPieces > 0 {
		plan.TotalBarsNeeded++
	}
	return plan
}

// TotalRemaining returns the pieces the plan still has to produce.
func (p RunPlan) TotalRemaining() int {
	if p.TotalBarsNeeded <= 0 {
		return 0
	}
	if p.LastBarPieces > 0 {
		return (p.TotalBarsNeeded-1)*p.PiecesPerBar + p.LastBarPieces
	}
	return p.TotalBarsNeeded * p.PiecesPerBar
}

// FullCapacity returns the pieces barsLoaded full bars would yield.
func (p RunPlan) FullCapacity(barsLoaded int) int {
	return barsLoaded * p.PiecesPerBar
}

// RunStatus is the lifecycle of a run as seen by the orchestration layer.
type RunStatus string

const (
	RunActive   RunStatus = "active"
	RunPaused   RunStatus = "paused"
	RunFinished RunStatus = "finished"
	RunAborted  RunStatus = "aborted"
)

// Open reports whether the run still occupies its machine.
func (s RunStatus) Open() bool {
	return s == RunActive || s == RunPaused
}

// Run ties a plan and its slot arena to a machine and a bar mark.
type Run struct {
	ID          string     `json:"id"`
	MachineID   string     `json:"machine_id"`
	Model       string     `json:"model"`
	BarSize     BarSize    `json:"bar_size"`
	ItemMark    string     `json:"item_mark"`
	Plan        RunPlan    `json:"plan"`
	Slots       Slots      `json:"slots"`
	Status      RunStatus  `json:"status"`
	Committed   bool       `json:"committed"` // Pieces already added to the item
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastEventAt time.Time  `json:"last_event_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func NewRun(machine Machine, item CutPlanItem, plan RunPlan, slots Slots, now time.Time) Run {
	return Run{
		ID:          uuid.New().String(),
		MachineID:   machine.ID,
		Model:       machine.Model,
		BarSize:     item.BarSize,
		ItemMark:    item.Mark,
		Plan:        plan,
		Slots:       slots,
		Status:      RunActive,
		StartedAt:   now,
		UpdatedAt:   now,
		LastEventAt: now,
	}
}

// Clone returns a copy whose slot arena is independent of r's.
func (r Run) Clone() Run {
	out := r
	out.Slots = r.Slots.Clone()
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// EventAction names an operator or system event applied to a run.
type EventAction string

const (
	ActionStart  EventAction = "start"
	ActionStroke EventAction = "stroke"
	ActionRemove EventAction = "remove"
	ActionPause  EventAction = "pause"
	ActionResume EventAction = "resume"
	ActionAbort  EventAction = "abort"
	ActionFinish EventAction = "finish"
)

// RunEvent is one append-only audit record. Ignored events are kept with
// Changed=false so bounced pedals and retried requests stay visible.
type RunEvent struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Seq         int         `json:"seq"`
	Action      EventAction `json:"action"`
	Slot        int         `json:"slot"` // -1 when the action has no slot
	Changed     bool        `json:"changed"`
	StrokesDone int         `json:"strokes_done"`
	At          time.Time   `json:"at"`
}

func NewRunEvent(runID string, seq int, action EventAction, slot int, changed bool, strokesDone int, at time.Time) RunEvent {
	return RunEvent{
		ID:          uuid.New().String(),
		RunID:       runID,
		Seq:         seq,
		Action:      action,
		Slot:        slot,
		Changed:     changed,
		StrokesDone: strokesDone,
		At:          at,
	}
}
