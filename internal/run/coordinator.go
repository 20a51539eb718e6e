// Package run drives cut runs on shop machines: it checks capability,
// plans slots, applies operator events and credits finished pieces to the
// order. Each machine has its own lane; events on one machine are applied
// in order and never wait on another machine.
package run

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"go.uber.org/zap"
)

var (
	ErrMachineBusy = errors.New("machine already has an open run")
	ErrNoRun       = errors.New("no open run on machine")
	ErrRunPaused   = errors.New("run is paused")
)

// Checker validates a machine model, bar size and bar count against the
// locked capability table. *capacity.Registry satisfies it.
type Checker interface {
	Check(machineModel string, size model.BarSize, bars int) error
}

// RunStore persists run snapshots together with their audit events.
// Finish must credit pieces to the item and save the finished snapshot
// atomically: either both land or neither does. *store.Store satisfies it.
type RunStore interface {
	Record(ctx context.Context, run model.Run, events ...model.RunEvent) error
	Finish(ctx context.Context, run model.Run, pieces int, events ...model.RunEvent) error
	OpenRuns(ctx context.Context) ([]model.Run, error)
	LastSeq(ctx context.Context, runID string) (int, error)
}

// Outcome is the result of one event applied to a run.
type Outcome struct {
	Run         model.Run
	Changed     bool
	StrokesDone int
	AllDone     bool
}

func newOutcome(run model.Run, changed bool) Outcome {
	return Outcome{
		Run:         run,
		Changed:     changed,
		StrokesDone: engine.StrokesDone(run.Slots),
		AllDone:     engine.AllDone(run.Slots),
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator owns one lane per machine.
type Coordinator struct {
	checker Checker
	store   RunStore
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	lanes map[string]*lane
}

// lane serializes events for one machine. run is nil when the machine is
// idle; seq is the last audit sequence number written for run.
type lane struct {
	mu  sync.Mutex
	run *model.Run
	seq int
}

func New(checker Checker, store RunStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		checker: checker,
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
		lanes:   make(map[string]*lane),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) lane(machineID string) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lanes[machineID]
	if !ok {
		l = &lane{}
		c.lanes[machineID] = l
	}
	return l
}

func (c *Coordinator) allLanes() []*lane {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*lane, 0, len(c.lanes))
	for _, l := range c.lanes {
		out = append(out, l)
	}
	return out
}

// Start loads barsLoaded bars of item onto machine and opens a run.
// The capability check runs first; nothing is planned for a load the
// machine may not take.
func (c *Coordinator) Start(ctx context.Context, machine model.Machine, item model.CutPlanItem, barsLoaded int) (Outcome, error) {
	log := c.logger.With(zap.String("machine", machine.ID), zap.String("mark", item.Mark))

	if err := c.checker.Check(machine.Model, item.BarSize, barsLoaded); err != nil {
		log.Warn("Load refused", zap.Int("bars", barsLoaded), zap.Error(err))
		return Outcome{}, fmt.Errorf("starting run on %s: %w", machine.ID, err)
	}

	plan, slots := engine.Plan(item, barsLoaded)
	if !plan.Feasible {
		return Outcome{}, fmt.Errorf("starting run for %s: %w", item.Mark, engine.ErrInfeasiblePlan)
	}

	l := c.lane(machine.ID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run != nil {
		return Outcome{}, fmt.Errorf("starting run on %s: %w (run %s)", machine.ID, ErrMachineBusy, l.run.ID)
	}

	now := c.now()
	run := model.NewRun(machine, item, plan, slots, now)
	ev := model.NewRunEvent(run.ID, 1, model.ActionStart, -1, true, 0, now)
	if err := c.store.Record(ctx, run, ev); err != nil {
		return Outcome{}, fmt.Errorf("recording run start: %w", err)
	}
	l.run = &run
	l.seq = 1

	log.Info("Run started",
		zap.String("run", run.ID),
		zap.Int("bars", barsLoaded),
		zap.Int("partial_slots", countPartial(slots)),
		zap.Int("pieces_remaining", plan.TotalRemaining()))
	return newOutcome(run.Clone(), true), nil
}

// Stroke applies one machine stroke to the open run on machineID.
func (c *Coordinator) Stroke(ctx context.Context, machineID string) (Outcome, error) {
	l := c.lane(machineID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil {
		return Outcome{}, fmt.Errorf("stroke on %s: %w", machineID, ErrNoRun)
	}
	if l.run.Status == model.RunPaused {
		return Outcome{}, fmt.Errorf("stroke on %s: %w", machineID, ErrRunPaused)
	}

	next, changed := engine.RecordStroke(l.run.Slots)
	return c.advance(ctx, l, model.ActionStroke, -1, next, changed)
}

// Remove takes the removable bar in slot off the machine.
func (c *Coordinator) Remove(ctx context.Context, machineID string, slot int) (Outcome, error) {
	l := c.lane(machineID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil {
		return Outcome{}, fmt.Errorf("remove on %s: %w", machineID, ErrNoRun)
	}

	next, changed := engine.RemoveBar(l.run.Slots, slot)
	return c.advance(ctx, l, model.ActionRemove, slot, next, changed)
}

// advance records a slot transition and finishes the run once every slot
// is done. Called with l.mu held.
func (c *Coordinator) advance(ctx context.Context, l *lane, action model.EventAction, slot int, next model.Slots, changed bool) (Outcome, error) {
	now := c.now()
	run := l.run.Clone()
	run.Slots = next
	run.UpdatedAt = now
	run.LastEventAt = now

	log := c.logger.With(zap.String("machine", run.MachineID), zap.String("run", run.ID))
	if !changed {
		log.Debug("Event ignored", zap.String("action", string(action)), zap.Int("slot", slot))
	}

	events := []model.RunEvent{
		model.NewRunEvent(run.ID, l.seq+1, action, slot, changed, engine.StrokesDone(next), now),
	}

	finishing := changed && engine.AllDone(next) && run.Status.Open()
	if finishing {
		run.Status = model.RunFinished
		run.FinishedAt = &now
		run.Committed = true
		events = append(events,
			model.NewRunEvent(run.ID, l.seq+2, model.ActionFinish, -1, true, engine.StrokesDone(next), now))

		pieces := engine.PiecesProduced(next)
		if err := c.store.Finish(ctx, run, pieces, events...); err != nil {
			return Outcome{}, fmt.Errorf("crediting %d pieces to %s: %w", pieces, run.ItemMark, err)
		}
	} else if err := c.store.Record(ctx, run, events...); err != nil {
		return Outcome{}, fmt.Errorf("recording %s: %w", action, err)
	}
	l.seq += len(events)

	if finishing {
		l.run = nil
		log.Info("Run finished",
			zap.Int("strokes", engine.StrokesDone(next)),
			zap.Int("pieces", engine.PiecesProduced(next)),
			zap.Int("overproduction", engine.Overproduction(run.Plan, next)))
	} else {
		l.run = &run
	}
	return newOutcome(run.Clone(), changed), nil
}

// Pause stops the run on machineID from accepting strokes.
func (c *Coordinator) Pause(ctx context.Context, machineID string) (Outcome, error) {
	return c.setStatus(ctx, machineID, model.ActionPause, model.RunActive, model.RunPaused)
}

// Resume lets a paused run accept strokes again.
func (c *Coordinator) Resume(ctx context.Context, machineID string) (Outcome, error) {
	return c.setStatus(ctx, machineID, model.ActionResume, model.RunPaused, model.RunActive)
}

func (c *Coordinator) setStatus(ctx context.Context, machineID string, action model.EventAction, from, to model.RunStatus) (Outcome, error) {
	l := c.lane(machineID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil {
		return Outcome{}, fmt.Errorf("%s on %s: %w", action, machineID, ErrNoRun)
	}
	return c.transition(ctx, l, action, from, to)
}

// transition moves the lane's run from one status to another. Called with
// l.mu held.
func (c *Coordinator) transition(ctx context.Context, l *lane, action model.EventAction, from, to model.RunStatus) (Outcome, error) {
	now := c.now()
	run := l.run.Clone()
	changed := run.Status == from
	if changed {
		run.Status = to
		run.UpdatedAt = now
		run.LastEventAt = now
	}

	ev := model.NewRunEvent(run.ID, l.seq+1, action, -1, changed, engine.StrokesDone(run.Slots), now)
	if err := c.store.Record(ctx, run, ev); err != nil {
		return Outcome{}, fmt.Errorf("recording %s: %w", action, err)
	}
	l.seq++
	l.run = &run

	c.logger.Info("Run status",
		zap.String("machine", run.MachineID),
		zap.String("run", run.ID),
		zap.String("action", string(action)),
		zap.String("status", string(run.Status)),
		zap.Bool("changed", changed))
	return newOutcome(run.Clone(), changed), nil
}

// Abort cancels the open run on machineID. Pieces already cut are not
// credited to the item.
func (c *Coordinator) Abort(ctx context.Context, machineID string) (Outcome, error) {
	l := c.lane(machineID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil {
		return Outcome{}, fmt.Errorf("abort on %s: %w", machineID, ErrNoRun)
	}

	now := c.now()
	run := l.run.Clone()
	run.Status = model.RunAborted
	run.UpdatedAt = now
	run.FinishedAt = &now

	ev := model.NewRunEvent(run.ID, l.seq+1, model.ActionAbort, -1, true, engine.StrokesDone(run.Slots), now)
	if err := c.store.Record(ctx, run, ev); err != nil {
		return Outcome{}, fmt.Errorf("recording abort: %w", err)
	}
	l.seq++
	l.run = nil

	c.logger.Warn("Run aborted",
		zap.String("machine", run.MachineID),
		zap.String("run", run.ID),
		zap.Int("pieces_uncredited", engine.PiecesProduced(run.Slots)))
	return newOutcome(run.Clone(), true), nil
}

// Current returns a copy of the open run on machineID.
func (c *Coordinator) Current(machineID string) (model.Run, bool) {
	l := c.lane(machineID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil {
		return model.Run{}, false
	}
	return l.run.Clone(), true
}

// OpenRuns returns copies of every open run ordered by machine ID.
func (c *Coordinator) OpenRuns() []model.Run {
	var runs []model.Run
	for _, l := range c.allLanes() {
		l.mu.Lock()
		if l.run != nil {
			runs = append(runs, l.run.Clone())
		}
		l.mu.Unlock()
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].MachineID < runs[j].MachineID })
	return runs
}

// Restore reloads open runs from the store into their lanes and returns
// how many were restored. Lanes that already hold a run are left alone.
func (c *Coordinator) Restore(ctx context.Context) (int, error) {
	runs, err := c.store.OpenRuns(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading open runs: %w", err)
	}

	restored := 0
	for _, r := range runs {
		seq, err := c.store.LastSeq(ctx, r.ID)
		if err != nil {
			return restored, err
		}

		l := c.lane(r.MachineID)
		l.mu.Lock()
		if l.run != nil {
			l.mu.Unlock()
			c.logger.Warn("Skipping restore, machine busy",
				zap.String("machine", r.MachineID),
				zap.String("run", r.ID),
				zap.String("open_run", l.run.ID))
			continue
		}
		run := r.Clone()
		l.run = &run
		l.seq = seq
		l.mu.Unlock()
		restored++
	}

	c.logger.Debug("Runs restored", zap.Int("count", restored))
	return restored, nil
}

func countPartial(slots model.Slots) int {
	n := 0
	for _, s := range slots {
		if s.IsPartial {
			n++
		}
	}
	return n
}
