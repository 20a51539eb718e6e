package run

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/capacity"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"go.uber.org/zap/zaptest"
)

// memStore keeps runs, events and item credits in maps. err fails every
// write; finishErr fails only Finish. A failed write changes nothing.
type memStore struct {
	mu        sync.Mutex
	runs      map[string]model.Run
	events    map[string][]model.RunEvent
	added     map[string]int
	calls     map[string]int
	err       error
	finishErr error
}

func newMemStore() *memStore {
	return &memStore{
		runs:   make(map[string]model.Run),
		events: make(map[string][]model.RunEvent),
		added:  make(map[string]int),
		calls:  make(map[string]int),
	}
}

func (s *memStore) Record(_ context.Context, run model.Run, events ...model.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.record(run, events)
}

func (s *memStore) Finish(_ context.Context, run model.Run, pieces int, events ...model.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.finishErr != nil {
		return s.finishErr
	}
	if err := s.record(run, events); err != nil {
		return err
	}
	s.calls[run.ItemMark]++
	s.added[run.ItemMark] += pieces
	return nil
}

// total returns the pieces credited to mark and how many finishes credited it.
func (s *memStore) total(mark string) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added[mark], s.calls[mark]
}

func (s *memStore) setErr(err, finishErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.finishErr = finishErr
}

func (s *memStore) record(run model.Run, events []model.RunEvent) error {
	seen := make(map[int]bool)
	for _, ev := range s.events[run.ID] {
		seen[ev.Seq] = true
	}
	for _, ev := range events {
		if seen[ev.Seq] {
			return fmt.Errorf("duplicate seq %d for run %s", ev.Seq, run.ID)
		}
		seen[ev.Seq] = true
	}
	s.runs[run.ID] = run.Clone()
	s.events[run.ID] = append(s.events[run.ID], events...)
	return nil
}

func (s *memStore) OpenRuns(context.Context) ([]model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Run
	for _, r := range s.runs {
		if r.Status.Open() {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *memStore) LastSeq(_ context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := 0
	for _, ev := range s.events[runID] {
		seq = max(seq, ev.Seq)
	}
	return seq, nil
}

func (s *memStore) run(id string) model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id].Clone()
}

func (s *memStore) eventsOf(id string) []model.RunEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RunEvent(nil), s.events[id]...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fixture struct {
	coord *Coordinator
	store *memStore
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		clock: newFakeClock(),
	}
	f.coord = New(capacity.Default(), f.store,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(f.clock.Now))
	return f
}

var (
	shear1     = model.Machine{ID: "shear-1", Name: "Shear 1", Model: "SHEAR-CM60"}
	shear2     = model.Machine{ID: "shear-2", Name: "Shear 2", Model: "SHEAR-CM40"}
	bender1    = model.Machine{ID: "bender-1", Name: "Bender 1", Model: "BENDER-BP40"}
	spiral1    = model.Machine{ID: "spiral-1", Name: "Spiral 1", Model: "SPIRAL-SP20"}
	testRoster = []model.Machine{shear1, shear2, bender1, spiral1}
)
