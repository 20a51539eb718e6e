package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/capacity"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/engine"
	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStart_CapacityCheckedBeforePlanning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unplannable item and an over-limit load: the capability error wins.
	item := model.NewCutPlanItem("B100", model.Bar15M, 0, 20)
	_, err := f.coord.Start(ctx, shear1, item, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, capacity.ErrCapability)
	assert.NotErrorIs(t, err, engine.ErrInfeasiblePlan)

	var capErr *capacity.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capacity.ReasonExceedsLimit, capErr.Reason)
	assert.Equal(t, 8, capErr.Limit)

	_, ok := f.coord.Current(shear1.ID)
	assert.False(t, ok)
	open, _ := f.store.OpenRuns(ctx)
	assert.Empty(t, open)
}

func TestStart_BlockedSizeRefused(t *testing.T) {
	f := newFixture(t)
	item := model.NewCutPlanItem("B101", model.Bar45M, 1, 4)

	_, err := f.coord.Start(context.Background(), shear2, item, 1)
	var capErr *capacity.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, capacity.ReasonBlockedSize, capErr.Reason)
}

func TestStart_InfeasiblePlan(t *testing.T) {
	f := newFixture(t)
	item := model.NewCutPlanItem("B102", model.Bar15M, 0, 20)

	_, err := f.coord.Start(context.Background(), shear1, item, 2)
	assert.ErrorIs(t, err, engine.ErrInfeasiblePlan)
	_, ok := f.coord.Current(shear1.ID)
	assert.False(t, ok)
}

func TestStart_MachineBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := model.NewCutPlanItem("B103", model.Bar10M, 4, 40)

	out, err := f.coord.Start(ctx, shear1, item, 2)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, model.RunActive, out.Run.Status)
	assert.Len(t, out.Run.Slots, 2)

	_, err = f.coord.Start(ctx, shear1, item, 2)
	assert.ErrorIs(t, err, ErrMachineBusy)

	_, err = f.coord.Start(ctx, bender1, item, 2)
	assert.NoError(t, err, "another machine is an independent lane")
}

func TestRun_PartialBarLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 14 pieces at 4 per bar: slots 4, 4, 4 and a partial 2
	item := model.NewCutPlanItem("B104", model.Bar15M, 4, 14)
	start, err := f.coord.Start(ctx, shear1, item, 4)
	require.NoError(t, err)
	runID := start.Run.ID
	require.True(t, start.Run.Slots[3].IsPartial)

	var out Outcome
	for i := 0; i < 4; i++ {
		out, err = f.coord.Stroke(ctx, shear1.ID)
		require.NoError(t, err)
		assert.True(t, out.Changed)
	}
	assert.Equal(t, 4, out.StrokesDone)
	assert.False(t, out.AllDone, "partial bar still on the machine")
	assert.Equal(t, model.SlotRemovable, out.Run.Slots[3].Status)

	// Nothing left to cut: the stroke is ignored but audited.
	out, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 4, out.StrokesDone)

	// Removing a completed bar is ignored too.
	out, err = f.coord.Remove(ctx, shear1.ID, 0)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	out, err = f.coord.Remove(ctx, shear1.ID, 3)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.True(t, out.AllDone)
	assert.Equal(t, model.RunFinished, out.Run.Status)
	assert.True(t, out.Run.Committed)
	require.NotNil(t, out.Run.FinishedAt)

	pieces, calls := f.store.total("B104")
	assert.Equal(t, 14, pieces)
	assert.Equal(t, 1, calls)

	_, ok := f.coord.Current(shear1.ID)
	assert.False(t, ok, "finished run frees the machine")
	_, err = f.coord.Stroke(ctx, shear1.ID)
	assert.ErrorIs(t, err, ErrNoRun)

	stored := f.store.run(runID)
	assert.Equal(t, model.RunFinished, stored.Status)

	events := f.store.eventsOf(runID)
	require.Len(t, events, 9)
	wantActions := []model.EventAction{
		model.ActionStart,
		model.ActionStroke, model.ActionStroke, model.ActionStroke, model.ActionStroke,
		model.ActionStroke, model.ActionRemove, model.ActionRemove, model.ActionFinish,
	}
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, wantActions[i], ev.Action, "event %d", i+1)
	}
	assert.False(t, events[5].Changed)
	assert.False(t, events[6].Changed)
	assert.Equal(t, 3, events[7].Slot)
}

func TestRun_PartialRemovedEarlyStillCountsMaxStrokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two pieces left at five per bar, five bars loaded: bar 0 is the
	// partial one and the other four are excess full bars.
	item := model.NewCutPlanItem("B105", model.Bar10M, 5, 12)
	item.CompletedPieces = 10
	start, err := f.coord.Start(ctx, shear1, item, 5)
	require.NoError(t, err)
	require.True(t, start.Run.Slots[0].IsPartial)

	for i := 0; i < 2; i++ {
		_, err = f.coord.Stroke(ctx, shear1.ID)
		require.NoError(t, err)
	}
	_, err = f.coord.Remove(ctx, shear1.ID, 0)
	require.NoError(t, err)

	var out Outcome
	for i := 0; i < 3; i++ {
		out, err = f.coord.Stroke(ctx, shear1.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, 5, out.StrokesDone)
	assert.Equal(t, 2, out.Run.Slots[0].CutsDone)
	assert.True(t, out.AllDone)

	pieces, _ := f.store.total("B105")
	assert.Equal(t, 22, pieces)
}

func TestRun_PauseBlocksStrokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("B106", model.Bar20M, 3, 30), 2)
	require.NoError(t, err)

	out, err := f.coord.Pause(ctx, shear1.ID)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, model.RunPaused, out.Run.Status)

	_, err = f.coord.Stroke(ctx, shear1.ID)
	assert.ErrorIs(t, err, ErrRunPaused)

	out, err = f.coord.Pause(ctx, shear1.ID)
	require.NoError(t, err)
	assert.False(t, out.Changed, "pausing twice is a no-op")

	out, err = f.coord.Resume(ctx, shear1.ID)
	require.NoError(t, err)
	assert.True(t, out.Changed)

	out, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.StrokesDone)

	out, err = f.coord.Resume(ctx, shear1.ID)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	_, err = f.coord.Pause(ctx, bender1.ID)
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestRun_AbortCreditsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := model.NewCutPlanItem("B107", model.Bar10M, 4, 8)

	start, err := f.coord.Start(ctx, shear1, item, 2)
	require.NoError(t, err)
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)

	out, err := f.coord.Abort(ctx, shear1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunAborted, out.Run.Status)
	assert.Equal(t, 1, out.StrokesDone)

	_, calls := f.store.total("B107")
	assert.Zero(t, calls)
	assert.Equal(t, model.RunAborted, f.store.run(start.Run.ID).Status)

	_, err = f.coord.Start(ctx, shear1, item, 2)
	assert.NoError(t, err, "machine is free after abort")

	_, err = f.coord.Abort(ctx, bender1.ID)
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestRun_FailedFinishKeepsRunOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("B108", model.Bar10M, 2, 2), 1)
	require.NoError(t, err)
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)

	f.store.setErr(nil, errors.New("order system offline"))
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.Error(t, err)

	run, ok := f.coord.Current(shear1.ID)
	require.True(t, ok)
	assert.Equal(t, 1, engine.StrokesDone(run.Slots), "failed finish leaves state untouched")
	assert.False(t, run.Committed)
	pieces, calls := f.store.total("B108")
	assert.Zero(t, pieces)
	assert.Zero(t, calls)

	f.store.setErr(nil, nil)
	out, err := f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)
	assert.True(t, out.AllDone)

	pieces, calls = f.store.total("B108")
	assert.Equal(t, 2, pieces)
	assert.Equal(t, 1, calls)
}

func TestRun_StoreFailureOnFinishDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("B109", model.Bar10M, 2, 2), 1)
	require.NoError(t, err)
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)

	f.store.setErr(errors.New("disk full"), nil)
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.Error(t, err)

	// A restart at this point sees the run still open and nothing credited.
	open, err := f.store.OpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.False(t, open[0].Committed)

	f.store.setErr(nil, nil)
	out, err := f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFinished, out.Run.Status)
	assert.True(t, out.Run.Committed)

	pieces, calls := f.store.total("B109")
	assert.Equal(t, 2, pieces)
	assert.Equal(t, 1, calls)
}

func TestRun_CreditsCountedPerItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	finish := func(m model.Machine, item model.CutPlanItem) {
		t.Helper()
		_, err := f.coord.Start(ctx, m, item, 1)
		require.NoError(t, err)
		out, err := f.coord.Stroke(ctx, m.ID)
		require.NoError(t, err)
		require.True(t, out.AllDone)
	}

	b110 := model.NewCutPlanItem("B110", model.Bar10M, 1, 2)
	finish(shear1, b110)
	finish(shear2, model.NewCutPlanItem("B111", model.Bar10M, 1, 1))
	finish(shear1, b110)

	pieces, calls := f.store.total("B110")
	assert.Equal(t, 2, pieces)
	assert.Equal(t, 2, calls, "two runs of the same item")

	pieces, calls = f.store.total("B111")
	assert.Equal(t, 1, pieces)
	assert.Equal(t, 1, calls, "other items' finishes are not counted")
}

func TestRun_RemoveWithoutRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Remove(context.Background(), shear1.ID, 0)
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestRun_MachinesProceedIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	machines := []model.Machine{shear1, shear2, bender1, spiral1}
	for i, m := range machines {
		item := model.NewCutPlanItem(fmt.Sprintf("P%d", i), model.Bar10M, 5, 5)
		_, err := f.coord.Start(ctx, m, item, 1)
		require.NoError(t, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range machines {
		g.Go(func() error {
			for i := 0; i < 5; i++ {
				if _, err := f.coord.Stroke(gctx, m.ID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range machines {
		pieces, calls := f.store.total(fmt.Sprintf("P%d", i))
		assert.Equal(t, 5, pieces)
		assert.Equal(t, 1, calls)
	}
	assert.Empty(t, f.coord.OpenRuns())
}

func TestRun_ConcurrentStrokesOnOneMachineAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("Q1", model.Bar10M, 20, 60), 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.coord.Stroke(ctx, shear1.ID)
		}()
	}
	wg.Wait()

	run, ok := f.coord.Current(shear1.ID)
	require.True(t, ok)
	assert.Equal(t, 12, engine.StrokesDone(run.Slots))
	assert.Equal(t, 36, engine.PiecesProduced(run.Slots))

	events := f.store.eventsOf(run.ID)
	assert.Len(t, events, 13)
}

func TestPauseIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("I1", model.Bar10M, 4, 40), 2)
	require.NoError(t, err)
	_, err = f.coord.Start(ctx, shear2, model.NewCutPlanItem("I2", model.Bar10M, 4, 40), 2)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	_, err = f.coord.Stroke(ctx, shear2.ID)
	require.NoError(t, err)
	now := f.clock.Advance(15 * time.Minute)

	paused, err := f.coord.PauseIdle(ctx, now, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{shear1.ID}, paused)

	run, _ := f.coord.Current(shear1.ID)
	assert.Equal(t, model.RunPaused, run.Status)
	run, _ = f.coord.Current(shear2.ID)
	assert.Equal(t, model.RunActive, run.Status)

	paused, err = f.coord.PauseIdle(ctx, now.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, paused, "zero threshold disables auto-pause")

	// Resuming counts as activity.
	_, err = f.coord.Resume(ctx, shear1.ID)
	require.NoError(t, err)
	paused, err = f.coord.PauseIdle(ctx, f.clock.Now(), 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, paused)
}

func TestWatchIdle_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.coord.Start(ctx, shear1, model.NewCutPlanItem("W1", model.Bar10M, 4, 40), 2)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- f.coord.WatchIdle(ctx, 5*time.Millisecond, 30*time.Minute)
	}()

	require.Eventually(t, func() bool {
		run, ok := f.coord.Current(shear1.ID)
		return ok && run.Status == model.RunPaused
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("idle watcher did not stop")
	}
}

func TestWatchIdle_RejectsNonPositiveInterval(t *testing.T) {
	f := newFixture(t)
	for _, interval := range []time.Duration{0, -time.Second} {
		err := f.coord.WatchIdle(context.Background(), interval, 30*time.Minute)
		assert.ErrorIs(t, err, ErrInvalidInterval, "interval %s", interval)
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := model.NewCutPlanItem("R1", model.Bar10M, 3, 6)
	_, err := f.coord.Start(ctx, shear1, item, 2)
	require.NoError(t, err)
	_, err = f.coord.Stroke(ctx, shear1.ID)
	require.NoError(t, err)

	restarted := New(capacity.Default(), f.store, WithClock(f.clock.Now))
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var out Outcome
	for i := 0; i < 2; i++ {
		out, err = restarted.Stroke(ctx, shear1.ID)
		require.NoError(t, err, "sequence numbers continue after restore")
	}
	assert.True(t, out.AllDone)
	pieces, _ := f.store.total("R1")
	assert.Equal(t, 6, pieces)

	n, err = restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
