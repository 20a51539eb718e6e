package store

import (
	"context"
	"fmt"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// EventRepo is the append-only run audit log.
type EventRepo struct {
	db DBTX
}

func NewEventRepo(db DBTX) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Append(ctx context.Context, ev model.RunEvent) error {
	query := `INSERT INTO run_events (id, run_id, seq, action, slot, changed, strokes_done, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.RunID,
		ev.Seq,
		string(ev.Action),
		ev.Slot,
		boolToInt(ev.Changed),
		ev.StrokesDone,
		formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("appending %s event to run %s: %w", ev.Action, ev.RunID, err)
	}
	return nil
}

// ListByRun returns the events of a run in sequence order.
func (r *EventRepo) ListByRun(ctx context.Context, runID string) ([]model.RunEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, run_id, seq, action, slot, changed, strokes_done, at
		FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []model.RunEvent
	for rows.Next() {
		var ev model.RunEvent
		var action, at string
		var changed int
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Seq, &action, &ev.Slot, &changed, &ev.StrokesDone, &at); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Action = model.EventAction(action)
		ev.Changed = intToBool(changed)
		if ev.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parsing event time: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest sequence number recorded for a run, or 0.
func (r *EventRepo) LastSeq(ctx context.Context, runID string) (int, error) {
	var seq int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM run_events WHERE run_id = ?`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("loading last seq of run %s: %w", runID, err)
	}
	return seq, nil
}
