package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// RunRepo stores runs with their plan and slot arena as JSON columns.
type RunRepo struct {
	db DBTX
}

func NewRunRepo(db DBTX) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, machine_id, model, bar_size, item_mark, plan, slots, status, committed,
	started_at, updated_at, last_event_at, finished_at`

// Save inserts run or overwrites the stored snapshot with the same ID.
func (r *RunRepo) Save(ctx context.Context, run model.Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	slotsJSON, err := json.Marshal(run.Slots)
	if err != nil {
		return fmt.Errorf("encoding slots: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan = excluded.plan,
			slots = excluded.slots,
			status = excluded.status,
			committed = excluded.committed,
			updated_at = excluded.updated_at,
			last_event_at = excluded.last_event_at,
			finished_at = excluded.finished_at`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.MachineID,
		run.Model,
		string(run.BarSize),
		run.ItemMark,
		string(planJSON),
		string(slotsJSON),
		string(run.Status),
		boolToInt(run.Committed),
		formatTime(run.StartedAt),
		formatTime(run.UpdatedAt),
		formatTime(run.LastEventAt),
		nullableTimeToString(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (model.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListOpen returns active and paused runs, oldest first.
func (r *RunRepo) ListOpen(ctx context.Context) ([]model.Run, error) {
	return r.list(ctx, `SELECT `+runColumns+` FROM runs
		WHERE status IN ('active','paused') ORDER BY started_at`)
}

// ListByItem returns every run cut for mark, oldest first.
func (r *RunRepo) ListByItem(ctx context.Context, mark string) ([]model.Run, error) {
	return r.list(ctx, `SELECT `+runColumns+` FROM runs
		WHERE item_mark = ? ORDER BY started_at`, mark)
}

// List returns every run, oldest first.
func (r *RunRepo) List(ctx context.Context) ([]model.Run, error) {
	return r.list(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at`)
}

func (r *RunRepo) list(ctx context.Context, query string, args ...any) ([]model.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(s scanner) (model.Run, error) {
	var run model.Run
	var size, planJSON, slotsJSON, status string
	var committed int
	var startedAt, updatedAt, lastEventAt string
	var finishedAt sql.NullString

	err := s.Scan(&run.ID, &run.MachineID, &run.Model, &size, &run.ItemMark,
		&planJSON, &slotsJSON, &status, &committed,
		&startedAt, &updatedAt, &lastEventAt, &finishedAt)
	if err != nil {
		return model.Run{}, err
	}

	run.BarSize = model.BarSize(size)
	run.Status = model.RunStatus(status)
	run.Committed = intToBool(committed)
	run.FinishedAt = parseNullableTime(finishedAt)

	if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
		return model.Run{}, fmt.Errorf("decoding plan of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(slotsJSON), &run.Slots); err != nil {
		return model.Run{}, fmt.Errorf("decoding slots of run %s: %w", run.ID, err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return model.Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Run{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	if run.LastEventAt, err = parseTime(lastEventAt); err != nil {
		return model.Run{}, fmt.Errorf("parsing last_event_at: %w", err)
	}
	return run, nil
}
