package store

import (
	"context"
	"database/sql"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// Store bundles the repositories over one database handle.
type Store struct {
	db     *sql.DB
	Items  *ItemRepo
	Runs   *RunRepo
	Events *EventRepo
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		Items:  NewItemRepo(db),
		Runs:   NewRunRepo(db),
		Events: NewEventRepo(db),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves the run snapshot and appends its events in one transaction.
func (s *Store) Record(ctx context.Context, run model.Run, events ...model.RunEvent) error {
	return WithinTx(ctx, s.db, func(tx DBTX) error {
		if err := NewRunRepo(tx).Save(ctx, run); err != nil {
			return err
		}
		repo := NewEventRepo(tx)
		for _, ev := range events {
			if err := repo.Append(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// OpenRuns returns every active or paused run.
func (s *Store) OpenRuns(ctx context.Context) ([]model.Run, error) {
	return s.Runs.ListOpen(ctx)
}

func (s *Store) LastSeq(ctx context.Context, runID string) (int, error) {
	return s.Events.LastSeq(ctx, runID)
}

// Finish credits pieces to the run's item and saves the finished snapshot
// and its events in one transaction, so a crash or failed write never
// leaves the item credited while the run is still open.
func (s *Store) Finish(ctx context.Context, run model.Run, pieces int, events ...model.RunEvent) error {
	return WithinTx(ctx, s.db, func(tx DBTX) error {
		if err := NewItemRepo(tx).AddCompleted(ctx, run.ItemMark, pieces); err != nil {
			return err
		}
		if err := NewRunRepo(tx).Save(ctx, run); err != nil {
			return err
		}
		repo := NewEventRepo(tx)
		for _, ev := range events {
			if err := repo.Append(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// Item loads a cut-plan item by mark.
func (s *Store) Item(ctx context.Context, mark string) (model.CutPlanItem, error) {
	return s.Items.Get(ctx, mark)
}

// History returns a run and its audit log.
func (s *Store) History(ctx context.Context, runID string) (model.Run, []model.RunEvent, error) {
	run, err := s.Runs.Get(ctx, runID)
	if err != nil {
		return model.Run{}, nil, err
	}
	events, err := s.Events.ListByRun(ctx, runID)
	if err != nil {
		return model.Run{}, nil, err
	}
	return run, events, nil
}
