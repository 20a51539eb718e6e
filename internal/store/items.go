package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// ItemRepo stores cut-plan items keyed by bar mark.
type ItemRepo struct {
	db DBTX
}

func NewItemRepo(db DBTX) *ItemRepo {
	return &ItemRepo{db: db}
}

const itemColumns = `mark, bar_size, cut_length_mm, pieces_per_bar, total_pieces, completed_pieces, shape`

// Upsert inserts item or replaces the stored item with the same mark. The
// stored completed count is kept when the incoming one is lower, so
// re-importing a cut list never rolls back recorded production.
func (r *ItemRepo) Upsert(ctx context.Context, item model.CutPlanItem) error {
	now := formatTime(time.Now())
	query := `INSERT INTO cut_plan_items (` + itemColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mark) DO UPDATE SET
			bar_size = excluded.bar_size,
			cut_length_mm = excluded.cut_length_mm,
			pieces_per_bar = excluded.pieces_per_bar,
			total_pieces = excluded.total_pieces,
			completed_pieces = MAX(cut_plan_items.completed_pieces, excluded.completed_pieces),
			shape = excluded.shape,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		item.Mark,
		string(item.BarSize),
		item.CutLengthMM,
		item.PiecesPerBar,
		item.TotalPieces,
		item.CompletedPieces,
		item.Shape,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", item.Mark, err)
	}
	return nil
}

func (r *ItemRepo) Get(ctx context.Context, mark string) (model.CutPlanItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM cut_plan_items WHERE mark = ?`, mark)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CutPlanItem{}, fmt.Errorf("item %s: %w", mark, ErrNotFound)
	}
	if err != nil {
		return model.CutPlanItem{}, fmt.Errorf("loading item %s: %w", mark, err)
	}
	return item, nil
}

// List returns all items ordered by mark.
func (r *ItemRepo) List(ctx context.Context) ([]model.CutPlanItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM cut_plan_items ORDER BY mark`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.CutPlanItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// AddCompleted adds pieces to the completed count of the item with mark.
func (r *ItemRepo) AddCompleted(ctx context.Context, mark string, pieces int) error {
	if pieces < 0 {
		return fmt.Errorf("adding %d pieces to %s: negative count", pieces, mark)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE cut_plan_items SET completed_pieces = completed_pieces + ?, updated_at = ? WHERE mark = ?`,
		pieces, formatTime(time.Now()), mark)
	if err != nil {
		return fmt.Errorf("adding completed pieces to %s: %w", mark, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adding completed pieces to %s: %w", mark, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", mark, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.CutPlanItem, error) {
	var item model.CutPlanItem
	var size string
	err := s.Scan(&item.Mark, &size, &item.CutLengthMM, &item.PiecesPerBar,
		&item.TotalPieces, &item.CompletedPieces, &item.Shape)
	if err != nil {
		return model.CutPlanItem{}, err
	}
	item.BarSize = model.BarSize(size)
	return item, nil
}
