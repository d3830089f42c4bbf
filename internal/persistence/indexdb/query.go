package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Coverage is the count and bounds of indexed ticks; gaps are possible.
type Coverage struct {
	Count int    `db:"n" json:"count"`
	First uint64 `db:"first" json:"first"`
	Last  uint64 `db:"last" json:"last"`
}

func (s *SQLiteIndex) Eras(ctx context.Context) ([]EraRow, error) {
	var rows []EraRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, title, era_type, entry_type, start_tick, end_tick,
		affected, first_seen_tick, last_seen_tick FROM eras ORDER BY start_tick, id`)
	if err != nil {
		return nil, fmt.Errorf("query eras: %w", err)
	}
	return rows, nil
}

func (s *SQLiteIndex) Era(ctx context.Context, id string) (EraRow, bool, error) {
	var row EraRow
	err := s.db.GetContext(ctx, &row, `SELECT id, title, era_type, entry_type, start_tick, end_tick,
		affected, first_seen_tick, last_seen_tick FROM eras WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return EraRow{}, false, nil
	}
	if err != nil {
		return EraRow{}, false, fmt.Errorf("query era %s: %w", id, err)
	}
	return row, true, nil
}

func (s *SQLiteIndex) Coverage(ctx context.Context) (Coverage, error) {
	var c Coverage
	err := s.db.GetContext(ctx, &c, `SELECT COUNT(*) AS n, COALESCE(MIN(tick), 0) AS first,
		COALESCE(MAX(tick), 0) AS last FROM ticks`)
	if err != nil {
		return Coverage{}, fmt.Errorf("query coverage: %w", err)
	}
	return c, nil
}

// Ticks lists indexed ticks in [from, to].
func (s *SQLiteIndex) Ticks(ctx context.Context, from, to uint64) ([]TickRow, error) {
	var rows []TickRow
	err := s.db.SelectContext(ctx, &rows, `SELECT tick, settlements, active, civilizations, trade_routes,
		population, current_era_id, recorded_at FROM ticks WHERE tick BETWEEN ? AND ? ORDER BY tick`,
		int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	return rows, nil
}
