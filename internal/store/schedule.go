package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ScheduleEntry is one pending recompute.
type ScheduleEntry struct {
	FocusOID         string    `json:"focus_oid"`
	ConstructionID   string    `json:"construction_id"`
	ConstructionHash string    `json:"construction_hash"`
	NextRecompute    time.Time `json:"next_recompute"`
	RunID            string    `json:"run_id"`
}

// ScheduleRecompute records when (focus, construction) must be evaluated
// again. A nil next clears the entry: nothing in the construction expires.
// The run that computed the value is recorded for audit.
func (s *Store) ScheduleRecompute(ctx context.Context, focusOID, constructionID, hash string, next *time.Time, runID string) error {
	if next == nil {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM recompute_schedule
			WHERE focus_oid = ? AND construction_id = ?
		`, focusOID, constructionID)
		if err != nil {
			return fmt.Errorf("clear recompute: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recompute_schedule
		(focus_oid, construction_id, construction_hash, next_recompute, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(focus_oid, construction_id) DO UPDATE SET
			construction_hash = excluded.construction_hash,
			next_recompute    = excluded.next_recompute,
			run_id            = excluded.run_id
	`, focusOID, constructionID, hash, next.UTC().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("schedule recompute: %w", err)
	}
	return nil
}

// DueRecomputes returns entries due at or before now, earliest first.
// limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if nothing is due.
func (s *Store) DueRecomputes(ctx context.Context, now time.Time, limit int) ([]ScheduleEntry, error) {
	query := `
		SELECT focus_oid, construction_id, construction_hash, next_recompute, run_id
		FROM recompute_schedule
		WHERE next_recompute <= ?
		ORDER BY next_recompute ASC, focus_oid COLLATE BINARY ASC, construction_id COLLATE BINARY ASC
	`
	args := []any{now.UTC().UnixNano()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.querySchedule(ctx, query, args...)
}

// Schedule returns all pending entries for a focus, by construction ID.
func (s *Store) Schedule(ctx context.Context, focusOID string) ([]ScheduleEntry, error) {
	return s.querySchedule(ctx, `
		SELECT focus_oid, construction_id, construction_hash, next_recompute, run_id
		FROM recompute_schedule
		WHERE focus_oid = ?
		ORDER BY construction_id COLLATE BINARY ASC
	`, focusOID)
}

func (s *Store) querySchedule(ctx context.Context, query string, args ...any) ([]ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	entries := []ScheduleEntry{}
	for rows.Next() {
		var e ScheduleEntry
		var next sql.NullInt64
		if err := rows.Scan(&e.FocusOID, &e.ConstructionID, &e.ConstructionHash, &next, &e.RunID); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if t := fromNanos(next); t != nil {
			e.NextRecompute = *t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule: %w", err)
	}
	return entries, nil
}
