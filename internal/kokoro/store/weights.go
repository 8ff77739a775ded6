package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// counterColumns maps a counter to its column. Only these four names ever
// reach the SQL below.
var counterColumns = map[soul.Counter]string{
	soul.CounterFelt:     "times_felt",
	soul.CounterPromoted: "times_promoted",
	soul.CounterRejected: "times_rejected",
	soul.CounterAscended: "times_ascended",
}

// GetWeight retrieves the counter record for a memory key. Unseen keys
// return the zero record with found == false.
func (s *Store) GetWeight(ctx context.Context, key string) (soul.MoralWeightRecord, bool, error) {
	rec := soul.MoralWeightRecord{Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT times_felt, times_promoted, times_rejected, times_ascended, first_seen, last_felt
		FROM moral_weights
		WHERE key = ?
	`, key).Scan(
		&rec.TimesFelt, &rec.TimesPromoted, &rec.TimesRejected, &rec.TimesAscended,
		&rec.FirstSeen, &rec.LastFelt,
	)

	if err == sql.ErrNoRows {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("failed to get moral weight: %w", err)
	}

	return rec, true, nil
}

// IncrementWeight adds 1 to one counter, creating the row on first touch.
// A single upsert statement on the store's single connection keeps
// concurrent increments on the same key atomic: no read-modify-write cycle
// ever leaves Go.
func (s *Store) IncrementWeight(ctx context.Context, key string, c soul.Counter) error {
	col, ok := counterColumns[c]
	if !ok {
		return fmt.Errorf("unknown moral counter: %q", c)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO moral_weights (key, %s, first_seen, last_felt)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			%s = %s + 1,
			last_felt = excluded.last_felt
	`, col, col, col)

	if _, err := s.db.ExecContext(ctx, query, key, now, now); err != nil {
		return fmt.Errorf("failed to increment moral weight: %w", err)
	}

	return nil
}

// TopWeights returns up to limit records ordered by descending moral score.
// The score expression is parameterized with the same coefficients the
// engine uses, so the ordering can never drift from Score().
func (s *Store) TopWeights(ctx context.Context, limit int) ([]soul.MoralWeightRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, times_felt, times_promoted, times_rejected, times_ascended, first_seen, last_felt
		FROM moral_weights
		ORDER BY (times_felt*? + times_promoted*? + times_rejected*? + times_ascended*?) DESC, key ASC
		LIMIT ?
	`, soul.WeightFelt, soul.WeightPromoted, soul.WeightRejected, soul.WeightAscended, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query moral weights: %w", err)
	}
	defer rows.Close()

	var recs []soul.MoralWeightRecord
	for rows.Next() {
		var rec soul.MoralWeightRecord
		err := rows.Scan(
			&rec.Key, &rec.TimesFelt, &rec.TimesPromoted, &rec.TimesRejected,
			&rec.TimesAscended, &rec.FirstSeen, &rec.LastFelt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan moral weight: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moral weights: %w", err)
	}

	return recs, nil
}

// Weights returns the soul-facing view of the counter table.
func (s *Store) Weights() soul.MoralWeights {
	return weightsView{s}
}

type weightsView struct{ s *Store }

var _ soul.MoralWeights = weightsView{}

func (v weightsView) Get(ctx context.Context, key string) (soul.MoralWeightRecord, bool, error) {
	return v.s.GetWeight(ctx, key)
}

func (v weightsView) Increment(ctx context.Context, key string, c soul.Counter) error {
	return v.s.IncrementWeight(ctx, key, c)
}
