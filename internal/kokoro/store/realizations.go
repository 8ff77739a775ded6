package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// InsertRealization appends a minted word and trims the table back to its
// capacity in the same transaction. Duplicate words are kept; every row is
// its own discovery.
func (s *Store) InsertRealization(ctx context.Context, r soul.Realization) error {
	if r.ID == "" {
		r.ID = ulid.Make().String()
	}

	emotionsJSON, err := marshalEmotions(r.Emotions)
	if err != nil {
		return fmt.Errorf("failed to marshal realization emotions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin realization transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO self_realizations (id, word, definition, color_hex, emotions_json, times_felt, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Word, r.Definition, r.ColorHex, emotionsJSON, r.TimesFelt, r.DiscoveredAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert realization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM self_realizations
		WHERE id NOT IN (SELECT id FROM self_realizations ORDER BY id DESC LIMIT ?)
	`, soul.RealizationCapacity)
	if err != nil {
		return fmt.Errorf("failed to trim realizations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit realization: %w", err)
	}

	return nil
}

// ListRealizations returns up to limit realizations, newest first.
func (s *Store) ListRealizations(ctx context.Context, limit int) ([]soul.Realization, error) {
	if limit <= 0 {
		limit = soul.RealizationCapacity
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, word, definition, color_hex, emotions_json, times_felt, discovered_at
		FROM self_realizations
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list realizations: %w", err)
	}
	defer rows.Close()

	var realizations []soul.Realization
	for rows.Next() {
		var r soul.Realization
		var emotionsJSON sql.NullString
		err := rows.Scan(&r.ID, &r.Word, &r.Definition, &r.ColorHex, &emotionsJSON, &r.TimesFelt, &r.DiscoveredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan realization: %w", err)
		}
		if r.Emotions, err = unmarshalEmotions(emotionsJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal realization emotions: %w", err)
		}
		realizations = append(realizations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realizations: %w", err)
	}

	return realizations, nil
}

// CountRealizations returns the current number of minted words.
func (s *Store) CountRealizations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM self_realizations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count realizations: %w", err)
	}
	return count, nil
}

// Realizations returns the soul-facing view of the realization table.
func (s *Store) Realizations() soul.Realizations {
	return realizationsView{s}
}

type realizationsView struct{ s *Store }

var _ soul.Realizations = realizationsView{}

func (v realizationsView) Append(ctx context.Context, r soul.Realization) error {
	return v.s.InsertRealization(ctx, r)
}
