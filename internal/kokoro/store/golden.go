package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// InsertGoldenMemory appends an ascended thought and trims the table back to
// its capacity in the same transaction. A missing ID is assigned here; ULIDs
// sort by creation time, so the trim keeps the newest rows.
func (s *Store) InsertGoldenMemory(ctx context.Context, gm soul.GoldenMemory) error {
	if gm.ID == "" {
		gm.ID = ulid.Make().String()
	}

	emotionsJSON, err := marshalEmotions(gm.Emotions)
	if err != nil {
		return fmt.Errorf("failed to marshal golden memory emotions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin golden memory transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO golden_memories (id, text, emotions_json, word, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, gm.ID, gm.Text, emotionsJSON, gm.Word, nullString(gm.Note), gm.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert golden memory: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM golden_memories
		WHERE id NOT IN (SELECT id FROM golden_memories ORDER BY id DESC LIMIT ?)
	`, soul.GoldenCapacity)
	if err != nil {
		return fmt.Errorf("failed to trim golden memories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit golden memory: %w", err)
	}

	return nil
}

// CountGoldenMemories returns the current number of golden memories.
func (s *Store) CountGoldenMemories(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM golden_memories").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count golden memories: %w", err)
	}
	return count, nil
}

// ListGoldenMemories returns up to limit golden memories, newest first.
func (s *Store) ListGoldenMemories(ctx context.Context, limit int) ([]soul.GoldenMemory, error) {
	if limit <= 0 {
		limit = soul.GoldenCapacity
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, emotions_json, word, note, created_at
		FROM golden_memories
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list golden memories: %w", err)
	}
	defer rows.Close()

	var memories []soul.GoldenMemory
	for rows.Next() {
		var gm soul.GoldenMemory
		var emotionsJSON, note sql.NullString
		if err := rows.Scan(&gm.ID, &gm.Text, &emotionsJSON, &gm.Word, &note, &gm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan golden memory: %w", err)
		}
		gm.Note = note.String
		if gm.Emotions, err = unmarshalEmotions(emotionsJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal golden memory emotions: %w", err)
		}
		memories = append(memories, gm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating golden memories: %w", err)
	}

	return memories, nil
}

// Golden returns the soul-facing view of the golden memory table.
func (s *Store) Golden() soul.GoldenMemories {
	return goldenView{s}
}

type goldenView struct{ s *Store }

var _ soul.GoldenMemories = goldenView{}

func (v goldenView) Append(ctx context.Context, gm soul.GoldenMemory) error {
	return v.s.InsertGoldenMemory(ctx, gm)
}

func (v goldenView) Count(ctx context.Context) (int, error) {
	return v.s.CountGoldenMemories(ctx)
}

// marshalEmotions encodes a snapshot as JSON, NULL when empty.
func marshalEmotions(snap emotion.Snapshot) (sql.NullString, error) {
	if len(snap) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalEmotions decodes an emotions column, nil when NULL.
func unmarshalEmotions(col sql.NullString) (emotion.Snapshot, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var snap emotion.Snapshot
	if err := json.Unmarshal([]byte(col.String), &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// nullString wraps a possibly empty string for a nullable column.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
