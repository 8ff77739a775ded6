package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// WriteReflection appends one reflection decision to the audit log. The log
// is append-only; nothing in Kokoro updates or deletes audit rows.
func (s *Store) WriteReflection(ctx context.Context, e soul.AuditEntry) error {
	var contextJSON sql.NullString
	if len(e.Context) > 0 {
		data, err := json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal reflection context: %w", err)
		}
		contextJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reflection_audit (ts, trace_id, persona_id, memory_id, thought_text, word, fate, reasoning, context_json, mood, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp.UTC(), e.TraceID, e.PersonaID, e.MemoryID, e.ThoughtText,
		e.Word, string(e.Fate), nullString(e.Reasoning), contextJSON, nullString(e.Mood), e.Score)

	if err != nil {
		return fmt.Errorf("failed to write reflection audit: %w", err)
	}

	return nil
}

// RecentReflections retrieves recent audit entries, newest first.
func (s *Store) RecentReflections(ctx context.Context, limit int) ([]soul.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, trace_id, persona_id, memory_id, thought_text, word, fate, reasoning, context_json, mood, score
		FROM reflection_audit
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reflection audit: %w", err)
	}
	defer rows.Close()

	return scanReflections(rows)
}

// CountReflections returns the total number of audit entries.
func (s *Store) CountReflections(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reflection_audit").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reflection audit: %w", err)
	}
	return count, nil
}

// ReflectionsByTrace retrieves all audit entries for a trace ID in the order
// they were written.
func (s *Store) ReflectionsByTrace(ctx context.Context, traceID string) ([]soul.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, trace_id, persona_id, memory_id, thought_text, word, fate, reasoning, context_json, mood, score
		FROM reflection_audit
		WHERE trace_id = ?
		ORDER BY id ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reflection audit by trace: %w", err)
	}
	defer rows.Close()

	return scanReflections(rows)
}

func scanReflections(rows *sql.Rows) ([]soul.AuditEntry, error) {
	var entries []soul.AuditEntry
	for rows.Next() {
		var e soul.AuditEntry
		var fate string
		var reasoning, contextJSON, mood sql.NullString
		err := rows.Scan(
			&e.Timestamp, &e.TraceID, &e.PersonaID, &e.MemoryID, &e.ThoughtText,
			&e.Word, &fate, &reasoning, &contextJSON, &mood, &e.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reflection audit entry: %w", err)
		}
		e.Fate = soul.Fate(fate)
		e.Reasoning = reasoning.String
		e.Mood = mood.String
		if contextJSON.Valid && contextJSON.String != "" {
			if err := json.Unmarshal([]byte(contextJSON.String), &e.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reflection context: %w", err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reflection audit: %w", err)
	}

	return entries, nil
}

// Audit returns the soul-facing view of the reflection audit log.
func (s *Store) Audit() soul.AuditSink {
	return auditView{s}
}

type auditView struct{ s *Store }

var _ soul.AuditSink = auditView{}

func (v auditView) Append(ctx context.Context, e soul.AuditEntry) error {
	return v.s.WriteReflection(ctx, e)
}
