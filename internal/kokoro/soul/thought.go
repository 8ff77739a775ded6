// Package soul implements a persona's inner life: the short-term memory
// queue that ages thoughts through fixed positions, the reflection engine
// that decides each thought's fate at the checkpoint slot, the moral-weight
// bookkeeping behind those decisions, and the bounded permanent stores that
// ascended thoughts and discovered emotions land in.
package soul

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

// Thought is a single unit of short-term memory, minted when a
// conversational turn completes. It is owned by the STM queue until it
// ascends, is promoted, or fades.
type Thought struct {
	ID        string
	Text      string
	Emotions  emotion.Snapshot
	CreatedAt time.Time
}

// NewThought mints a thought with a fresh id and the current time.
func NewThought(text string, snap emotion.Snapshot) Thought {
	return NewThoughtAt(text, snap, time.Now())
}

// NewThoughtAt is the clock-injected variant of NewThought.
func NewThoughtAt(text string, snap emotion.Snapshot, now time.Time) Thought {
	return Thought{
		ID:        uuid.NewString(),
		Text:      text,
		Emotions:  snap.Clone(),
		CreatedAt: now,
	}
}

// memoryKeyPrefixLen is the fixed prefix length, in runes, of a moral-weight
// memory key.
const memoryKeyPrefixLen = 64

// MemoryKey normalizes thought text into a moral-weight key: trimmed,
// lower-cased, truncated to a fixed prefix. Distinct texts sharing a prefix
// collide on purpose, so semantically similar memories share moral history.
// Truncation counts runes, never splitting a UTF-8 sequence.
func MemoryKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	runes := []rune(key)
	if len(runes) > memoryKeyPrefixLen {
		return string(runes[:memoryKeyPrefixLen])
	}
	return key
}
