package chat

import (
	"sync"
	"time"
)

// TrackerConfig holds configuration for the conversation Tracker.
type TrackerConfig struct {
	// Cooldown is the duration of inactivity after which a room's thread
	// is considered over and its history is dropped. Default: 15 minutes.
	Cooldown time.Duration

	// MaxMessages is the maximum number of messages kept per room. When
	// exceeded, the oldest messages are dropped (sliding window).
	// Default: 30.
	MaxMessages int

	// MaxTokens is the estimated token budget per room. When exceeded, the
	// oldest messages are dropped until under budget. Default: 6000.
	MaxTokens int
}

// DefaultTrackerConfig returns a TrackerConfig with the documented defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Cooldown:    15 * time.Minute,
		MaxMessages: 30,
		MaxTokens:   6000,
	}
}

// thread is one room's rolling message buffer.
type thread struct {
	messages  []Message
	lastMsgAt time.Time
}

// Tracker keeps the persona's per-room conversation history. The history
// exists only to give replies continuity; nothing here is persisted, and a
// stale thread simply starts over. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	config  TrackerConfig
	threads map[string]*thread // key: roomID
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultTrackerConfig().Cooldown
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultTrackerConfig().MaxMessages
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultTrackerConfig().MaxTokens
	}
	return &Tracker{
		config:  cfg,
		threads: make(map[string]*thread),
	}
}

// Record appends a message to the room's thread. A thread that has gone
// stale (past the cooldown) is dropped first, so the reply that follows a
// long silence starts from a clean slate.
func (t *Tracker) Record(roomID, role, content string) {
	t.recordAt(roomID, role, content, time.Now())
}

// recordAt is the time-injectable core of Record (for testing).
func (t *Tracker) recordAt(roomID, role, content string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	th := t.threads[roomID]
	if th != nil && now.Sub(th.lastMsgAt) > t.config.Cooldown {
		th = nil
	}
	if th == nil {
		th = &thread{}
		t.threads[roomID] = th
	}

	th.messages = append(th.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	th.lastMsgAt = now

	t.enforceBufferLimits(th)
}

// History returns a copy of the room's thread, oldest first. A stale or
// unknown room yields nil.
func (t *Tracker) History(roomID string) []Message {
	return t.historyAt(roomID, time.Now())
}

// historyAt is the time-injectable core of History (for testing).
func (t *Tracker) historyAt(roomID string, now time.Time) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	th := t.threads[roomID]
	if th == nil || now.Sub(th.lastMsgAt) > t.config.Cooldown {
		return nil
	}
	out := make([]Message, len(th.messages))
	copy(out, th.messages)
	return out
}

// ExpireStale drops all threads whose last message is older than the
// cooldown threshold relative to now. Returns how many threads were
// dropped. Intended for a periodic housekeeping sweep.
func (t *Tracker) ExpireStale(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := 0
	for roomID, th := range t.threads {
		if now.Sub(th.lastMsgAt) > t.config.Cooldown {
			delete(t.threads, roomID)
			dropped++
		}
	}
	return dropped
}

// enforceBufferLimits trims the message buffer to stay within configured
// limits. Oldest messages are dropped first. Must be called with mu held.
func (t *Tracker) enforceBufferLimits(th *thread) {
	if len(th.messages) > t.config.MaxMessages {
		excess := len(th.messages) - t.config.MaxMessages
		th.messages = th.messages[excess:]
	}

	for len(th.messages) > 1 && estimateTokens(th.messages) > t.config.MaxTokens {
		th.messages = th.messages[1:]
	}
}

// estimateTokens returns a rough token count for a message slice.
// Uses ~4 characters per token (common English heuristic) plus a small
// per-message overhead for role framing. Intentionally imprecise; the
// budget is a soft limit that keeps the context window bounded.
func estimateTokens(msgs []Message) int {
	const charsPerToken = 4
	const perMessageOverhead = 4 // role label, delimiters

	total := 0
	for _, m := range msgs {
		total += len(m.Content)/charsPerToken + perMessageOverhead
	}
	return total
}
