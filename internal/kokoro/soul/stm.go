package soul

import "sync"

const (
	// STMCapacity is the fixed size of the short-term memory queue.
	STMCapacity = 6

	// checkpointIndex is the 0-based queue position (slot 3, counting from
	// the newest) at which an unreflected thought is flagged for reflection.
	checkpointIndex = 2
)

// stmEntry pairs a thought with its reflection marker. The marker lives in
// the queue, not on the thought, and is never persisted.
type stmEntry struct {
	thought   Thought
	reflected bool
}

// ShortTermMemory is a fixed-capacity aging queue of thoughts, newest first.
// Slot numbers are purely positional, recomputed from queue order on every
// push. Safe for concurrent use, though each persona session drives its
// queue from a single turn at a time.
type ShortTermMemory struct {
	mu    sync.Mutex
	slots []stmEntry
}

// NewShortTermMemory returns an empty queue.
func NewShortTermMemory() *ShortTermMemory {
	return &ShortTermMemory{slots: make([]stmEntry, 0, STMCapacity+1)}
}

// Push prepends a thought and recomputes positions.
//
// If the push leaves an unreflected thought exactly at the checkpoint slot,
// that thought is returned as checkpoint and its marker is set immediately,
// before any oracle is consulted, so it can never be flagged twice. If the
// push grows the queue past capacity, the oldest entries are removed and
// returned as faded, except an entry that is also this push's checkpoint
// (its fate belongs to the pending reflection, not to truncation).
func (m *ShortTermMemory) Push(th Thought) (checkpoint *Thought, faded []Thought) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots = append(m.slots, stmEntry{})
	copy(m.slots[1:], m.slots[:len(m.slots)-1])
	m.slots[0] = stmEntry{thought: th}

	if len(m.slots) > checkpointIndex {
		e := &m.slots[checkpointIndex]
		if !e.reflected {
			e.reflected = true
			t := e.thought
			checkpoint = &t
		}
	}

	for len(m.slots) > STMCapacity {
		last := m.slots[len(m.slots)-1]
		m.slots = m.slots[:len(m.slots)-1]
		if checkpoint != nil && last.thought.ID == checkpoint.ID {
			continue
		}
		faded = append(faded, last.thought)
	}
	return checkpoint, faded
}

// Remove extracts a thought by id, returning it and whether it was present.
func (m *ShortTermMemory) Remove(id string) (Thought, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.slots {
		if e.thought.ID == id {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return e.thought, true
		}
	}
	return Thought{}, false
}

// Promote moves a thought back to slot 1, its reflection marker preserved,
// so it ages through the window again without reflecting twice. Returns
// false when no thought with that id is queued.
func (m *ShortTermMemory) Promote(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.slots {
		if e.thought.ID != id {
			continue
		}
		copy(m.slots[1:i+1], m.slots[:i])
		m.slots[0] = e
		return true
	}
	return false
}

// Snapshot returns an independent copy of the queue, newest first. Emotion
// snapshots are cloned so callers can never mutate queued state.
func (m *ShortTermMemory) Snapshot() []Thought {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Thought, len(m.slots))
	for i, e := range m.slots {
		t := e.thought
		t.Emotions = t.Emotions.Clone()
		out[i] = t
	}
	return out
}

// Texts returns just the queued thought texts, newest first. Used for audit
// context and prompt building.
func (m *ShortTermMemory) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.slots))
	for i, e := range m.slots {
		out[i] = e.thought.Text
	}
	return out
}

// Len reports current occupancy.
func (m *ShortTermMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
