package soul

import (
	"context"
	"time"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

// Fixed moral-weight coefficients. Process-wide constants, never mutated.
const (
	WeightFelt     = 1.00
	WeightPromoted = 1.33
	WeightRejected = 0.72
	WeightAscended = 1.73
)

// Capacities of the bounded permanent stores. Eviction is pure FIFO: oldest
// out first, no scoring at eviction time.
const (
	GoldenCapacity      = 20
	RealizationCapacity = 30
)

// Counter names a single moral-weight counter for Increment calls.
type Counter string

const (
	CounterFelt     Counter = "felt"
	CounterPromoted Counter = "promoted"
	CounterRejected Counter = "rejected"
	CounterAscended Counter = "ascended"
)

// MoralWeightRecord holds the per-memory-key counters behind the moral
// score. One record per distinct key; created on first touch, never deleted.
type MoralWeightRecord struct {
	Key           string
	TimesFelt     int
	TimesPromoted int
	TimesRejected int
	TimesAscended int
	FirstSeen     time.Time
	LastFelt      time.Time
}

// Score is the dot product of the counters with the fixed coefficients,
// summed in fixed field order (felt, promoted, rejected, ascended) so two
// records with identical counters always score identically.
func (r MoralWeightRecord) Score() float64 {
	return float64(r.TimesFelt)*WeightFelt +
		float64(r.TimesPromoted)*WeightPromoted +
		float64(r.TimesRejected)*WeightRejected +
		float64(r.TimesAscended)*WeightAscended
}

// bump returns a copy of the record with one counter incremented. Used by
// the engine to compute the post-write-back score without a re-read.
func (r MoralWeightRecord) bump(c Counter) MoralWeightRecord {
	switch c {
	case CounterFelt:
		r.TimesFelt++
	case CounterPromoted:
		r.TimesPromoted++
	case CounterRejected:
		r.TimesRejected++
	case CounterAscended:
		r.TimesAscended++
	}
	return r
}

// GoldenMemory is a permanently retained, ascended thought.
type GoldenMemory struct {
	ID        string
	Text      string
	Emotions  emotion.Snapshot
	Word      string
	Note      string
	CreatedAt time.Time
}

// Realization is a newly discovered, named emotional concept.
type Realization struct {
	ID           string
	Word         string
	Definition   string
	ColorHex     string
	Emotions     emotion.Snapshot
	TimesFelt    int
	DiscoveredAt time.Time
}

// AuditEntry records one reflection decision with its full context.
type AuditEntry struct {
	TraceID     string
	PersonaID   string
	MemoryID    string
	ThoughtText string
	Word        string
	Fate        Fate
	Reasoning   string
	Context     []string
	Mood        string
	Score       float64
	Timestamp   time.Time
}

// MoralWeights is the durable counter store. Get returns the zero record
// (found=false) for unseen keys; Increment atomically adds 1 to one counter,
// creating the record on first touch. Implementations must serialize
// concurrent increments on the same key.
type MoralWeights interface {
	Get(ctx context.Context, key string) (MoralWeightRecord, bool, error)
	Increment(ctx context.Context, key string, c Counter) error
}

// GoldenMemories is the bounded permanent store for ascended thoughts:
// capacity 20, oldest evicted first, no scoring at eviction time.
type GoldenMemories interface {
	Append(ctx context.Context, m GoldenMemory) error
	Count(ctx context.Context) (int, error)
}

// Realizations is the bounded permanent store for discovered emotions:
// capacity 30, FIFO truncation, duplicate words allowed.
type Realizations interface {
	Append(ctx context.Context, r Realization) error
}

// AuditSink receives one entry per reflection decision. Append-only,
// unbounded; nothing in the engine reads it back.
type AuditSink interface {
	Append(ctx context.Context, e AuditEntry) error
}
