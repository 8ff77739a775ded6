package soul

import (
	"context"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

// Fate is the outcome of a reflection.
type Fate string

const (
	FateAscended Fate = "ascended"
	FatePromoted Fate = "promoted"
	FateFading   Fate = "fading"
)

// The fallback decision, applied whenever the oracle fails, times out, or
// returns something unusable, and on every truncation fade.
const (
	FallbackWord      = "fleeting"
	FallbackReasoning = "default decision"
)

// Decision is a validated oracle verdict on a checkpointed thought.
// Implementations of Oracle must only return decisions whose Fate is one of
// the three literals; the engine trusts it without re-checking.
type Decision struct {
	Word        string
	Fate        Fate
	Reasoning   string
	Realization *RealizationHint
}

// RealizationHint is an oracle request to mint a new self-realization. Only
// honored when the fate is ascended.
type RealizationHint struct {
	Word            string
	ColorHex        string
	FaceDescription string
}

// FallbackDecision returns the decision used when no oracle verdict is
// available: the thought fades.
func FallbackDecision() Decision {
	return Decision{
		Word:      FallbackWord,
		Fate:      FateFading,
		Reasoning: FallbackReasoning,
	}
}

// OracleRequest carries everything the decision oracle sees about a
// checkpointed thought.
type OracleRequest struct {
	PersonaID   string
	ThoughtText string
	Emotions    emotion.Snapshot
	Mood        string
	STMCount    int
	GoldenCount int
}

// Oracle decides the fate of a checkpointed thought. Implementations own
// their transport, timeout, and output validation; on any failure they
// return a non-nil error and the engine applies the fallback. The call must
// not outlive the request timeout.
type Oracle interface {
	Decide(ctx context.Context, req OracleRequest) (Decision, error)
}
