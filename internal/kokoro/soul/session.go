package soul

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

// Session is the volatile, per-persona soul state: the STM queue and the
// live emotional state. It is rebuilt empty on restart; only the durable
// stores survive. The embedded mutex serializes turns, so reflections for
// one persona always run in push order while independent personas proceed
// in parallel.
type Session struct {
	ID        string
	PersonaID string
	STM       *ShortTermMemory
	Emotions  *emotion.State
	CreatedAt time.Time

	mu sync.Mutex
}

// NewSession creates an empty session for a persona.
func NewSession(personaID string, state *emotion.State) *Session {
	if state == nil {
		state = emotion.NewState(emotion.DefaultStateConfig())
	}
	return &Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		STM:       NewShortTermMemory(),
		Emotions:  state,
		CreatedAt: time.Now(),
	}
}
