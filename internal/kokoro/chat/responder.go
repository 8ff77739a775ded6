// Package chat produces the persona's conversational replies.
//
// The chat layer is deliberately thin: it renders the persona card's system
// prompt together with the current mood, the golden memories, and the
// persona's minted vocabulary, then asks the model for an in-character
// reply. It holds no memory of its own beyond the per-room history buffer;
// everything durable about the persona lives behind the soul engine.
package chat

import (
	"context"
	"time"
)

// FallbackReply is sent when the responder fails. The turn still ran
// through the soul engine, so a failed reply never loses a thought.
const FallbackReply = "Sorry, I lost my train of thought for a moment. Say that again?"

// Message is a single turn in a conversation.
type Message struct {
	Role      string    // "user" or "assistant"
	Content   string    // message text
	Timestamp time.Time // when this message was recorded
}

// VocabWord is one minted self-realization exposed to the model so the
// persona can use its own words.
type VocabWord struct {
	Word       string
	Definition string
}

// Request carries everything the responder may weave into one reply.
type Request struct {
	// SystemPrompt is the persona card's base prompt.
	SystemPrompt string

	// PersonaName is the display name the persona answers to.
	PersonaName string

	// Mood is the persona's current one-word mood.
	Mood string

	// RecentThoughts are the texts currently in the persona's short-term
	// memory, newest first.
	RecentThoughts []string

	// GoldenMemories are the texts of the persona's permanent memories,
	// newest first.
	GoldenMemories []string

	// Vocabulary is the persona's minted words with their definitions.
	Vocabulary []VocabWord

	// History is the conversation so far, oldest first.
	History []Message

	// UserText is the message being replied to.
	UserText string
}

// Responder produces one in-character reply.
//
// Implementations must be safe for concurrent use. On failure they return
// a descriptive error; the caller falls back to FallbackReply.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// StaticResponder answers every message with a fixed line. Used when no
// model API key is configured, so the daemon still runs end to end.
type StaticResponder struct {
	Reply string
}

// NewStatic returns a StaticResponder. An empty reply defaults to
// FallbackReply.
func NewStatic(reply string) *StaticResponder {
	if reply == "" {
		reply = FallbackReply
	}
	return &StaticResponder{Reply: reply}
}

// Respond implements Responder.
func (s *StaticResponder) Respond(_ context.Context, _ Request) (string, error) {
	return s.Reply, nil
}

var _ Responder = (*StaticResponder)(nil)
