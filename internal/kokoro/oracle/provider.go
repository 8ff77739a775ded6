// Package oracle provides the LLM-backed decision layer for checkpoint
// reflection.
//
// The oracle sits between the soul engine and the model API. Its sole
// responsibility is judgement: given one checkpointed thought with its
// emotional context, return a structured Verdict (word + fate + reasoning,
// optionally a self-realization). The engine owns everything that happens
// with the verdict; the oracle never touches STM or the stores.
//
// Invariants:
//   - The oracle only judges; a failed or throttled call degrades to the
//     engine's fallback fate, never to a dropped turn.
//   - The model sees the thought text, emotion snapshot, and queue counts
//     only; it never sees store contents or persona configuration.
//   - Raw model output is untrusted: Judge validates and coerces every
//     field before anything reaches the engine.
package oracle

import (
	"context"
	"errors"
)

// ErrRateLimit is returned when the upstream model API reports a
// rate-limiting condition (HTTP 429), or when the per-persona limiter has
// exhausted its window. The engine falls back to the fading fate, so a
// throttled persona keeps talking but stops ascending memories until the
// window resets.
var ErrRateLimit = errors.New("oracle: upstream rate limit exceeded")

// ErrMalformedOutput is returned when the model answers with a structurally
// valid HTTP response whose content cannot be interpreted as a Verdict.
var ErrMalformedOutput = errors.New("oracle: malformed response from model")

// Verdict is the raw, unvalidated judgement decoded from model output.
// Field values are whatever the model produced; Judge normalizes them into
// a soul.Decision.
type Verdict struct {
	// Word is a single evocative word naming what the thought was about.
	Word string `json:"word"`

	// Fate is the model's choice: "ascended", "promoted", or "fading".
	// Anything else is coerced to fading downstream.
	Fate string `json:"fate"`

	// Reasoning is a short in-character justification for the fate.
	Reasoning string `json:"reasoning"`

	// Realization is the optional new-word discovery attached to an
	// ascension. Ignored for any other fate.
	Realization *VerdictRealization `json:"realization,omitempty"`
}

// VerdictRealization is the raw self-realization block inside a Verdict.
type VerdictRealization struct {
	// Word is the invented or rediscovered word being minted.
	Word string `json:"word"`

	// ColorHex is the color the persona associates with the word, in
	// "#rrggbb" form.
	ColorHex string `json:"color_hex"`

	// FaceDescription is the model's description of what the word means,
	// stored as the realization's definition.
	FaceDescription string `json:"face_description"`
}

// ThoughtContext carries everything the provider may show the model about
// a checkpointed thought. It mirrors the engine's oracle request without
// importing the soul package, so providers stay transport-only.
type ThoughtContext struct {
	// PersonaID identifies the persona doing the reflecting.
	PersonaID string

	// ThoughtText is the text of the thought at the checkpoint slot.
	ThoughtText string

	// Emotions maps emotion names to intensities at the time the thought
	// was minted.
	Emotions map[string]float64

	// Mood is the persona's current one-word mood.
	Mood string

	// STMCount is the short-term memory occupancy after the push.
	STMCount int

	// GoldenCount is how many golden memories the persona already holds.
	GoldenCount int
}

// Provider performs one raw judgement call against a model API.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// When an implementation is unavailable (network error, throttling), it
// returns a descriptive error; the engine degrades gracefully to the
// fallback fate.
type Provider interface {
	// Judge sends the thought context to the underlying model and returns
	// its raw verdict.
	Judge(ctx context.Context, tc ThoughtContext) (*Verdict, error)
}
