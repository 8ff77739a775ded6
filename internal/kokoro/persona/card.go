// Package persona loads and validates Kokoro persona cards.
//
// A persona card is the versioned YAML file that defines one persona: who it
// is, how it chats, where its emotions rest, whether it carries a soul, and
// which Matrix rooms it lives in. Cards are validated twice at load time:
// shape against an embedded JSON schema, then semantics (id format, known
// emotion keys, intensity ranges) in Go. An invalid card is a fatal startup
// error; a daemon never runs with a half-loaded persona.
package persona

// SpecVersion is the API version string required in every persona card.
const SpecVersion = "kokoro/v1"

// Card is the root type for a persona card.
type Card struct {
	// APIVersion must be "kokoro/v1".
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`

	// Persona identifies the persona.
	Persona Identity `yaml:"persona" json:"persona"`

	// Chat configures how the persona replies.
	Chat Chat `yaml:"chat,omitempty" json:"chat,omitempty"`

	// Emotions configures the persona's emotional baseline.
	Emotions Emotions `yaml:"emotions,omitempty" json:"emotions,omitempty"`

	// Soul enables the reflection engine for this persona.
	Soul Soul `yaml:"soul,omitempty" json:"soul,omitempty"`

	// Matrix defines where the persona lives.
	Matrix Matrix `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

// Identity holds descriptive information about a persona.
type Identity struct {
	// ID is the stable persona identifier. Lowercase slug; it names the
	// persona's database file and keys its session, so it must never change
	// once the persona has memories.
	ID string `yaml:"id" json:"id"`

	// Name is the display name the persona answers to.
	Name string `yaml:"name" json:"name"`

	// Description is a human-readable summary of who the persona is.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Chat configures the persona's reply generation.
type Chat struct {
	// SystemPrompt is the base prompt injected at the start of every reply
	// context. Mood, golden memories, and minted vocabulary are appended to
	// it at runtime.
	SystemPrompt string `yaml:"systemPrompt,omitempty" json:"systemPrompt,omitempty"`

	// Model is the chat model name (e.g. "gpt-4o-mini"). Empty selects the
	// responder's default.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Temperature controls reply variety. Valid range: 0.0-2.0. Zero (or
	// absent) selects the responder's default.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// Emotions configures the persona's resting emotional state.
type Emotions struct {
	// Baseline maps emotion keys to resting intensities in [0, 100]. Keys
	// must be drawn from the nine canonical emotions; absent keys rest at
	// zero. The live state decays back toward this baseline between turns.
	Baseline map[string]float64 `yaml:"baseline,omitempty" json:"baseline,omitempty"`
}

// Soul configures the persona's inner life.
type Soul struct {
	// Enabled turns on the reflection engine: short-term memory, checkpoint
	// reflection, moral weights, golden memories, self-realizations. A
	// persona without a soul still chats; it just never remembers.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Matrix defines where the persona is present.
type Matrix struct {
	// Rooms is a list of Matrix room IDs the persona joins and listens in.
	// Use "*" to accept invitations to any room, or list specific room IDs
	// starting with "!".
	Rooms []string `yaml:"rooms,omitempty" json:"rooms,omitempty"`
}
