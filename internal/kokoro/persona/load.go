package persona

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

//go:embed card.schema.json
var cardSchemaJSON string

// cardSchema is compiled once at package load. The schema is embedded, so a
// compile failure is a programming error, not an input error.
var cardSchema = jsonschema.MustCompileString("card.schema.json", cardSchemaJSON)

// idPattern constrains persona ids to filesystem- and key-safe slugs.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Parse decodes a persona card YAML document and validates it. It is the
// canonical entry point for loading cards: shape is checked against the
// embedded JSON schema (which reports the offending field path), then the
// decoded card is structurally validated.
func Parse(data []byte) (*Card, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("persona parse: %w", err)
	}
	if err := cardSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("persona schema: %w", err)
	}

	var card Card
	if err := yaml.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("persona parse: %w", err)
	}
	if err := Validate(&card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Validate checks a Card for semantic correctness. It returns the first
// validation error encountered, or nil if the card is valid.
func Validate(card *Card) error {
	if card == nil {
		return fmt.Errorf("card must not be nil")
	}

	// ── API version ──────────────────────────────────────────────────────────
	if card.APIVersion != SpecVersion {
		return fmt.Errorf("apiVersion must be %q, got %q", SpecVersion, card.APIVersion)
	}

	// ── Identity ─────────────────────────────────────────────────────────────
	if !idPattern.MatchString(card.Persona.ID) {
		return fmt.Errorf("persona.id %q must be a lowercase slug (%s)", card.Persona.ID, idPattern)
	}
	if strings.TrimSpace(card.Persona.Name) == "" {
		return fmt.Errorf("persona.name must not be empty")
	}

	// ── Chat ─────────────────────────────────────────────────────────────────
	if err := validateChat(card.Chat); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	// ── Emotions ─────────────────────────────────────────────────────────────
	if err := validateEmotions(card.Emotions); err != nil {
		return fmt.Errorf("emotions: %w", err)
	}

	// ── Matrix ───────────────────────────────────────────────────────────────
	if err := validateMatrix(card.Matrix); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}

	return nil
}

// LoadFile reads and parses one persona card from disk.
func LoadFile(path string) (*Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read card: %w", err)
	}
	card, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return card, nil
}

// LoadDir loads every .yaml/.yml card in dir, in filename order. Two cards
// sharing a persona id is an error: the id keys the persona's database file
// and its session.
func LoadDir(dir string) ([]*Card, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("persona: read card directory: %w", err)
	}

	var cards []*Card
	seen := make(map[string]string) // persona id -> filename
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		card, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[card.Persona.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate id %q in %s (already defined in %s)",
				card.Persona.ID, entry.Name(), prev)
		}
		seen[card.Persona.ID] = entry.Name()
		cards = append(cards, card)
	}
	return cards, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func validateChat(c Chat) error {
	if c.Temperature < 0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature %.2f is outside valid range [0.0, 2.0]", c.Temperature)
	}
	return nil
}

func validateEmotions(e Emotions) error {
	for name, intensity := range e.Baseline {
		if !emotion.Known(name) {
			return fmt.Errorf("baseline key %q is not a known emotion", name)
		}
		if intensity < 0 || intensity > 100 {
			return fmt.Errorf("baseline.%s intensity %.1f is outside [0, 100]", name, intensity)
		}
	}
	return nil
}

func validateMatrix(m Matrix) error {
	for _, room := range m.Rooms {
		if room != "*" && !strings.HasPrefix(room, "!") {
			return fmt.Errorf("rooms entry %q must start with '!' or be \"*\"", room)
		}
	}
	return nil
}
