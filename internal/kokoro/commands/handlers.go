package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Kokoro/common/version"
	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
	"github.com/bdobrica/Kokoro/internal/kokoro/store"
)

// PersonaStatus is a live snapshot of one persona, supplied by the runtime.
type PersonaStatus struct {
	ID       string
	Name     string
	Mood     string
	Emotions emotion.Vector
	STMCount int
}

// Runtime is the surface the command handlers read live persona state from.
// The app implements it; tests use fakes.
type Runtime interface {
	// PersonaIDs returns the ids of the loaded personas, sorted.
	PersonaIDs() []string

	// Status returns a live snapshot of one persona.
	Status(personaID string) (PersonaStatus, bool)

	// Store returns the persona's durable store.
	Store(personaID string) (*store.Store, bool)
}

// Handlers holds all command handlers and their dependencies
type Handlers struct {
	runtime Runtime
}

// NewHandlers creates a new Handlers instance
func NewHandlers(rt Runtime) *Handlers {
	return &Handlers{runtime: rt}
}

// HandleHelp shows available commands
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	help := `**Kokoro**

**Commands:**
• !kokoro status [persona] - Mood, emotions, and memory counts
• !kokoro golden [persona] [n] - Newest golden memories
• !kokoro realizations [persona] [n] - Minted self-realization words
• !kokoro weights [persona] [n] - Highest-scored moral weights
• !kokoro audit [persona] [n] - Recent reflection decisions
• !kokoro version - Show version information
• !kokoro help - Show this help message

When only one persona is loaded, [persona] may be omitted.
All commands are read-only.`
	return help, nil
}

// HandleVersion shows version information
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return fmt.Sprintf("**Kokoro**\nVersion: %s\nCommit: %s\nBuild Time: %s",
		version.Version, version.GitCommit, version.BuildTime), nil
}

// HandleStatus shows a persona's mood, emotion vector, and memory counts
func (h *Handlers) HandleStatus(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	personaID, err := h.resolvePersona(cmd.Subcommand)
	if err != nil {
		return "", err
	}

	status, ok := h.runtime.Status(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no live status", personaID)
	}
	st, ok := h.runtime.Store(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no store", personaID)
	}

	goldenCount, err := st.CountGoldenMemories(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count golden memories: %w", err)
	}
	realizationCount, err := st.CountRealizations(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count realizations: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%s** (`%s`)\n", status.Name, status.ID))
	sb.WriteString(fmt.Sprintf("Mood: %s\n", status.Mood))
	sb.WriteString(fmt.Sprintf("Emotions: %s\n", formatVector(status.Emotions)))
	sb.WriteString(fmt.Sprintf("Short-term memory: %d/%d thoughts\n", status.STMCount, soul.STMCapacity))
	sb.WriteString(fmt.Sprintf("Golden memories: %d/%d\n", goldenCount, soul.GoldenCapacity))
	sb.WriteString(fmt.Sprintf("Self-realizations: %d/%d", realizationCount, soul.RealizationCapacity))

	return sb.String(), nil
}

// HandleGolden lists a persona's newest golden memories
func (h *Handlers) HandleGolden(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	personaID, limit, err := h.resolvePersonaAndLimit(cmd, 5)
	if err != nil {
		return "", err
	}
	st, ok := h.runtime.Store(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no store", personaID)
	}

	memories, err := st.ListGoldenMemories(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list golden memories: %w", err)
	}
	if len(memories) == 0 {
		return fmt.Sprintf("%s holds no golden memories yet.", personaID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Golden memories (%s, newest %d)**\n", personaID, len(memories)))
	for _, gm := range memories {
		sb.WriteString(fmt.Sprintf("\n✨ %s **%s**\n", gm.CreatedAt.Format("2006-01-02"), gm.Word))
		sb.WriteString(fmt.Sprintf("   %s\n", gm.Text))
		if gm.Note != "" {
			sb.WriteString(fmt.Sprintf("   note: %s\n", gm.Note))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleRealizations lists a persona's minted self-realization words
func (h *Handlers) HandleRealizations(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	personaID, limit, err := h.resolvePersonaAndLimit(cmd, 10)
	if err != nil {
		return "", err
	}
	st, ok := h.runtime.Store(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no store", personaID)
	}

	realizations, err := st.ListRealizations(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list realizations: %w", err)
	}
	if len(realizations) == 0 {
		return fmt.Sprintf("%s has not minted any words yet.", personaID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Self-realizations (%s, newest %d)**\n", personaID, len(realizations)))
	for _, r := range realizations {
		sb.WriteString(fmt.Sprintf("\n• **%s** %s, felt %d\n", r.Word, r.ColorHex, r.TimesFelt))
		sb.WriteString(fmt.Sprintf("  %s\n", r.Definition))
		sb.WriteString(fmt.Sprintf("  discovered %s\n", r.DiscoveredAt.Format("2006-01-02")))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleWeights lists a persona's highest-scored moral weight records
func (h *Handlers) HandleWeights(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	personaID, limit, err := h.resolvePersonaAndLimit(cmd, 10)
	if err != nil {
		return "", err
	}
	st, ok := h.runtime.Store(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no store", personaID)
	}

	records, err := st.TopWeights(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list moral weights: %w", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("%s has not weighed any memories yet.", personaID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Moral weights (%s, top %d)**\n\n", personaID, len(records)))
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%d. %.2f `%s`\n", i+1, rec.Score(), snippet(rec.Key, 48)))
		sb.WriteString(fmt.Sprintf("   felt %d, promoted %d, rejected %d, ascended %d\n",
			rec.TimesFelt, rec.TimesPromoted, rec.TimesRejected, rec.TimesAscended))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleAudit shows a persona's recent reflection decisions
func (h *Handlers) HandleAudit(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	personaID, limit, err := h.resolvePersonaAndLimit(cmd, 10)
	if err != nil {
		return "", err
	}
	st, ok := h.runtime.Store(personaID)
	if !ok {
		return "", fmt.Errorf("persona %s has no store", personaID)
	}

	entries, err := st.RecentReflections(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("failed to read audit log: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("%s has not reflected yet.", personaID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Recent reflections (%s, last %d)**\n", personaID, len(entries)))
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("\n%s `%s` **%s** %s, score %.2f\n",
			fateEmoji(entry.Fate),
			entry.Timestamp.Format("15:04:05"),
			entry.Word,
			entry.Fate,
			entry.Score,
		))
		sb.WriteString(fmt.Sprintf("   \"%s\"\n", snippet(entry.ThoughtText, 80)))
		sb.WriteString(fmt.Sprintf("   trace %s\n", entry.TraceID))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// --- helpers ---

// resolvePersona picks the persona a command addresses: the explicit
// argument when given, otherwise the sole loaded persona.
func (h *Handlers) resolvePersona(arg string) (string, error) {
	ids := h.runtime.PersonaIDs()
	if arg != "" {
		for _, id := range ids {
			if id == arg {
				return id, nil
			}
		}
		return "", fmt.Errorf("unknown persona %q (loaded: %s)", arg, strings.Join(ids, ", "))
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no personas loaded")
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("several personas are loaded, name one of: %s", strings.Join(ids, ", "))
	}
}

// resolvePersonaAndLimit splits the optional [persona] and [n] arguments of a
// listing command. A numeric token is the count, anything else names the
// persona.
func (h *Handlers) resolvePersonaAndLimit(cmd *Command, def int) (string, int, error) {
	personaArg := ""
	limit := def

	tokens := make([]string, 0, 1+len(cmd.Args))
	if cmd.Subcommand != "" {
		tokens = append(tokens, cmd.Subcommand)
	}
	tokens = append(tokens, cmd.Args...)

	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil {
			limit = n
		} else {
			personaArg = tok
		}
	}
	if limit <= 0 || limit > 50 {
		limit = def
	}

	personaID, err := h.resolvePersona(personaArg)
	if err != nil {
		return "", 0, err
	}
	return personaID, limit, nil
}

func fateEmoji(f soul.Fate) string {
	switch f {
	case soul.FateAscended:
		return "✨"
	case soul.FatePromoted:
		return "🔁"
	default:
		return "🍂"
	}
}

// formatVector renders the non-zero intensities in canonical order.
func formatVector(v emotion.Vector) string {
	parts := make([]string, 0, len(emotion.Names))
	for _, name := range emotion.Names {
		if val := v[name]; val > 0 {
			parts = append(parts, fmt.Sprintf("%s %.0f", name, val))
		}
	}
	if len(parts) == 0 {
		return "at rest"
	}
	return strings.Join(parts, ", ")
}

// snippet truncates s to at most max runes for single-line display.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
