package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// colorHexPattern matches the "#rrggbb" form required of realization colors.
var colorHexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Judge turns raw provider verdicts into decisions the engine can trust.
// It applies the per-persona rate limit, calls the provider, and normalizes
// every field of the answer; the engine never sees an invalid fate.
type Judge struct {
	provider Provider
	limiter  *RateLimiter
	logger   *slog.Logger
}

var _ soul.Oracle = (*Judge)(nil)

// NewJudge wraps a provider. A nil limiter disables throttling; a nil
// logger falls back to slog.Default().
func NewJudge(provider Provider, limiter *RateLimiter, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{provider: provider, limiter: limiter, logger: logger}
}

// Decide implements soul.Oracle. Provider and throttling failures surface
// as errors; the engine applies its fallback fate on any of them.
func (j *Judge) Decide(ctx context.Context, req soul.OracleRequest) (soul.Decision, error) {
	if j.limiter != nil && !j.limiter.Allow(req.PersonaID) {
		return soul.Decision{}, fmt.Errorf("oracle: persona %s: %w", req.PersonaID, ErrRateLimit)
	}

	v, err := j.provider.Judge(ctx, ThoughtContext{
		PersonaID:   req.PersonaID,
		ThoughtText: req.ThoughtText,
		Emotions:    map[string]float64(req.Emotions),
		Mood:        req.Mood,
		STMCount:    req.STMCount,
		GoldenCount: req.GoldenCount,
	})
	if err != nil {
		return soul.Decision{}, err
	}
	return j.normalize(req, v), nil
}

// normalize coerces a raw verdict: an unrecognized fate becomes fading, a
// missing word becomes the fallback word, and a realization block that
// fails validation is dropped whole rather than minted half-formed.
func (j *Judge) normalize(req soul.OracleRequest, v *Verdict) soul.Decision {
	fate := soul.Fate(strings.ToLower(strings.TrimSpace(v.Fate)))
	switch fate {
	case soul.FateAscended, soul.FatePromoted, soul.FateFading:
	default:
		j.logger.Debug("oracle: unrecognized fate coerced to fading",
			"persona_id", req.PersonaID,
			"fate", v.Fate,
		)
		fate = soul.FateFading
	}

	word := strings.TrimSpace(v.Word)
	if word == "" {
		word = soul.FallbackWord
	}

	dec := soul.Decision{
		Word:      word,
		Fate:      fate,
		Reasoning: strings.TrimSpace(v.Reasoning),
	}

	if fate == soul.FateAscended && v.Realization != nil {
		if hint, ok := j.realizationHint(req, v.Realization); ok {
			dec.Realization = &hint
		}
	}
	return dec
}

// realizationHint validates one realization block: a word, a definition,
// and a well-formed color are all required.
func (j *Judge) realizationHint(req soul.OracleRequest, r *VerdictRealization) (soul.RealizationHint, bool) {
	word := strings.TrimSpace(r.Word)
	face := strings.TrimSpace(r.FaceDescription)
	color := strings.TrimSpace(r.ColorHex)
	if word == "" || face == "" || !colorHexPattern.MatchString(color) {
		j.logger.Debug("oracle: invalid realization block dropped",
			"persona_id", req.PersonaID,
			"word", r.Word,
			"color", r.ColorHex,
		)
		return soul.RealizationHint{}, false
	}
	return soul.RealizationHint{
		Word:            word,
		ColorHex:        color,
		FaceDescription: face,
	}, true
}
