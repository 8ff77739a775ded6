package emotion

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// StateConfig controls how a persona's emotional state moves.
type StateConfig struct {
	// Baseline is the resting intensity per emotion (usually from the
	// persona card). Keys absent from the baseline rest at zero. Unknown
	// keys are ignored.
	Baseline Snapshot

	// Blend is the weight of a new reading against the current intensity:
	// next = current*(1-Blend) + reading*Blend. Must be in (0,1].
	Blend float64

	// DecayPerMinute is how many intensity points each emotion drifts back
	// toward its baseline per minute of inactivity. Decay is applied lazily,
	// before reads and writes.
	DecayPerMinute float64
}

// DefaultStateConfig returns the tuning used when the persona card does not
// override it.
func DefaultStateConfig() StateConfig {
	return StateConfig{
		Blend:          0.35,
		DecayPerMinute: 1.5,
	}
}

// State is a persona's live emotional state: a full Vector that new readings
// pull on and that drifts back toward the baseline over time. Safe for
// concurrent use.
type State struct {
	mu        sync.Mutex
	cfg       StateConfig
	vector    Vector
	baseline  Vector
	lastTouch time.Time
}

// NewState creates a State resting at the configured baseline.
func NewState(cfg StateConfig) *State {
	def := DefaultStateConfig()
	if cfg.Blend <= 0 || cfg.Blend > 1 {
		cfg.Blend = def.Blend
	}
	if cfg.DecayPerMinute < 0 {
		cfg.DecayPerMinute = def.DecayPerMinute
	}
	baseline := VectorFrom(cfg.Baseline)
	return &State{
		cfg:       cfg,
		vector:    baseline.Clone(),
		baseline:  baseline,
		lastTouch: time.Now(),
	}
}

// Apply folds a new reading into the state.
func (s *State) Apply(reading Snapshot) {
	s.applyAt(reading, time.Now())
}

// applyAt is the clock-injected core of Apply.
func (s *State) applyAt(reading Snapshot, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayLocked(now)
	for k, val := range reading {
		cur, ok := s.vector[k]
		if !ok {
			continue
		}
		s.vector[k] = Clamp(cur*(1-s.cfg.Blend) + Clamp(val)*s.cfg.Blend)
	}
}

// Vector returns a copy of the current state after lazy decay.
func (s *State) Vector() Vector {
	return s.vectorAt(time.Now())
}

func (s *State) vectorAt(now time.Time) Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayLocked(now)
	return s.vector.Clone()
}

// Mood derives the display mood from the current state.
func (s *State) Mood() string {
	return s.moodAt(time.Now())
}

func (s *State) moodAt(now time.Time) string {
	return MoodOf(s.vectorAt(now))
}

// decayLocked drifts every intensity toward its baseline by elapsed time.
// Caller holds the mutex.
func (s *State) decayLocked(now time.Time) {
	elapsed := now.Sub(s.lastTouch)
	s.lastTouch = now
	if elapsed <= 0 || s.cfg.DecayPerMinute == 0 {
		return
	}
	step := s.cfg.DecayPerMinute * elapsed.Minutes()
	for _, k := range Names {
		cur := s.vector[k]
		base := s.baseline[k]
		switch {
		case cur > base:
			cur -= step
			if cur < base {
				cur = base
			}
		case cur < base:
			cur += step
			if cur > base {
				cur = base
			}
		}
		s.vector[k] = cur
	}
}

// moodThreshold is the minimum dominant intensity before the state reads as
// anything other than neutral.
const moodThreshold = 20.0

// moodBands maps each emotion to its low- and high-intensity display moods.
// The high band starts at 70.
var moodBands = map[string][2]string{
	Happy:      {"content", "ecstatic"},
	Angry:      {"cross", "furious"},
	Annoyed:    {"irritable", "exasperated"},
	Pondering:  {"pensive", "deep in thought"},
	Reflecting: {"thoughtful", "introspective"},
	Curious:    {"inquisitive", "fascinated"},
	Playful:    {"lighthearted", "mischievous"},
	Melancholy: {"subdued", "sorrowful"},
	Mysterious: {"enigmatic", "inscrutable"},
}

// MoodOf derives a display mood string from a vector: the dominant emotion's
// band descriptor, or "neutral" when nothing rises above the threshold.
func MoodOf(v Vector) string {
	name, intensity := v.Dominant()
	if name == "" || intensity < moodThreshold {
		return "neutral"
	}
	bands, ok := moodBands[name]
	if !ok {
		return "neutral"
	}
	if intensity >= 70 {
		return bands[1]
	}
	return bands[0]
}

// Describe renders a vector for status output: dominant mood plus the
// non-zero intensities in canonical order.
func Describe(v Vector) string {
	parts := make([]string, 0, len(Names))
	for _, k := range Names {
		if val := v[k]; val > 0 {
			parts = append(parts, fmt.Sprintf("%s %.0f", k, val))
		}
	}
	if len(parts) == 0 {
		return "neutral"
	}
	return MoodOf(v) + " (" + strings.Join(parts, ", ") + ")"
}
