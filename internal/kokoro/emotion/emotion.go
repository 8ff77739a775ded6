// Package emotion models a persona's emotional state: the fixed nine-key
// intensity vector, keyword analysis of incoming text, and the slowly
// decaying state from which the display mood is derived.
package emotion

// The nine canonical emotion keys. The set is closed: intensities change at
// runtime, the key set never does.
const (
	Happy      = "happy"
	Angry      = "angry"
	Annoyed    = "annoyed"
	Pondering  = "pondering"
	Reflecting = "reflecting"
	Curious    = "curious"
	Playful    = "playful"
	Melancholy = "melancholy"
	Mysterious = "mysterious"
)

// Names lists the canonical keys in their fixed order. Iteration that must be
// deterministic (scoring, serialization, display) walks this slice instead of
// ranging over maps.
var Names = []string{
	Happy,
	Angry,
	Annoyed,
	Pondering,
	Reflecting,
	Curious,
	Playful,
	Melancholy,
	Mysterious,
}

// Known reports whether name is one of the nine canonical keys.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Clamp bounds an intensity to [0,100].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Snapshot is a partial emotion reading: intensities for a subset of the
// canonical keys, each in [0,100]. Thoughts and memories carry snapshots;
// the full persona state is a Vector.
type Snapshot map[string]float64

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Dominant returns the highest-intensity key in the snapshot and its
// intensity. Ties resolve to the key earliest in canonical order. An empty
// snapshot yields ("", 0).
func (s Snapshot) Dominant() (string, float64) {
	name := ""
	best := 0.0
	for _, k := range Names {
		v, ok := s[k]
		if !ok {
			continue
		}
		if name == "" || v > best {
			name = k
			best = v
		}
	}
	return name, best
}

// Vector is a full intensity vector: every canonical key present, each value
// in [0,100].
type Vector map[string]float64

// NewVector returns a vector with all nine keys at zero intensity.
func NewVector() Vector {
	v := make(Vector, len(Names))
	for _, k := range Names {
		v[k] = 0
	}
	return v
}

// VectorFrom builds a full vector from a partial snapshot: named keys take
// the snapshot's clamped intensity, the rest start at zero. Unknown keys in
// the snapshot are ignored.
func VectorFrom(s Snapshot) Vector {
	v := NewVector()
	for k, val := range s {
		if _, ok := v[k]; ok {
			v[k] = Clamp(val)
		}
	}
	return v
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Dominant returns the strongest emotion and its intensity. Ties resolve to
// canonical order.
func (v Vector) Dominant() (string, float64) {
	return Snapshot(v).Dominant()
}
