package soul

import (
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

func TestMemoryKey(t *testing.T) {
	long := strings.Repeat("a", 80)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "The Lighthouse KEEPER", "the lighthouse keeper"},
		{"trims", "  edges  ", "edges"},
		{"short text unchanged", "rain", "rain"},
		{"truncates to prefix", long, strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MemoryKey(tt.in); got != tt.want {
				t.Errorf("MemoryKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMemoryKey_RuneSafeTruncation(t *testing.T) {
	// 70 multi-byte runes; the key must cut at 64 runes, not mid-sequence.
	in := strings.Repeat("é", 70)
	got := MemoryKey(in)
	if want := strings.Repeat("é", 64); got != want {
		t.Errorf("MemoryKey truncated to %d runes, want 64", len([]rune(got)))
	}
}

// Texts sharing a 64-rune prefix collide deliberately: similar memories
// share one moral history.
func TestMemoryKey_PrefixCollision(t *testing.T) {
	prefix := strings.Repeat("x", 64)
	a := MemoryKey(prefix + " first tail")
	b := MemoryKey(prefix + " second tail")
	if a != b {
		t.Errorf("keys differ: %q vs %q, want collision", a, b)
	}
}

func TestNewThoughtAt(t *testing.T) {
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)
	snap := emotion.Snapshot{emotion.Curious: 40}

	a := NewThoughtAt("a thought", snap, now)
	b := NewThoughtAt("a thought", snap, now)

	if a.ID == "" || b.ID == "" {
		t.Fatal("thought minted without an id")
	}
	if a.ID == b.ID {
		t.Error("two thoughts share an id")
	}
	if !a.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want %v", a.CreatedAt, now)
	}

	// The snapshot is cloned at mint time.
	snap[emotion.Curious] = 0
	if a.Emotions[emotion.Curious] != 40 {
		t.Errorf("thought emotions mutated through the caller's snapshot")
	}
}
