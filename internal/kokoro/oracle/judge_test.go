package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// stubProvider returns a fixed verdict (or error) and records every call.
type stubProvider struct {
	mu    sync.Mutex
	calls []ThoughtContext
	v     *Verdict
	err   error
}

func (s *stubProvider) Judge(_ context.Context, tc ThoughtContext) (*Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tc)
	if s.err != nil {
		return nil, s.err
	}
	return s.v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() soul.OracleRequest {
	return soul.OracleRequest{
		PersonaID:   "ayame",
		ThoughtText: "the lantern kept flickering all night",
		Emotions:    map[string]float64{"mysterious": 62},
		Mood:        "mysterious",
		STMCount:    4,
		GoldenCount: 7,
	}
}

func TestJudge_MapsRequestToThoughtContext(t *testing.T) {
	stub := &stubProvider{v: &Verdict{Word: "flicker", Fate: "fading", Reasoning: "r"}}
	j := NewJudge(stub, nil, discardLogger())

	if _, err := j.Decide(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(stub.calls))
	}
	tc := stub.calls[0]
	if tc.PersonaID != "ayame" || tc.ThoughtText != "the lantern kept flickering all night" {
		t.Errorf("thought context = %+v", tc)
	}
	if tc.Mood != "mysterious" || tc.STMCount != 4 || tc.GoldenCount != 7 {
		t.Errorf("context fields = %+v", tc)
	}
	if tc.Emotions["mysterious"] != 62 {
		t.Errorf("emotions not carried over: %+v", tc.Emotions)
	}
}

func TestJudge_NormalizesFateCase(t *testing.T) {
	tests := []struct {
		raw  string
		want soul.Fate
	}{
		{"ascended", soul.FateAscended},
		{"  ASCENDED ", soul.FateAscended},
		{"Promoted", soul.FatePromoted},
		{"fading", soul.FateFading},
		{"transcended", soul.FateFading},
		{"keep it", soul.FateFading},
		{"", soul.FateFading},
	}
	for _, tt := range tests {
		stub := &stubProvider{v: &Verdict{Word: "w", Fate: tt.raw, Reasoning: "r"}}
		j := NewJudge(stub, nil, discardLogger())

		dec, err := j.Decide(context.Background(), sampleRequest())
		if err != nil {
			t.Fatalf("Decide(%q) error: %v", tt.raw, err)
		}
		if dec.Fate != tt.want {
			t.Errorf("fate %q normalized to %q, want %q", tt.raw, dec.Fate, tt.want)
		}
	}
}

func TestJudge_EmptyWordFallsBack(t *testing.T) {
	stub := &stubProvider{v: &Verdict{Word: "  ", Fate: "fading", Reasoning: "r"}}
	j := NewJudge(stub, nil, discardLogger())

	dec, err := j.Decide(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	if dec.Word != soul.FallbackWord {
		t.Errorf("word = %q, want fallback %q", dec.Word, soul.FallbackWord)
	}
}

func TestJudge_RealizationValidation(t *testing.T) {
	valid := VerdictRealization{
		Word:            "lambence",
		ColorHex:        "#f4c542",
		FaceDescription: "the glow that persists",
	}

	tests := []struct {
		name   string
		mutate func(*VerdictRealization)
		kept   bool
	}{
		{"valid block kept", func(r *VerdictRealization) {}, true},
		{"missing word dropped", func(r *VerdictRealization) { r.Word = "" }, false},
		{"missing definition dropped", func(r *VerdictRealization) { r.FaceDescription = " " }, false},
		{"color without hash dropped", func(r *VerdictRealization) { r.ColorHex = "f4c542" }, false},
		{"short color dropped", func(r *VerdictRealization) { r.ColorHex = "#fff" }, false},
		{"non-hex color dropped", func(r *VerdictRealization) { r.ColorHex = "#zzzzzz" }, false},
		{"named color dropped", func(r *VerdictRealization) { r.ColorHex = "amber" }, false},
		{"padded color accepted", func(r *VerdictRealization) { r.ColorHex = " #f4c542 " }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			stub := &stubProvider{v: &Verdict{Word: "w", Fate: "ascended", Reasoning: "r", Realization: &r}}
			j := NewJudge(stub, nil, discardLogger())

			dec, err := j.Decide(context.Background(), sampleRequest())
			if err != nil {
				t.Fatalf("Decide() error: %v", err)
			}
			if got := dec.Realization != nil; got != tt.kept {
				t.Errorf("realization kept = %v, want %v (%+v)", got, tt.kept, r)
			}
			if tt.kept && dec.Realization.ColorHex != "#f4c542" {
				t.Errorf("color = %q, want trimmed #f4c542", dec.Realization.ColorHex)
			}
		})
	}
}

func TestJudge_RealizationDroppedUnlessAscended(t *testing.T) {
	r := &VerdictRealization{
		Word:            "lambence",
		ColorHex:        "#f4c542",
		FaceDescription: "the glow that persists",
	}
	for _, fate := range []string{"promoted", "fading", "transcended"} {
		stub := &stubProvider{v: &Verdict{Word: "w", Fate: fate, Reasoning: "r", Realization: r}}
		j := NewJudge(stub, nil, discardLogger())

		dec, err := j.Decide(context.Background(), sampleRequest())
		if err != nil {
			t.Fatalf("Decide(%q) error: %v", fate, err)
		}
		if dec.Realization != nil {
			t.Errorf("fate %q kept a realization block", fate)
		}
	}
}

func TestJudge_ProviderErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("connection refused")
	stub := &stubProvider{err: wantErr}
	j := NewJudge(stub, nil, discardLogger())

	_, err := j.Decide(context.Background(), sampleRequest())
	if !errors.Is(err, wantErr) {
		t.Errorf("Decide() error = %v, want %v", err, wantErr)
	}
}

func TestJudge_RateLimiterBlocks(t *testing.T) {
	stub := &stubProvider{v: &Verdict{Word: "w", Fate: "fading", Reasoning: "r"}}
	j := NewJudge(stub, NewRateLimiter(1, time.Minute), discardLogger())

	if _, err := j.Decide(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("first Decide() error: %v", err)
	}
	_, err := j.Decide(context.Background(), sampleRequest())
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("second Decide() error = %v, want ErrRateLimit", err)
	}
	if len(stub.calls) != 1 {
		t.Errorf("provider calls = %d, want 1 (throttled call must not reach provider)", len(stub.calls))
	}
}
