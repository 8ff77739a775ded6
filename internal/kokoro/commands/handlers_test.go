package commands_test

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Kokoro/internal/kokoro/commands"
	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
	"github.com/bdobrica/Kokoro/internal/kokoro/store"
)

var fixedTime = time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

// fakeRuntime implements commands.Runtime over test stores.
type fakeRuntime struct {
	statuses map[string]commands.PersonaStatus
	stores   map[string]*store.Store
}

func (f *fakeRuntime) PersonaIDs() []string {
	ids := make([]string, 0, len(f.statuses))
	for id := range f.statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeRuntime) Status(id string) (commands.PersonaStatus, bool) {
	s, ok := f.statuses[id]
	return s, ok
}

func (f *fakeRuntime) Store(id string) (*store.Store, bool) {
	s, ok := f.stores[id]
	return s, ok
}

func newTestStore(t *testing.T, name string) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), name+".db"))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// newFixture builds a runtime with one live persona, ayame, and her store.
func newFixture(t *testing.T) (*fakeRuntime, *commands.Handlers) {
	t.Helper()
	rt := &fakeRuntime{
		statuses: map[string]commands.PersonaStatus{
			"ayame": {
				ID:       "ayame",
				Name:     "Ayame",
				Mood:     "enigmatic",
				Emotions: emotion.Vector{"mysterious": 72, "curious": 18},
				STMCount: 4,
			},
		},
		stores: map[string]*store.Store{
			"ayame": newTestStore(t, "ayame"),
		},
	}
	return rt, commands.NewHandlers(rt)
}

func TestHandleHelp_ListsCommands(t *testing.T) {
	_, h := newFixture(t)

	out, err := h.HandleHelp(context.Background(), &commands.Command{Name: "help"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleHelp: %v", err)
	}
	for _, want := range []string{"!kokoro status", "!kokoro golden", "!kokoro weights", "!kokoro audit", "read-only"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestHandleVersion(t *testing.T) {
	_, h := newFixture(t)

	out, err := h.HandleVersion(context.Background(), &commands.Command{Name: "version"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleVersion: %v", err)
	}
	if !strings.Contains(out, "Version:") {
		t.Errorf("version output missing version line: %q", out)
	}
}

func TestHandleStatus_SinglePersonaDefault(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()

	// Seed a couple of durable records so the counts are non-zero.
	st := rt.stores["ayame"]
	if err := st.InsertGoldenMemory(ctx, soul.GoldenMemory{Text: "the lantern festival", Word: "lantern-glow", CreatedAt: fixedTime}); err != nil {
		t.Fatalf("seed golden: %v", err)
	}
	if err := st.InsertRealization(ctx, soul.Realization{Word: "yurameki", Definition: "a flicker", ColorHex: "#f4c542", TimesFelt: 1, DiscoveredAt: fixedTime}); err != nil {
		t.Fatalf("seed realization: %v", err)
	}

	out, err := h.HandleStatus(ctx, &commands.Command{Name: "status"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}

	for _, want := range []string{
		"**Ayame**",
		"Mood: enigmatic",
		"curious 18, mysterious 72",
		"Short-term memory: 4/6",
		"Golden memories: 1/20",
		"Self-realizations: 1/30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestHandleStatus_UnknownPersona(t *testing.T) {
	_, h := newFixture(t)

	_, err := h.HandleStatus(context.Background(), &commands.Command{Name: "status", Subcommand: "botan"}, &event.Event{})
	if err == nil {
		t.Fatal("expected error for unknown persona")
	}
	if !strings.Contains(err.Error(), "botan") {
		t.Errorf("error should name the unknown persona, got %q", err.Error())
	}
}

func TestHandleStatus_MultiplePersonasNeedArg(t *testing.T) {
	rt, h := newFixture(t)
	rt.statuses["botan"] = commands.PersonaStatus{ID: "botan", Name: "Botan"}
	rt.stores["botan"] = newTestStore(t, "botan")

	_, err := h.HandleStatus(context.Background(), &commands.Command{Name: "status"}, &event.Event{})
	if err == nil {
		t.Fatal("expected error when several personas are loaded and none is named")
	}
	if !strings.Contains(err.Error(), "ayame") || !strings.Contains(err.Error(), "botan") {
		t.Errorf("error should list the loaded personas, got %q", err.Error())
	}

	// Naming one resolves it.
	out, err := h.HandleStatus(context.Background(), &commands.Command{Name: "status", Subcommand: "botan"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleStatus(botan): %v", err)
	}
	if !strings.Contains(out, "**Botan**") {
		t.Errorf("expected botan status, got:\n%s", out)
	}
}

func TestHandleGolden_ListsMemories(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()
	st := rt.stores["ayame"]

	for _, gm := range []soul.GoldenMemory{
		{Text: "the lantern festival where every flame had a name", Word: "lantern-glow", Note: "keep this one", CreatedAt: fixedTime},
		{Text: "the first snow that silenced the shrine", Word: "first-snow", CreatedAt: fixedTime.Add(time.Minute)},
	} {
		if err := st.InsertGoldenMemory(ctx, gm); err != nil {
			t.Fatalf("seed golden: %v", err)
		}
	}

	out, err := h.HandleGolden(ctx, &commands.Command{Name: "golden"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleGolden: %v", err)
	}

	if !strings.Contains(out, "first-snow") || !strings.Contains(out, "lantern-glow") {
		t.Errorf("expected both memories, got:\n%s", out)
	}
	if !strings.Contains(out, "note: keep this one") {
		t.Errorf("expected note line, got:\n%s", out)
	}
	// Newest first.
	if strings.Index(out, "first-snow") > strings.Index(out, "lantern-glow") {
		t.Errorf("expected newest memory first:\n%s", out)
	}
}

func TestHandleGolden_Empty(t *testing.T) {
	_, h := newFixture(t)

	out, err := h.HandleGolden(context.Background(), &commands.Command{Name: "golden"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleGolden: %v", err)
	}
	if !strings.Contains(out, "no golden memories") {
		t.Errorf("expected empty message, got %q", out)
	}
}

func TestHandleGolden_NumericLimit(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()
	st := rt.stores["ayame"]

	for i, word := range []string{"one", "two", "three"} {
		gm := soul.GoldenMemory{Text: "memory " + word, Word: word, CreatedAt: fixedTime.Add(time.Duration(i) * time.Minute)}
		if err := st.InsertGoldenMemory(ctx, gm); err != nil {
			t.Fatalf("seed golden: %v", err)
		}
	}

	// "!kokoro golden 1" parses with "1" in the subcommand slot.
	out, err := h.HandleGolden(ctx, &commands.Command{Name: "golden", Subcommand: "1"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleGolden: %v", err)
	}
	if !strings.Contains(out, "three") {
		t.Errorf("expected only the newest memory, got:\n%s", out)
	}
	if strings.Contains(out, "memory one") {
		t.Errorf("expected older memories to be cut at limit 1, got:\n%s", out)
	}
}

func TestHandleRealizations_ListsWords(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()
	st := rt.stores["ayame"]

	if err := st.InsertRealization(ctx, soul.Realization{
		Word:         "yurameki",
		Definition:   "the flicker of a feeling before it has a name",
		ColorHex:     "#f4c542",
		TimesFelt:    3,
		DiscoveredAt: fixedTime,
	}); err != nil {
		t.Fatalf("seed realization: %v", err)
	}

	out, err := h.HandleRealizations(ctx, &commands.Command{Name: "realizations"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleRealizations: %v", err)
	}
	for _, want := range []string{"yurameki", "#f4c542", "felt 3", "the flicker of a feeling"} {
		if !strings.Contains(out, want) {
			t.Errorf("realizations missing %q:\n%s", want, out)
		}
	}
}

func TestHandleWeights_OrderedByScore(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()
	st := rt.stores["ayame"]

	// "heavy" outweighs "light": an ascension scores far above one felt.
	for _, c := range []soul.Counter{soul.CounterFelt, soul.CounterAscended} {
		if err := st.IncrementWeight(ctx, "heavy memory", c); err != nil {
			t.Fatalf("seed weight: %v", err)
		}
	}
	if err := st.IncrementWeight(ctx, "light memory", soul.CounterFelt); err != nil {
		t.Fatalf("seed weight: %v", err)
	}

	out, err := h.HandleWeights(ctx, &commands.Command{Name: "weights"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleWeights: %v", err)
	}
	if strings.Index(out, "heavy memory") > strings.Index(out, "light memory") {
		t.Errorf("expected heavy memory ranked first:\n%s", out)
	}
	if !strings.Contains(out, "felt 1, promoted 0, rejected 0, ascended 1") {
		t.Errorf("expected counter breakdown:\n%s", out)
	}
}

func TestHandleAudit_ShowsRecentReflections(t *testing.T) {
	rt, h := newFixture(t)
	ctx := context.Background()
	st := rt.stores["ayame"]

	if err := st.WriteReflection(ctx, soul.AuditEntry{
		TraceID:     "t_abc123",
		PersonaID:   "ayame",
		MemoryID:    "m1",
		ThoughtText: "the lantern festival where every flame had a name",
		Word:        "eternal-flame",
		Fate:        soul.FateAscended,
		Reasoning:   "this defines her",
		Mood:        "enigmatic",
		Score:       2.73,
		Timestamp:   fixedTime,
	}); err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	out, err := h.HandleAudit(ctx, &commands.Command{Name: "audit"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleAudit: %v", err)
	}
	for _, want := range []string{"eternal-flame", "ascended", "2.73", "t_abc123", "lantern festival"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit missing %q:\n%s", want, out)
		}
	}
}

func TestHandleAudit_EmptyStore(t *testing.T) {
	_, h := newFixture(t)

	out, err := h.HandleAudit(context.Background(), &commands.Command{Name: "audit"}, &event.Event{})
	if err != nil {
		t.Fatalf("HandleAudit: %v", err)
	}
	if !strings.Contains(out, "not reflected yet") {
		t.Errorf("expected empty message, got %q", out)
	}
}
