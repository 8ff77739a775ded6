package soul

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Kokoro/internal/kokoro/emotion"
)

// pushN mints and pushes n thoughts labelled T1..Tn, collecting every
// checkpoint and faded thought along the way.
func pushN(m *ShortTermMemory, n int) (thoughts []Thought, checkpoints []Thought, faded []Thought) {
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		th := NewThoughtAt(fmt.Sprintf("T%d", i), nil, now.Add(time.Duration(i)*time.Minute))
		thoughts = append(thoughts, th)
		cp, f := m.Push(th)
		if cp != nil {
			checkpoints = append(checkpoints, *cp)
		}
		faded = append(faded, f...)
	}
	return thoughts, checkpoints, faded
}

func TestSTM_LengthNeverExceedsCapacity(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		m.Push(NewThoughtAt(fmt.Sprintf("thought %d", i), nil, now))
		if got := m.Len(); got > STMCapacity {
			t.Fatalf("after push %d: len = %d, exceeds capacity %d", i+1, got, STMCapacity)
		}
	}
	if got := m.Len(); got != STMCapacity {
		t.Errorf("final len = %d, want %d", got, STMCapacity)
	}
}

func TestSTM_NewestFirstOrder(t *testing.T) {
	m := NewShortTermMemory()
	thoughts, _, _ := pushN(m, 4)
	snap := m.Snapshot()
	want := []string{"T4", "T3", "T2", "T1"}
	if len(snap) != len(want) {
		t.Fatalf("snapshot len = %d, want %d", len(snap), len(want))
	}
	for i, w := range want {
		if snap[i].Text != w {
			t.Errorf("slot %d = %q, want %q", i+1, snap[i].Text, w)
		}
	}
	_ = thoughts
}

// The end-to-end checkpoint ordering scenario: T1..T6 pushed in order, the
// checkpoint walks the queue oldest-first from T1.
func TestSTM_CheckpointOrdering(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

	var checkpoints []string
	for i := 1; i <= 6; i++ {
		cp, _ := m.Push(NewThoughtAt(fmt.Sprintf("T%d", i), nil, now))
		switch {
		case i < 3 && cp != nil:
			t.Errorf("push T%d: unexpected checkpoint %q", i, cp.Text)
		case i >= 3 && cp == nil:
			t.Errorf("push T%d: expected a checkpoint, got none", i)
		case cp != nil:
			checkpoints = append(checkpoints, cp.Text)
		}
	}

	want := []string{"T1", "T2", "T3", "T4"}
	if len(checkpoints) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", checkpoints, want)
	}
	for i, w := range want {
		if checkpoints[i] != w {
			t.Errorf("checkpoint %d = %q, want %q", i, checkpoints[i], w)
		}
	}
}

func TestSTM_CheckpointFiresAtMostOncePerThought(t *testing.T) {
	m := NewShortTermMemory()
	_, checkpoints, _ := pushN(m, 20)
	seen := map[string]int{}
	for _, cp := range checkpoints {
		seen[cp.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("thought %s checkpointed %d times, want 1", id, n)
		}
	}
}

func TestSTM_TruncationReturnsOldest(t *testing.T) {
	m := NewShortTermMemory()
	thoughts, _, faded := pushN(m, 7)
	if len(faded) != 1 {
		t.Fatalf("faded = %d thoughts, want 1", len(faded))
	}
	if faded[0].ID != thoughts[0].ID {
		t.Errorf("faded %q, want oldest %q", faded[0].Text, thoughts[0].Text)
	}
	if got := m.Len(); got != STMCapacity {
		t.Errorf("len after truncation = %d, want %d", got, STMCapacity)
	}
}

func TestSTM_PromoteMovesToFrontAndNeverReflectsTwice(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

	t1 := NewThoughtAt("T1", nil, now)
	m.Push(t1)
	m.Push(NewThoughtAt("T2", nil, now))
	cp, _ := m.Push(NewThoughtAt("T3", nil, now))
	if cp == nil || cp.ID != t1.ID {
		t.Fatalf("expected checkpoint on T1, got %v", cp)
	}

	if !m.Promote(t1.ID) {
		t.Fatal("Promote(T1) = false, want true")
	}
	if snap := m.Snapshot(); snap[0].ID != t1.ID {
		t.Fatalf("after promote, slot 1 = %q, want T1", snap[0].Text)
	}

	// T1 ages through the window again; it must never checkpoint again and
	// must eventually leave by truncation.
	var sawT1Checkpoint bool
	var t1Faded bool
	for i := 4; i <= 12; i++ {
		cp, faded := m.Push(NewThoughtAt(fmt.Sprintf("T%d", i), nil, now))
		if cp != nil && cp.ID == t1.ID {
			sawT1Checkpoint = true
		}
		for _, f := range faded {
			if f.ID == t1.ID {
				t1Faded = true
			}
		}
	}
	if sawT1Checkpoint {
		t.Error("promoted thought was checkpointed a second time")
	}
	if !t1Faded {
		t.Error("promoted thought never left by truncation")
	}
}

// A promotion reshuffle slides the thought under the checkpoint slot past it
// without a push; that thought misses its window and leaves by truncation,
// unmarked and unreflected.
func TestSTM_PromotionReshuffleSkipsWindow(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

	t1 := NewThoughtAt("T1", nil, now)
	t2 := NewThoughtAt("T2", nil, now)
	m.Push(t1)
	m.Push(t2)
	cp, _ := m.Push(NewThoughtAt("T3", nil, now))
	if cp == nil || cp.ID != t1.ID {
		t.Fatalf("expected checkpoint on T1, got %v", cp)
	}
	m.Promote(t1.ID) // queue is now [T1 T3 T2]; T2 sits at slot 3 unflagged

	var t2Checkpointed, t2Faded bool
	for i := 4; i <= 12; i++ {
		cp, faded := m.Push(NewThoughtAt(fmt.Sprintf("T%d", i), nil, now))
		if cp != nil && cp.ID == t2.ID {
			t2Checkpointed = true
		}
		for _, f := range faded {
			if f.ID == t2.ID {
				t2Faded = true
			}
		}
	}
	if t2Checkpointed {
		t.Error("T2 was checkpointed after sliding past the slot between pushes")
	}
	if !t2Faded {
		t.Error("T2 never left by truncation")
	}
}

func TestSTM_Remove(t *testing.T) {
	m := NewShortTermMemory()
	thoughts, _, _ := pushN(m, 4)

	got, ok := m.Remove(thoughts[1].ID)
	if !ok || got.ID != thoughts[1].ID {
		t.Fatalf("Remove = (%v, %v), want T2", got.Text, ok)
	}
	if m.Len() != 3 {
		t.Errorf("len after remove = %d, want 3", m.Len())
	}
	if _, ok := m.Remove("no-such-id"); ok {
		t.Error("Remove of unknown id reported ok")
	}
}

func TestSTM_SnapshotIsIndependent(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)
	m.Push(NewThoughtAt("original", emotion.Snapshot{emotion.Happy: 50}, now))

	snap := m.Snapshot()
	snap[0].Text = "tampered"
	snap[0].Emotions[emotion.Happy] = 0

	again := m.Snapshot()
	if again[0].Text != "original" {
		t.Errorf("queued text = %q, want original", again[0].Text)
	}
	if again[0].Emotions[emotion.Happy] != 50 {
		t.Errorf("queued emotion = %v, want 50", again[0].Emotions[emotion.Happy])
	}
}

func TestSTM_ConcurrentPushes(t *testing.T) {
	m := NewShortTermMemory()
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Push(NewThoughtAt(fmt.Sprintf("w%d-%d", w, i), nil, now))
				m.Snapshot()
				m.Len()
			}
		}(w)
	}
	wg.Wait()

	if got := m.Len(); got != STMCapacity {
		t.Errorf("len after concurrent pushes = %d, want %d", got, STMCapacity)
	}
}
