package store

import (
	"sync"
	"testing"
	"time"

	"github.com/relaxlab/qexp/pkg/types"
)

func snap(id string, qubit int) *types.FitSnapshot {
	return &types.FitSnapshot{SourceID: id, SourceType: "synthetic", Qubit: qubit, State: types.StateGood, DecayConstant: 50e-6}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(snap("fridge-a", 3))

	e, ok := st.Get("fridge-a/3")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Snapshot.SourceID != "fridge-a" || e.Snapshot.Qubit != 3 {
		t.Errorf("identity: got %s/%d, want fridge-a/3", e.Snapshot.SourceID, e.Snapshot.Qubit)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(5 * time.Minute)
	if _, ok := st.Get("unknown/0"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_SameSourceDifferentQubits(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(snap("src", 0))
	st.Put(snap("src", 1))
	if n := st.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestPut_OverwritesAndKeepsHistory(t *testing.T) {
	st := New(5 * time.Minute)
	s1 := snap("src", 0)
	s2 := snap("src", 0)
	s2.DecayConstant = 40e-6
	s3 := &types.FitSnapshot{SourceID: "src", Qubit: 0, State: types.StateUnknown}

	st.Put(s1)
	st.Put(s2)
	st.Put(s3)

	e, ok := st.Get("src/0")
	if !ok {
		t.Fatal("Get: expected entry after Puts")
	}
	if e.Snapshot.State != types.StateUnknown {
		t.Errorf("State: got %q, want unknown", e.Snapshot.State)
	}
	// Unfitted snapshots are not recorded in the history.
	if len(e.History) != 2 {
		t.Fatalf("History: got %d, want 2", len(e.History))
	}
	if e.History[1].DecayConstant != 40e-6 {
		t.Errorf("History[1].DecayConstant: got %g, want 40e-6", e.History[1].DecayConstant)
	}
}

func TestPut_CurrentFitEndsHistory(t *testing.T) {
	st := New(5 * time.Minute)
	s1 := snap("src", 0)
	s1.TimestampUnix = 1_700_000_000
	s2 := snap("src", 0)
	s2.TimestampUnix = 1_700_000_060
	s2.DecayConstant = 44e-6

	st.Put(s1)
	st.Put(s2)

	e, _ := st.Get("src/0")
	if len(e.History) != 2 {
		t.Fatalf("History: got %d, want 2", len(e.History))
	}
	if *e.History[len(e.History)-1] != *e.Snapshot {
		t.Errorf("last history entry %+v is not the current snapshot %+v", e.History[1], e.Snapshot)
	}
	if e.History[0].TimestampUnix != 1_700_000_000 {
		t.Errorf("History[0]: got ts %d, want the first fit", e.History[0].TimestampUnix)
	}
}

func TestPut_ResendDoesNotDuplicateHistory(t *testing.T) {
	st := New(5 * time.Minute)
	s := snap("src", 0)
	s.TimestampUnix = 1_700_000_000

	st.Put(s)
	// A resend arrives as a fresh decode of the same snapshot.
	resend := *s
	st.Put(&resend)

	e, _ := st.Get("src/0")
	if len(e.History) != 1 {
		t.Fatalf("History: got %d, want 1 after resend", len(e.History))
	}

	// Same timestamp with a different fit is a new result.
	changed := *s
	changed.DecayConstant = 47e-6
	st.Put(&changed)
	e, _ = st.Get("src/0")
	if len(e.History) != 2 {
		t.Errorf("History: got %d, want 2 after a changed fit", len(e.History))
	}
}

func TestHistory_Bounded(t *testing.T) {
	st := New(5 * time.Minute)
	st.history = 3
	for i := 1; i <= 5; i++ {
		s := snap("src", 0)
		s.DecayConstant = float64(i)
		st.Put(s)
	}
	e, _ := st.Get("src/0")
	if len(e.History) != 3 {
		t.Fatalf("History: got %d, want 3", len(e.History))
	}
	if e.History[0].DecayConstant != 3 {
		t.Errorf("oldest kept: got %g, want 3", e.History[0].DecayConstant)
	}
}

func TestList_ExcludesStaleAndSorts(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put(snap("old", 0))

	st.now = fixedClock(base)
	st.Put(snap("b", 0))
	st.Put(snap("a", 2))
	st.Put(snap("a", 1))

	entries := st.List()
	want := []string{"a/1", "a/2", "b/0"}
	if len(entries) != len(want) {
		t.Fatalf("List: got %d entries, want %d", len(entries), len(want))
	}
	for i, k := range want {
		if got := entries[i].Snapshot.Key(); got != k {
			t.Errorf("List[%d]: got %q, want %q", i, got, k)
		}
	}
}

func TestCount_IncludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(snap("old", 0))

	st.now = fixedClock(base)
	st.Put(snap("new", 0))

	if n := st.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(snap("old", 0))
	st.Put(snap("old", 1))

	st.now = fixedClock(base)
	st.Put(snap("live", 0))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestEvict_CallsOnEvict(t *testing.T) {
	base := time.Now()
	st := New(time.Minute)
	var evicted []string
	st.OnEvict(func(s *types.FitSnapshot) { evicted = append(evicted, s.Key()) })

	st.now = fixedClock(base.Add(-2 * time.Minute))
	st.Put(snap("gone", 7))
	st.now = fixedClock(base)
	st.Put(snap("kept", 0))

	st.Evict(base)
	if len(evicted) != 1 || evicted[0] != "gone/7" {
		t.Errorf("evicted: got %v, want [gone/7]", evicted)
	}
}

func TestEvict_NoOp_AllLive(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base)
	st.Put(snap("src", 0))

	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict on live entry: removed %d, want 0", removed)
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(5 * time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(q int) {
			defer wg.Done()
			st.Put(snap("src", q%4))
		}(i)
		go func() {
			defer wg.Done()
			st.List()
		}()
		go func() {
			defer wg.Done()
			st.Get("src/0")
		}()
	}
	wg.Wait()

	if st.Count() != 4 {
		t.Errorf("Count after concurrent puts: got %d, want 4", st.Count())
	}
}
