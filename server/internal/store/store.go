package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/relaxlab/qexp/pkg/types"
)

// DefaultHistory is how many fits are retained per qubit.
const DefaultHistory = 50

// Entry is the latest snapshot for one qubit and the time it was last
// received.
type Entry struct {
	Snapshot  *types.FitSnapshot
	UpdatedAt time.Time

	// History holds the distinct fitted snapshots received for the qubit,
	// oldest first. When Snapshot carries a fit it is also the last element.
	History []*types.FitSnapshot
}

// Store is a thread-safe in-memory fit store, keyed by "source_id/qubit".
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Entry
	ttl     time.Duration
	history int
	now     func() time.Time // injectable for deterministic tests
	onEvict func(*types.FitSnapshot)
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data:    make(map[string]*Entry),
		ttl:     ttl,
		history: DefaultHistory,
		now:     time.Now,
	}
}

// Put stores or replaces the snapshot for snap.Key(). Fitted snapshots are
// appended to the entry's history unless they repeat the newest one, as an
// agent resend after a transient error does.
// Callers must not modify snap after calling Put.
func (s *Store) Put(snap *types.FitSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snap.Key()
	e, ok := s.data[key]
	if !ok {
		e = &Entry{}
		s.data[key] = e
	}
	if snap.Fitted() && !repeatsLast(e.History, snap) {
		e.History = append(e.History, snap)
		if over := len(e.History) - s.history; over > 0 {
			e.History = append([]*types.FitSnapshot(nil), e.History[over:]...)
		}
	}
	e.Snapshot = snap
	e.UpdatedAt = s.now()
}

func repeatsLast(h []*types.FitSnapshot, snap *types.FitSnapshot) bool {
	return len(h) > 0 && *h[len(h)-1] == *snap
}

// Get returns a copy of the Entry for key and whether it was found.
// The entry may be stale if TTL has elapsed.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// List returns all entries whose UpdatedAt is within the TTL, sorted by key.
// Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Snapshot, out[j].Snapshot
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.Qubit < b.Qubit
	})
	return out
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// OnEvict registers fn to be called with the last snapshot of every evicted
// entry. Must be called before Run.
func (s *Store) OnEvict(fn func(*types.FitSnapshot)) {
	s.onEvict = fn
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	cutoff := now.Add(-s.ttl)
	var removed []*types.FitSnapshot
	for key, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, key)
			removed = append(removed, e.Snapshot)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, snap := range removed {
			s.onEvict(snap)
		}
	}
	return len(removed)
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) so entries are evicted promptly. Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale fits", "count", n)
			}
		}
	}
}

func (e *Entry) clone() *Entry {
	return &Entry{
		Snapshot:  e.Snapshot,
		UpdatedAt: e.UpdatedAt,
		History:   append([]*types.FitSnapshot(nil), e.History...),
	}
}
