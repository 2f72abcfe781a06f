package dict

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Snapshot is one published, immutable dictionary.
type Snapshot struct {
	Trie       *Trie
	Generation uint64
	Sources    []Source
	LoadedAt   time.Time
	Report     Report
}

// Store owns the current Snapshot. Readers take whatever snapshot is
// current without locking; Reload builds a complete trie off to the side
// and swaps it in with a single pointer store.
type Store struct {
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	buildMu sync.Mutex
	flight  singleflight.Group
	gen     uint64

	hookMu    sync.Mutex
	onPublish []func(*Snapshot)
}

// NewStore returns a store holding an empty generation-0 snapshot.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger}
	s.current.Store(&Snapshot{Trie: NewTrie(), LoadedAt: time.Now()})
	return s
}

// NewStoreFromTrie publishes an already built trie. Used by tools and
// tests that assemble dictionaries in memory.
func NewStoreFromTrie(trie *Trie, logger *slog.Logger) *Store {
	s := NewStore(logger)
	s.gen = 1
	s.current.Store(&Snapshot{Trie: trie, Generation: 1, LoadedAt: time.Now(),
		Report: Report{Entries: trie.Len(), Keys: trie.KeyCount()}})
	return s
}

// Snapshot returns the current snapshot. It is never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Trie returns the current snapshot's trie.
func (s *Store) Trie() *Trie {
	return s.current.Load().Trie
}

// OnPublish registers fn to run after every successful publish.
func (s *Store) OnPublish(fn func(*Snapshot)) {
	s.hookMu.Lock()
	s.onPublish = append(s.onPublish, fn)
	s.hookMu.Unlock()
}

// Reload loads sources into a new trie and publishes it. Concurrent calls
// for the same sources share one load. If ctx is cancelled before the
// new trie is complete the current snapshot stays in place.
func (s *Store) Reload(ctx context.Context, sources []Source) (Report, error) {
	key := fingerprint(sources)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.rebuild(ctx, sources)
	})
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	}
}

func (s *Store) rebuild(ctx context.Context, sources []Source) (Report, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	trie, report, err := Load(ctx, sources, s.logger)
	if err != nil {
		s.logger.Warn("dictionary reload abandoned", "error", err)
		return report, err
	}

	s.gen++
	snap := &Snapshot{
		Trie:       trie,
		Generation: s.gen,
		Sources:    append([]Source(nil), sources...),
		LoadedAt:   time.Now(),
		Report:     report,
	}
	s.current.Store(snap)
	s.logger.Info("dictionary published",
		"generation", snap.Generation,
		"files", report.Files,
		"failed", report.Failed(),
		"entries", report.Entries,
		"duration", report.Duration)

	s.hookMu.Lock()
	hooks := append([]func(*Snapshot){}, s.onPublish...)
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn(snap)
	}
	return report, nil
}

func fingerprint(sources []Source) string {
	var b strings.Builder
	for _, src := range sources {
		fmt.Fprintf(&b, "%d:%s\n", src.Tier, src.Path)
	}
	return b.String()
}
