// Package shared holds the state every component reads: the active config,
// its parsed fuzzy rules and punctuation table, and one dictionary store per
// profile.
package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pinfe/internal/candidate"
	"pinfe/internal/config"
	"pinfe/internal/dict"
	"pinfe/internal/keymap"
	"pinfe/internal/pinyin"
)

// Shared is safe for concurrent use. Each dictionary profile has its own
// Store, swapped atomically on reload; config, rules and the active
// profile are guarded by mu.
type Shared struct {
	mu       sync.RWMutex
	cfg      config.Config
	rules    pinyin.Rules
	punct    keymap.Punctuation
	profiles []config.Profile
	stores   map[string]*dict.Store
	active   string
	logger   *slog.Logger

	hookMu sync.Mutex
	hooks  []func(profile string, snap *dict.Snapshot)
}

// New validates cfg and returns a Shared with empty dictionaries. Call
// ReloadConfigured to load the configured sources.
func New(cfg config.Config, logger *slog.Logger) (*Shared, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shared{stores: make(map[string]*dict.Store), logger: logger}
	if err := s.swap(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithStore uses store for the configured active profile. Used by tools
// and tests.
func NewWithStore(cfg config.Config, store *dict.Store, logger *slog.Logger) (*Shared, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shared{stores: make(map[string]*dict.Store), logger: logger}
	s.watch(cfg.ActiveProfile(), store)
	s.stores[cfg.ActiveProfile()] = store
	if err := s.swap(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shared) swap(cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	profiles, err := cfg.Profiles()
	if err != nil {
		return err
	}
	punct := keymap.DefaultPunctuation()
	if path := cfg.Dictionary.PunctuationFile; path != "" {
		loaded, err := keymap.LoadPunctuation(path)
		if err != nil {
			s.logger.Warn("punctuation file unusable, using the built-in table", "path", path, "err", err)
		} else {
			punct = loaded
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stores := make(map[string]*dict.Store, len(profiles))
	for _, p := range profiles {
		if st, ok := s.stores[p.Name]; ok {
			stores[p.Name] = st
			continue
		}
		st := dict.NewStore(s.logger.With("component", "dict", "profile", p.Name))
		s.watch(p.Name, st)
		stores[p.Name] = st
	}
	// a changed default_profile moves the user there; otherwise a runtime
	// switch survives the reload
	if _, ok := stores[s.active]; !ok || s.active == "" || cfg.ActiveProfile() != s.cfg.ActiveProfile() {
		s.active = cfg.ActiveProfile()
	}
	s.cfg = cfg
	s.rules = rules
	s.punct = punct
	s.profiles = profiles
	s.stores = stores
	return nil
}

func (s *Shared) watch(profile string, st *dict.Store) {
	st.OnPublish(func(snap *dict.Snapshot) {
		s.hookMu.Lock()
		hooks := append([]func(string, *dict.Snapshot){}, s.hooks...)
		s.hookMu.Unlock()
		for _, fn := range hooks {
			fn(profile, snap)
		}
	})
}

// OnPublish registers fn to run after any profile publishes a snapshot.
func (s *Shared) OnPublish(fn func(profile string, snap *dict.Snapshot)) {
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

// Reload loads the given dictionary settings into the active profile and
// publishes a new snapshot. Readers keep the previous snapshot until it is
// complete.
func (s *Shared) Reload(ctx context.Context, dictDirs, extraDicts []string, enableLevel3 bool) (dict.Report, error) {
	sources := config.ResolveSources(dictDirs, extraDicts, enableLevel3)
	return s.load(ctx, s.Profile(), s.Store(), sources)
}

func (s *Shared) load(ctx context.Context, profile string, st *dict.Store, sources []dict.Source) (dict.Report, error) {
	if len(sources) == 0 {
		s.logger.Warn("no dictionary files found", "profile", profile)
	}
	report, err := st.Reload(ctx, sources)
	if err != nil {
		return report, fmt.Errorf("reload %s dictionaries: %w", profile, err)
	}
	return report, nil
}

// ReloadConfigured reloads every profile from the current config, in
// parallel, and returns the active profile's report. A failing profile
// keeps its previous snapshot and does not stop the others.
func (s *Shared) ReloadConfigured(ctx context.Context) (dict.Report, error) {
	s.mu.RLock()
	profiles := s.profiles
	stores := make([]*dict.Store, len(profiles))
	for i, p := range profiles {
		stores[i] = s.stores[p.Name]
	}
	active := s.active
	level3 := s.cfg.Dictionary.EnableLevel3
	s.mu.RUnlock()

	reports := make([]dict.Report, len(profiles))
	errs := make([]error, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			reports[i], errs[i] = s.load(ctx, p.Name, stores[i], p.Sources(level3))
			return nil
		})
	}
	_ = g.Wait()

	var report dict.Report
	for i, p := range profiles {
		if p.Name == active {
			report = reports[i]
		}
	}
	return report, errors.Join(errs...)
}

// ApplyConfig installs cfg. Dictionaries are reloaded only when the
// sources changed. The returned bool reports whether a reload ran.
func (s *Shared) ApplyConfig(ctx context.Context, cfg config.Config) (bool, error) {
	prev := s.Config()
	if err := s.swap(cfg); err != nil {
		return false, err
	}
	if config.SameSources(prev, cfg) {
		return false, nil
	}
	_, err := s.ReloadConfigured(ctx)
	return true, err
}

// Profile is the name of the active dictionary profile.
func (s *Shared) Profile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Profiles lists profile names, the default profile first.
func (s *Shared) Profiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// SetProfile makes name the active profile.
func (s *Shared) SetProfile(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	s.active = name
	return nil
}

// NextProfile activates the profile after the active one, wrapping, and
// returns its name.
func (s *Shared) NextProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.profiles {
		if p.Name == s.active {
			s.active = s.profiles[(i+1)%len(s.profiles)].Name
			break
		}
	}
	return s.active
}

func (s *Shared) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Shared) FuzzyRules() pinyin.Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

func (s *Shared) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Input.PageSize
}

func (s *Shared) Punctuation() keymap.Punctuation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.punct
}

// Store is the active profile's store.
func (s *Shared) Store() *dict.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores[s.active]
}

// Trie is the dictionary of the active profile's current snapshot.
func (s *Shared) Trie() *dict.Trie { return s.Store().Trie() }

// Index satisfies the engine's resolver.
func (s *Shared) Index() candidate.Index { return s.Trie() }

// Lookup runs a full candidate lookup for buffer under the current rules.
func (s *Shared) Lookup(buffer string) []candidate.Candidate {
	s.mu.RLock()
	rules := s.rules
	limit := s.cfg.Input.PrefixLimit
	trie := s.stores[s.active].Trie()
	s.mu.RUnlock()
	return candidate.Resolve(trie, buffer, rules, candidate.Options{PrefixLimit: limit})
}
