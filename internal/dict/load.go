package dict

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source is one dictionary file and the tier it loads into. Lower tiers
// rank first.
type Source struct {
	Path string
	Tier int
}

// LoadError reports a dictionary file that could not be read or parsed.
// It never aborts a load; the file is skipped.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Report summarises one load.
type Report struct {
	Files    int
	Loaded   int
	Entries  int
	Keys     int
	Errors   []*LoadError
	Duration time.Duration
}

// Failed is the number of skipped files.
func (r Report) Failed() int { return len(r.Errors) }

type parsed struct {
	records []Record
	err     error
}

// Load builds a trie from sources. Files are parsed concurrently and
// inserted in (tier, listed) order so the result does not depend on
// scheduling. A failing file is logged, reported and skipped. The only
// error returned is the context's.
func Load(ctx context.Context, sources []Source, logger *slog.Logger) (*Trie, Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	started := time.Now()
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tier < ordered[j].Tier })

	results := make([]parsed, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range ordered {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := ParseFile(src.Path)
			results[i] = parsed{records: records, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{Files: len(ordered)}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Report{Files: len(ordered)}, err
	}

	trie := NewTrie()
	report := Report{Files: len(ordered)}
	for i, src := range ordered {
		res := results[i]
		if res.err != nil {
			lerr := &LoadError{Path: src.Path, Err: res.err}
			report.Errors = append(report.Errors, lerr)
			logger.Warn("skipping dictionary", "path", src.Path, "tier", src.Tier, "error", res.err)
			continue
		}
		added := 0
		for _, rec := range res.records {
			if trie.Insert(rec.Key, rec.Word, src.Tier, rec.Tags) {
				added++
			}
		}
		report.Loaded++
		logger.Debug("loaded dictionary", "path", src.Path, "tier", src.Tier, "records", len(res.records), "added", added)
	}
	report.Entries = trie.Len()
	report.Keys = trie.KeyCount()
	report.Duration = time.Since(started)
	return trie, report, nil
}

// ParseFile opens and parses one dictionary file by its extension.
func ParseFile(path string) ([]Record, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unsupported dictionary file")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, format)
}
