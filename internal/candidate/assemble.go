// Package candidate merges dictionary lookups for every fuzzy spelling of
// the buffer into one ordered, duplicate-free candidate list and pages it.
package candidate

import (
	"strings"

	"pinfe/internal/dict"
	"pinfe/internal/pinyin"
)

// Candidate is one selectable word for the current buffer.
type Candidate struct {
	Word  string
	Tier  int
	Tags  []string
	Key   string
	Fuzzy bool
}

// HasTagPrefix reports whether any tag starts with prefix.
func (c Candidate) HasTagPrefix(prefix string) bool {
	for _, tag := range c.Tags {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}

// Index is the read side of a dictionary. *dict.Trie satisfies it.
type Index interface {
	LookupExact(key string) []dict.Entry
	LookupPrefixN(prefix string, n int) []dict.Entry
	LookupPrefixMatch(prefix string, n int, keep func(dict.Entry) bool) []dict.Entry
}

// DefaultPrefixLimit caps continuation lookups per variant.
const DefaultPrefixLimit = 200

// Options tunes Assemble.
type Options struct {
	// PrefixLimit caps continuation entries per variant; <= 0 uses
	// DefaultPrefixLimit.
	PrefixLimit int
	// NoCompose disables building a phrase from per-syllable matches when
	// no variant matches as a whole.
	NoCompose bool
}

// Assemble returns candidates for variants in order. The unmodified
// spelling comes first from pinyin.Expand, so its matches outrank every
// fuzzy spelling regardless of tier. Within a variant exact matches come
// before continuations. A word appears once, at its first position. When
// filter is non-empty only candidates with a tag starting with it survive.
func Assemble(idx Index, variants []pinyin.Variant, filter string, opts Options) []Candidate {
	if idx == nil || len(variants) == 0 {
		return nil
	}
	limit := opts.PrefixLimit
	if limit <= 0 {
		limit = DefaultPrefixLimit
	}

	seen := make(map[string]struct{})
	var out []Candidate
	add := func(e dict.Entry, fuzzy bool) {
		if _, dup := seen[e.Word]; dup {
			return
		}
		seen[e.Word] = struct{}{}
		out = append(out, Candidate{Word: e.Word, Tier: e.Tier, Tags: e.Tags, Key: e.Key, Fuzzy: fuzzy})
	}

	// the filter runs inside the continuation walk so the limit counts
	// only entries that can survive it
	var keep func(dict.Entry) bool
	if filter != "" {
		lower := strings.ToLower(filter)
		keep = func(e dict.Entry) bool { return e.HasTagPrefix(lower) }
	}

	matched := false
	for _, v := range variants {
		exact := idx.LookupExact(v.Key)
		prefix := idx.LookupPrefixMatch(v.Key, limit, keep)
		if len(exact) > 0 || len(prefix) > 0 || (keep != nil && len(idx.LookupPrefixN(v.Key, 1)) > 0) {
			matched = true
		}
		for _, e := range exact {
			add(e, v.Fuzzy)
		}
		for _, e := range prefix {
			add(e, v.Fuzzy)
		}
	}

	if !matched && !opts.NoCompose {
		for _, v := range variants {
			if c, ok := compose(idx, v); ok {
				add(dict.Entry{Key: c.Key, Word: c.Word, Tier: c.Tier, Tags: c.Tags}, v.Fuzzy)
			}
		}
	}

	if filter == "" {
		return out
	}
	return Filter(out, filter)
}

// Filter keeps candidates with a tag starting with prefix, preserving
// order.
func Filter(cands []Candidate, prefix string) []Candidate {
	prefix = strings.ToLower(prefix)
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.HasTagPrefix(prefix) {
			kept = append(kept, c)
		}
	}
	return kept
}

// compose joins the best exact entry of each segment into a phrase. The
// phrase takes the tags of its first character so a semantic filter still
// applies to it.
func compose(idx Index, v pinyin.Variant) (Candidate, bool) {
	if len(v.Segments) < 2 {
		return Candidate{}, false
	}
	var b strings.Builder
	c := Candidate{Key: v.Key}
	for i, seg := range v.Segments {
		entries := idx.LookupExact(seg)
		if len(entries) == 0 {
			return Candidate{}, false
		}
		first := entries[0]
		b.WriteString(first.Word)
		if i == 0 {
			c.Tags = first.Tags
		}
		if first.Tier > c.Tier {
			c.Tier = first.Tier
		}
	}
	c.Word = b.String()
	return c, true
}

// Resolve runs the whole lookup for a raw composing buffer: split off the
// filter, normalize, expand under rules and assemble.
func Resolve(idx Index, buffer string, rules pinyin.Rules, opts Options) []Candidate {
	_, filter := pinyin.Split(buffer)
	key := pinyin.Normalize(buffer)
	if key == "" {
		return nil
	}
	return Assemble(idx, pinyin.Expand(key, rules), filter, opts)
}
