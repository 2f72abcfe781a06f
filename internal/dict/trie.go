// Package dict holds the tiered pinyin dictionary: a byte trie keyed by
// tone-free pinyin, the file parsers that feed it, and the Store that
// publishes immutable snapshots of it.
package dict

import (
	"container/heap"
	"slices"
	"strings"
)

// Entry is one word filed under a pinyin key.
type Entry struct {
	Key  string
	Word string
	Tier int
	Tags []string

	seq uint64
}

// HasTagPrefix reports whether any tag starts with prefix.
func (e Entry) HasTagPrefix(prefix string) bool {
	for _, tag := range e.Tags {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}

type node struct {
	children map[byte]*node
	entries  []Entry
}

func (n *node) child(c byte) *node {
	if n.children == nil {
		return nil
	}
	return n.children[c]
}

// Trie maps pinyin keys to entry lists ordered by tier, then insertion.
// A Trie is mutable while it is being built; once handed to a Store it is
// only read.
type Trie struct {
	root    node
	seq     uint64
	entries int
	keys    int
}

func NewTrie() *Trie {
	return &Trie{}
}

// Insert files word under key. It returns false when the word is already
// present under that key, in which case any new tags are merged into the
// existing entry. Entries are kept sorted by tier; within a tier the
// earlier insert wins.
func (t *Trie) Insert(key, word string, tier int, tags []string) bool {
	if key == "" || word == "" {
		return false
	}
	n := &t.root
	for i := 0; i < len(key); i++ {
		c := key[i]
		next := n.child(c)
		if next == nil {
			if n.children == nil {
				n.children = make(map[byte]*node)
			}
			next = &node{}
			n.children[c] = next
		}
		n = next
	}

	for i := range n.entries {
		if n.entries[i].Word == word {
			n.entries[i].Tags = mergeTags(n.entries[i].Tags, tags)
			return false
		}
	}

	if len(n.entries) == 0 {
		t.keys++
	}
	e := Entry{Key: key, Word: word, Tier: tier, Tags: mergeTags(nil, tags), seq: t.seq}
	t.seq++
	t.entries++

	at := len(n.entries)
	for at > 0 && n.entries[at-1].Tier > tier {
		at--
	}
	n.entries = slices.Insert(n.entries, at, e)
	return true
}

func mergeTags(have, add []string) []string {
	for _, tag := range add {
		if tag == "" || slices.Contains(have, tag) {
			continue
		}
		have = append(have, tag)
	}
	return have
}

func (t *Trie) find(key string) *node {
	n := &t.root
	for i := 0; i < len(key) && n != nil; i++ {
		n = n.child(key[i])
	}
	return n
}

// LookupExact returns the entries filed under exactly key.
func (t *Trie) LookupExact(key string) []Entry {
	if t == nil || key == "" {
		return nil
	}
	n := t.find(key)
	if n == nil || len(n.entries) == 0 {
		return nil
	}
	return slices.Clone(n.entries)
}

// LookupPrefix returns every entry under prefix or any continuation of it,
// ordered by tier, insertion order and key, each word at most once.
func (t *Trie) LookupPrefix(prefix string) []Entry {
	return t.LookupPrefixN(prefix, 0)
}

// LookupPrefixN is LookupPrefix truncated to n entries; n <= 0 means all.
func (t *Trie) LookupPrefixN(prefix string, n int) []Entry {
	return t.LookupPrefixMatch(prefix, n, nil)
}

// LookupPrefixMatch is LookupPrefixN over the entries keep accepts. A nil
// keep accepts everything. Each key's list is already ordered, so the
// lists are merged and the walk stops after n words.
func (t *Trie) LookupPrefixMatch(prefix string, n int, keep func(Entry) bool) []Entry {
	if t == nil || prefix == "" {
		return nil
	}
	start := t.find(prefix)
	if start == nil {
		return nil
	}
	var lists entryHeap
	var walk func(*node)
	walk = func(cur *node) {
		if len(cur.entries) > 0 {
			lists = append(lists, cur.entries)
		}
		for _, next := range cur.children {
			walk(next)
		}
	}
	walk(start)
	heap.Init(&lists)

	var out []Entry
	seen := make(map[string]struct{})
	for lists.Len() > 0 {
		e := lists[0][0]
		if rest := lists[0][1:]; len(rest) > 0 {
			lists[0] = rest
			heap.Fix(&lists, 0)
		} else {
			heap.Pop(&lists)
		}
		if _, dup := seen[e.Word]; dup {
			continue
		}
		if keep != nil && !keep(e) {
			continue
		}
		seen[e.Word] = struct{}{}
		out = append(out, e)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

func entryBefore(a, b Entry) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.Key < b.Key
}

// entryHeap orders non-empty entry lists by their head.
type entryHeap [][]Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return entryBefore(h[i][0], h[j][0]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.([]Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// Contains reports whether key has at least one entry.
func (t *Trie) Contains(key string) bool {
	if t == nil || key == "" {
		return false
	}
	n := t.find(key)
	return n != nil && len(n.entries) > 0
}

// HasPrefix reports whether any key starts with prefix.
func (t *Trie) HasPrefix(prefix string) bool {
	if t == nil {
		return false
	}
	return t.find(prefix) != nil
}

// Len is the number of entries.
func (t *Trie) Len() int {
	if t == nil {
		return 0
	}
	return t.entries
}

// KeyCount is the number of distinct keys.
func (t *Trie) KeyCount() int {
	if t == nil {
		return 0
	}
	return t.keys
}

// Keys returns every key in byte order.
func (t *Trie) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, t.keys)
	var buf []byte
	var walk func(*node)
	walk = func(n *node) {
		if len(n.entries) > 0 {
			out = append(out, string(buf))
		}
		next := make([]byte, 0, len(n.children))
		for c := range n.children {
			next = append(next, c)
		}
		slices.Sort(next)
		for _, c := range next {
			buf = append(buf, c)
			walk(n.children[c])
			buf = buf[:len(buf)-1]
		}
	}
	walk(&t.root)
	return out
}
