package pinyin

import (
	"fmt"
	"strings"
)

// RuleKind says which half of a syllable a fuzzy rule rewrites.
type RuleKind int

const (
	RuleInitial RuleKind = iota
	RuleFinal
)

func (k RuleKind) String() string {
	if k == RuleInitial {
		return "initial"
	}
	return "final"
}

// Rule is a bidirectional substitution such as z<->zh or an<->ang.
type Rule struct {
	A, B string
	Kind RuleKind
}

func (r Rule) String() string { return r.A + "=" + r.B }

// Rules is an ordered rule set. Order decides variant order.
type Rules []Rule

// DefaultRuleSpecs is the conventional fuzzy set offered by most pinyin IMEs.
var DefaultRuleSpecs = []string{
	"z=zh", "c=ch", "s=sh", "n=l", "r=l", "f=h",
	"an=ang", "en=eng", "in=ing", "ian=iang", "uan=uang",
}

// DefaultRules parses DefaultRuleSpecs.
func DefaultRules() Rules {
	rules, err := ParseRules(DefaultRuleSpecs)
	if err != nil {
		panic(err)
	}
	return rules
}

// ParseRules parses "a=b" specs. Both sides must be initials, or both must
// be non-empty finals.
func ParseRules(specs []string) (Rules, error) {
	rules := make(Rules, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		lhs, rhs, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("fuzzy rule %q: expected a=b", spec)
		}
		a := strings.ToLower(strings.TrimSpace(lhs))
		b := strings.ToLower(strings.TrimSpace(rhs))
		if a == "" || b == "" || a == b {
			return nil, fmt.Errorf("fuzzy rule %q: both sides must differ and be non-empty", spec)
		}
		if !lettersOnly(a) || !lettersOnly(b) {
			return nil, fmt.Errorf("fuzzy rule %q: only ascii letters allowed", spec)
		}
		kind := RuleFinal
		switch {
		case IsInitial(a) && IsInitial(b):
			kind = RuleInitial
		case IsInitial(a) || IsInitial(b):
			return nil, fmt.Errorf("fuzzy rule %q mixes an initial with a final", spec)
		}
		key := a + "=" + b
		if a > b {
			key = b + "=" + a
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rules = append(rules, Rule{A: a, B: b, Kind: kind})
	}
	return rules, nil
}

func lettersOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// Variant is one spelling of the buffer produced by fuzzy expansion.
type Variant struct {
	Key      string
	Segments []string
	Fuzzy    bool
}

// MaxVariants bounds the expansion of a token with the given number of
// syllables under the given number of rules.
func MaxVariants(rules, syllables int) int {
	n := 1 + 4*rules*syllables
	if n > 64 {
		return 64
	}
	return n
}

// Expand returns the token's spellings under rules, the unmodified token
// first. Variants are produced in order of increasing substitution count,
// deduplicated, and capped at MaxVariants.
func Expand(token string, rules Rules) []Variant {
	segs := Segment(token)
	if len(segs) == 0 {
		return nil
	}
	original := Variant{Key: strings.Join(segs, ""), Segments: segs}
	if len(rules) == 0 {
		return []Variant{original}
	}

	alts := make([][]string, len(segs))
	for i, s := range segs {
		alts[i] = alternatives(s, rules)
	}

	limit := MaxVariants(len(rules), len(segs))
	out := []Variant{original}
	seen := map[string]struct{}{original.Key: {}}

	type partial struct {
		picks []int
		last  int
	}
	level := []partial{{picks: make([]int, len(segs)), last: -1}}
	// attempts caps work when substitutions keep colliding on one key.
	attempts := 0
	for len(level) > 0 && len(out) < limit && attempts < limit*8 {
		var next []partial
		for _, p := range level {
			for pos := p.last + 1; pos < len(segs); pos++ {
				for alt := 1; alt < len(alts[pos]); alt++ {
					attempts++
					picks := append([]int(nil), p.picks...)
					picks[pos] = alt
					next = append(next, partial{picks: picks, last: pos})

					spelled := make([]string, len(segs))
					for i, pick := range picks {
						spelled[i] = alts[i][pick]
					}
					key := strings.Join(spelled, "")
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					out = append(out, Variant{Key: key, Segments: spelled, Fuzzy: true})
					if len(out) >= limit {
						return out
					}
				}
			}
		}
		level = next
	}
	return out
}

// alternatives lists the spellings of one syllable, itself first.
func alternatives(syl string, rules Rules) []string {
	initial, final := SplitSyllable(syl)
	heads := []string{initial}
	tails := []string{final}
	for _, r := range rules {
		switch r.Kind {
		case RuleInitial:
			if initial == "" {
				continue
			}
			if initial == r.A {
				heads = appendUnique(heads, r.B)
			} else if initial == r.B {
				heads = appendUnique(heads, r.A)
			}
		case RuleFinal:
			if final == "" {
				continue
			}
			if final == r.A {
				tails = appendUnique(tails, r.B)
			} else if final == r.B {
				tails = appendUnique(tails, r.A)
			}
		}
	}
	out := make([]string, 0, len(heads)*len(tails))
	for _, f := range tails {
		for _, in := range heads {
			out = appendUnique(out, in+f)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
