package pinyin

import "strings"

// Segment splits a normalized token into syllables, preferring the longest
// syllable at every position and backtracking when the remainder cannot be
// split. An explicit separator always ends a syllable. When the token does
// not segment cleanly the whole token, separators removed, is returned as a
// single key so abbreviated input like "nh" still reaches the dictionary.
func Segment(token string) []string {
	token = strings.Trim(token, string(Separator))
	if token == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(token, string(Separator)) {
		if part == "" {
			continue
		}
		segs, ok := segmentPart(part)
		if !ok {
			return []string{strings.ReplaceAll(token, string(Separator), "")}
		}
		out = append(out, segs...)
	}
	return out
}

// Clean reports whether token segments entirely into standard syllables.
func Clean(token string) bool {
	segs := Segment(token)
	if len(segs) == 0 {
		return false
	}
	for _, s := range segs {
		if !IsSyllable(s) {
			return false
		}
	}
	return true
}

func segmentPart(part string) ([]string, bool) {
	// dead[i] marks offsets already proven unsegmentable.
	dead := make([]bool, len(part)+1)
	var walk func(at int) []string
	walk = func(at int) []string {
		if at == len(part) {
			return []string{}
		}
		if dead[at] {
			return nil
		}
		max := len(part) - at
		if max > MaxSyllableLen {
			max = MaxSyllableLen
		}
		for n := max; n >= 1; n-- {
			head := part[at : at+n]
			if !IsSyllable(head) {
				continue
			}
			if rest := walk(at + n); rest != nil {
				return append([]string{head}, rest...)
			}
		}
		dead[at] = true
		return nil
	}
	segs := walk(0)
	if segs == nil {
		return nil, false
	}
	return segs, true
}
