package pinyin

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator forces a syllable boundary inside a buffer ("xi'an").
const Separator = '\''

var umlaut = strings.NewReplacer(
	"ü", "v", "ǖ", "v", "ǘ", "v", "ǚ", "v", "ǜ", "v",
	"Ü", "v", "Ǖ", "v", "Ǘ", "v", "Ǚ", "v", "Ǜ", "v",
	"u:", "v",
)

// StripTones lowercases s, maps ü to v and removes combining tone marks.
func StripTones(s string) string {
	s = umlaut.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Key turns arbitrary pinyin text into a dictionary key: tone-free
// lowercase letters with spaces, digits and separators removed.
func Key(raw string) string {
	stripped := StripTones(raw)
	var b strings.Builder
	b.Grow(len(stripped))
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		if c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Split separates a composing buffer into its pinyin part and the
// semantic filter. The filter begins at the first uppercase letter after
// index 0 and is returned lowercased. A leading uppercase letter belongs
// to the pinyin.
func Split(buffer string) (string, string) {
	for i := 1; i < len(buffer); i++ {
		c := buffer[i]
		if c >= 'A' && c <= 'Z' {
			return strings.ToLower(buffer[:i]), strings.ToLower(buffer[i:])
		}
	}
	return strings.ToLower(buffer), ""
}

// Normalize strips the filter suffix and tone marks from a raw buffer,
// keeping only letters and explicit separators.
func Normalize(raw string) string {
	pinyin, _ := Split(raw)
	stripped := StripTones(pinyin)
	var b strings.Builder
	b.Grow(len(stripped))
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		if (c >= 'a' && c <= 'z') || c == Separator {
			b.WriteByte(c)
		}
	}
	return strings.Trim(b.String(), string(Separator))
}
