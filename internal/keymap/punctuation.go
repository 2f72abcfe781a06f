package keymap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Punctuation maps an ASCII punctuation character to its full-width
// Chinese replacement.
type Punctuation map[string]string

// DefaultPunctuation is used when no punctuation file is configured.
func DefaultPunctuation() Punctuation {
	return Punctuation{
		",":  "，",
		".":  "。",
		"?":  "？",
		"!":  "！",
		":":  "：",
		";":  "；",
		"(":  "（",
		")":  "）",
		"[":  "【",
		"]":  "】",
		"<":  "《",
		">":  "》",
		"\\": "、",
		"^":  "……",
		"_":  "——",
		"$":  "￥",
		"~":  "～",
		"\"": "“",
	}
}

// Lookup returns the replacement for ch.
func (p Punctuation) Lookup(ch byte) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p[string(ch)]
	return s, ok && s != ""
}

// LoadPunctuation reads a JSON or YAML object of "ascii": "replacement"
// pairs and layers it over the defaults.
func LoadPunctuation(path string) (Punctuation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read punctuation %s: %w", path, err)
	}
	raw := map[string]string{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse punctuation %s: %w", path, err)
	}
	out := DefaultPunctuation()
	for k, v := range raw {
		if len(k) != 1 {
			return nil, fmt.Errorf("punctuation key %q must be one ASCII character", k)
		}
		out[k] = v
	}
	return out, nil
}
