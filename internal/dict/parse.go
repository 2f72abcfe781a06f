package dict

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"pinfe/internal/pinyin"
)

// Format identifies a dictionary file syntax.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatRime
	FormatTSV
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatRime:
		return "rime"
	case FormatTSV:
		return "tsv"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from the file name.
func FormatOf(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json"):
		return FormatJSON
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatRime
	case strings.HasSuffix(name, ".txt"), strings.HasSuffix(name, ".tsv"):
		return FormatTSV
	default:
		return FormatUnknown
	}
}

// Supported reports whether path names a dictionary file the loader reads.
// Punctuation tables share the .json suffix and are excluded.
func Supported(path string) bool {
	if strings.EqualFold(filepath.Base(path), "punctuation.json") {
		return false
	}
	return FormatOf(path) != FormatUnknown
}

// Record is one parsed (key, word, tags) line before it enters the trie.
type Record struct {
	Key  string
	Word string
	Tags []string
}

// Parse reads every record from r in file order.
func Parse(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatJSON:
		return parseJSON(r)
	case FormatRime:
		return parseRime(r)
	case FormatTSV:
		return parseTSV(r)
	default:
		return nil, fmt.Errorf("unsupported dictionary format")
	}
}

type jsonItem struct {
	Char string   `json:"char"`
	Word string   `json:"word"`
	En   string   `json:"en"`
	Tags []string `json:"tags"`
}

// parseJSON reads {"pinyin": ["词", {"char": "里", "en": "inside"}] | "词"}.
// The object is streamed so records keep the file's key order.
func parseJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("json dictionary must be an object")
	}

	var out []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read json key: %w", err)
		}
		rawKey, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected json token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("read json value for %q: %w", rawKey, err)
		}
		key := pinyin.Key(rawKey)
		if key == "" {
			continue
		}
		records, err := jsonValue(key, value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", rawKey, err)
		}
		out = append(out, records...)
	}
	return out, nil
}

func jsonValue(key string, value json.RawMessage) ([]Record, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, nil
	}
	switch value[0] {
	case '"':
		var word string
		if err := json.Unmarshal(value, &word); err != nil {
			return nil, err
		}
		return []Record{{Key: key, Word: strings.TrimSpace(word)}}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, err
		}
		out := make([]Record, 0, len(items))
		for _, item := range items {
			rec, ok, err := jsonEntry(key, item)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, rec)
			}
		}
		return out, nil
	case 'n':
		return nil, nil
	default:
		return nil, fmt.Errorf("expected string or array")
	}
}

func jsonEntry(key string, item json.RawMessage) (Record, bool, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '"' {
		var word string
		if err := json.Unmarshal(item, &word); err != nil {
			return Record{}, false, err
		}
		word = strings.TrimSpace(word)
		return Record{Key: key, Word: word}, word != "", nil
	}
	var obj jsonItem
	if err := json.Unmarshal(item, &obj); err != nil {
		return Record{}, false, err
	}
	word := strings.TrimSpace(obj.Char)
	if word == "" {
		word = strings.TrimSpace(obj.Word)
	}
	if word == "" {
		return Record{}, false, nil
	}
	tags := GlossTags(obj.En)
	for _, tag := range obj.Tags {
		tags = append(tags, GlossTags(tag)...)
	}
	return Record{Key: key, Word: word, Tags: tags}, true, nil
}

// GlossTags turns an English gloss like "inside; within" into lowercase
// tags usable as semantic filter targets.
func GlossTags(gloss string) []string {
	fields := strings.FieldsFunc(gloss, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '|'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// RimeHeader is the YAML preamble of a Rime .dict.yaml file.
type RimeHeader struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Sort    string `yaml:"sort"`
}

// parseRime reads a Rime dictionary: a YAML header closed by "...", then
// word<TAB>pinyin[<TAB>weight] lines.
func parseRime(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header strings.Builder
	inBody := false
	var out []Record
	for scanner.Scan() {
		line := scanner.Text()
		if !inBody {
			if strings.HasPrefix(line, "...") {
				inBody = true
				if err := checkRimeHeader(header.String()); err != nil {
					return nil, err
				}
				continue
			}
			header.WriteString(line)
			header.WriteByte('\n')
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		word := strings.TrimSpace(parts[0])
		key := pinyin.Key(parts[1])
		if word == "" || key == "" {
			continue
		}
		out = append(out, Record{Key: key, Word: word})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rime dictionary: %w", err)
	}
	return out, nil
}

func checkRimeHeader(text string) error {
	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "---")) == "" {
		return nil
	}
	var h RimeHeader
	if err := yaml.Unmarshal([]byte(text), &h); err != nil {
		return fmt.Errorf("rime header: %w", err)
	}
	return nil
}

// parseTSV reads pinyin<TAB>word[<TAB>tag,tag] lines. Lines starting with
// # or ; are comments.
func parseTSV(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []Record
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		key := pinyin.Key(parts[0])
		word := strings.TrimSpace(parts[1])
		if key == "" || word == "" {
			continue
		}
		rec := Record{Key: key, Word: word}
		if len(parts) > 2 {
			rec.Tags = GlossTags(parts[2])
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv dictionary: %w", err)
	}
	return out, nil
}
