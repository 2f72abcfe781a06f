package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-ini/ini"
	"gopkg.in/yaml.v3"

	"pinfe/internal/common"
	"pinfe/internal/pinyin"
	"pinfe/internal/types"
)

type ConfigError struct {
	msg string
}

func (e ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) ConfigError {
	return ConfigError{msg: fmt.Sprintf(format, args...)}
}

type DictionaryConfig struct {
	DictDirs        []string `ini:"dict_dirs" toml:"dict_dirs" yaml:"dict_dirs"`
	ExtraDicts      []string `ini:"extra_dicts" toml:"extra_dicts" yaml:"extra_dicts"`
	EnableLevel3    bool     `ini:"enable_level3" toml:"enable_level3" yaml:"enable_level3"`
	PunctuationFile string   `ini:"punctuation_file" toml:"punctuation_file" yaml:"punctuation_file"`
	Profiles        []string `ini:"profiles" toml:"profiles" yaml:"profiles"`
	DefaultProfile  string   `ini:"default_profile" toml:"default_profile" yaml:"default_profile"`
}

type InputConfig struct {
	DefaultMode      string   `ini:"default_mode" toml:"default_mode" yaml:"default_mode"`
	Fuzzy            bool     `ini:"fuzzy" toml:"fuzzy" yaml:"fuzzy"`
	FuzzyRules       []string `ini:"fuzzy_rules" toml:"fuzzy_rules" yaml:"fuzzy_rules"`
	PageSize         int      `ini:"page_size" toml:"page_size" yaml:"page_size"`
	Preview          string   `ini:"preview" toml:"preview" yaml:"preview"`
	AutoCommitUnique bool     `ini:"auto_commit_unique" toml:"auto_commit_unique" yaml:"auto_commit_unique"`
	PrefixLimit      int      `ini:"prefix_limit" toml:"prefix_limit" yaml:"prefix_limit"`
	ToggleKeys       []string `ini:"toggle_keys" toml:"toggle_keys" yaml:"toggle_keys"`
	ProfileKeys      []string `ini:"profile_keys" toml:"profile_keys" yaml:"profile_keys"`
	PreviewKeys      []string `ini:"preview_keys" toml:"preview_keys" yaml:"preview_keys"`
	PasteKeys        []string `ini:"paste_keys" toml:"paste_keys" yaml:"paste_keys"`
}

type OutputConfig struct {
	Method string `ini:"method" toml:"method" yaml:"method"`
	Paste  string `ini:"paste" toml:"paste" yaml:"paste"`
}

type DaemonConfig struct {
	Socket      string `ini:"socket" toml:"socket" yaml:"socket"`
	MetricsAddr string `ini:"metrics_addr" toml:"metrics_addr" yaml:"metrics_addr"`
	Notify      bool   `ini:"notify" toml:"notify" yaml:"notify"`
	Watch       bool   `ini:"watch" toml:"watch" yaml:"watch"`
}

type LogConfig struct {
	Level      string `ini:"level" toml:"level" yaml:"level"`
	Format     string `ini:"format" toml:"format" yaml:"format"`
	File       string `ini:"file" toml:"file" yaml:"file"`
	MaxSizeMB  int    `ini:"max_size_mb" toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `ini:"max_backups" toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `ini:"max_age_days" toml:"max_age_days" yaml:"max_age_days"`
}

// Config is the whole daemon configuration. Every file format maps onto
// the same five sections.
type Config struct {
	Dictionary DictionaryConfig `toml:"dictionary" yaml:"dictionary"`
	Input      InputConfig      `toml:"input" yaml:"input"`
	Output     OutputConfig     `toml:"output" yaml:"output"`
	Daemon     DaemonConfig     `toml:"daemon" yaml:"daemon"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

const (
	PreviewNone   = "none"
	PreviewPinyin = "pinyin"
	PreviewHanzi  = "hanzi"

	MethodUinput    = "uinput"
	MethodX11       = "x11"
	MethodClipboard = "clipboard"

	PasteAuto        = "auto"
	PasteCtrlV       = "ctrl_v"
	PasteCtrlShiftV  = "ctrl_shift_v"
	PasteShiftInsert = "shift_insert"
)

func Default() Config {
	return Config{
		Dictionary: DictionaryConfig{
			DictDirs: common.DefaultDictDirs(),
		},
		Input: InputConfig{
			DefaultMode:      "chinese",
			PageSize:         10,
			Preview:          PreviewPinyin,
			AutoCommitUnique: true,
			PrefixLimit:      200,
			ToggleKeys:       []string{"ctrl+space"},
			ProfileKeys:      []string{"ctrl+alt+s"},
			PreviewKeys:      []string{"ctrl+alt+p"},
			PasteKeys:        []string{"ctrl+alt+v"},
		},
		Output: OutputConfig{
			Method: MethodUinput,
			Paste:  PasteAuto,
		},
		Daemon: DaemonConfig{
			Notify: true,
			Watch:  true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, .yaml/.yml, anything else is INI. Unknown sections and keys are
// errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configErrorf("failed to read config %s: %v", path, err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, &cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	default:
		err = decodeINI(data, &cfg)
	}
	if err != nil {
		return Config{}, configErrorf("invalid config %s: %v", path, err)
	}
	return cfg, nil
}

// Resolve loads cliPath when given. Otherwise it loads the default path if
// that file exists and falls back to Default.
func Resolve(cliPath string) (Config, string, error) {
	if cliPath != "" {
		cfg, err := Load(cliPath)
		return cfg, cliPath, err
	}
	path := common.DefaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeINI(data []byte, cfg *Config) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, data)
	if err != nil {
		return err
	}
	sections := map[string]any{
		"dictionary": &cfg.Dictionary,
		"input":      &cfg.Input,
		"output":     &cfg.Output,
		"daemon":     &cfg.Daemon,
		"log":        &cfg.Log,
	}
	for _, section := range file.Sections() {
		name := strings.ToLower(section.Name())
		if name == strings.ToLower(ini.DefaultSection) {
			if len(section.Keys()) > 0 {
				return fmt.Errorf("keys outside a section: %s", strings.Join(section.KeyStrings(), ", "))
			}
			continue
		}
		target, ok := sections[name]
		if !ok {
			return fmt.Errorf("unknown section [%s]", section.Name())
		}
		known := iniKeys(target)
		for _, key := range section.KeyStrings() {
			if !slices.Contains(known, key) {
				return fmt.Errorf("unknown key %q in [%s]", key, section.Name())
			}
		}
		if err := section.MapTo(target); err != nil {
			return fmt.Errorf("section [%s]: %w", section.Name(), err)
		}
	}
	return nil
}

func iniKeys(target any) []string {
	t := reflect.TypeOf(target).Elem()
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("ini"); tag != "" {
			keys = append(keys, tag)
		}
	}
	return keys
}

// Validate checks every field and returns all problems joined.
func Validate(cfg Config) error {
	var errs []error
	if _, err := types.ParseMode(cfg.Input.DefaultMode); err != nil {
		errs = append(errs, configErrorf("input.default_mode: %v", err))
	}
	if cfg.Input.PageSize < 1 || cfg.Input.PageSize > 10 {
		errs = append(errs, configErrorf("input.page_size must be between 1 and 10, got %d", cfg.Input.PageSize))
	}
	switch cfg.Input.Preview {
	case PreviewNone, PreviewPinyin, PreviewHanzi:
	default:
		errs = append(errs, configErrorf("input.preview must be none, pinyin or hanzi, got %q", cfg.Input.Preview))
	}
	if cfg.Input.PrefixLimit < 0 {
		errs = append(errs, configErrorf("input.prefix_limit must not be negative"))
	}
	if _, err := pinyin.ParseRules(cfg.Input.FuzzyRules); err != nil {
		errs = append(errs, configErrorf("input.fuzzy_rules: %v", err))
	}
	hotkeys := []struct {
		name string
		keys []string
	}{
		{"toggle_keys", cfg.Input.ToggleKeys},
		{"profile_keys", cfg.Input.ProfileKeys},
		{"preview_keys", cfg.Input.PreviewKeys},
		{"paste_keys", cfg.Input.PasteKeys},
	}
	for _, h := range hotkeys {
		if _, err := ParseToggleChords(h.keys); err != nil {
			errs = append(errs, configErrorf("input.%s: %v", h.name, err))
		}
	}
	if profiles, err := cfg.Profiles(); err != nil {
		errs = append(errs, configErrorf("dictionary.profiles: %v", err))
	} else if !hasProfile(profiles, cfg.ActiveProfile()) {
		errs = append(errs, configErrorf("dictionary.default_profile: no profile named %q", cfg.ActiveProfile()))
	}
	switch cfg.Output.Method {
	case MethodUinput, MethodX11, MethodClipboard:
	default:
		errs = append(errs, configErrorf("output.method must be uinput, x11 or clipboard, got %q", cfg.Output.Method))
	}
	switch cfg.Output.Paste {
	case PasteAuto, PasteCtrlV, PasteCtrlShiftV, PasteShiftInsert:
	default:
		errs = append(errs, configErrorf("output.paste must be auto, ctrl_v, ctrl_shift_v or shift_insert, got %q", cfg.Output.Paste))
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, configErrorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, configErrorf("log.format must be text or json, got %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// Mode returns the configured start mode, English when invalid.
func (c Config) Mode() types.InputMode {
	mode, _ := types.ParseMode(c.Input.DefaultMode)
	return mode
}

// Rules returns the fuzzy rules in effect: nil when fuzzy matching is off,
// the standard set when none are listed.
func (c Config) Rules() (pinyin.Rules, error) {
	if !c.Input.Fuzzy {
		return nil, nil
	}
	if len(c.Input.FuzzyRules) == 0 {
		return pinyin.DefaultRules(), nil
	}
	return pinyin.ParseRules(c.Input.FuzzyRules)
}

// SocketPath is daemon.socket or the per-user default.
func (c Config) SocketPath() string {
	if c.Daemon.Socket != "" {
		return c.Daemon.Socket
	}
	return common.DefaultSocketPath()
}

// SameSources reports whether a and b load the same dictionaries.
func SameSources(a, b Config) bool {
	return slices.Equal(a.Dictionary.DictDirs, b.Dictionary.DictDirs) &&
		slices.Equal(a.Dictionary.ExtraDicts, b.Dictionary.ExtraDicts) &&
		slices.Equal(a.Dictionary.Profiles, b.Dictionary.Profiles) &&
		a.Dictionary.EnableLevel3 == b.Dictionary.EnableLevel3
}

func hasProfile(profiles []Profile, name string) bool {
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}
