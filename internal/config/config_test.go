package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/linux"
	"pinfe/internal/types"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, types.ModeChinese, cfg.Mode())
	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestLoadINI(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.ini", `
[dictionary]
dict_dirs = /a, /b
enable_level3 = true

[input]
default_mode = english
fuzzy = true
fuzzy_rules = z=zh, an=ang
page_size = 5
preview = hanzi
toggle_keys = ctrl+space, alt_r

[output]
method = clipboard
paste = ctrl_shift_v
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, []string{"/a", "/b"}, cfg.Dictionary.DictDirs)
	assert.True(t, cfg.Dictionary.EnableLevel3)
	assert.Equal(t, types.ModeEnglish, cfg.Mode())
	assert.Equal(t, []string{"z=zh", "an=ang"}, cfg.Input.FuzzyRules)
	assert.Equal(t, 5, cfg.Input.PageSize)
	assert.Equal(t, PreviewHanzi, cfg.Input.Preview)
	assert.Equal(t, MethodClipboard, cfg.Output.Method)
	assert.Equal(t, PasteCtrlShiftV, cfg.Output.Paste)
	// untouched keys keep their defaults
	assert.True(t, cfg.Input.AutoCommitUnique)
	assert.Equal(t, "info", cfg.Log.Level)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestLoadINIRejectsUnknown(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeFile(t, dir, "a.ini", "[input]\npage_sise = 3\n"))
	require.Error(t, err)
	var cfgErr ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = Load(writeFile(t, dir, "b.ini", "[inputs]\npage_size = 3\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "c.ini", "page_size = 3\n"))
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `
[dictionary]
extra_dicts = ["/x/words.json"]

[input]
fuzzy = true
prefix_limit = 50

[daemon]
metrics_addr = "127.0.0.1:9464"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/words.json"}, cfg.Dictionary.ExtraDicts)
	assert.Equal(t, 50, cfg.Input.PrefixLimit)
	assert.Equal(t, "127.0.0.1:9464", cfg.Daemon.MetricsAddr)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	_, err = Load(writeFile(t, t.TempDir(), "bad.toml", "[input]\nnope = 1\n"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
input:
  page_size: 7
  toggle_keys: [capslock]
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Input.PageSize)
	assert.Equal(t, []string{"capslock"}, cfg.Input.ToggleKeys)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = Load(writeFile(t, t.TempDir(), "bad.yaml", "input:\n  unknown: 1\n"))
	assert.Error(t, err)

	empty, err := Load(writeFile(t, t.TempDir(), "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Input, empty.Input)
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Input.PageSize = 0
	cfg.Input.Preview = "overlay"
	cfg.Input.FuzzyRules = []string{"zh"}
	cfg.Output.Method = "wayland"

	err := Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "page_size")
	assert.Contains(t, msg, "preview")
	assert.Contains(t, msg, "fuzzy_rules")
	assert.Contains(t, msg, "output.method")
}

func TestParseToggleChords(t *testing.T) {
	chords, err := ParseToggleChords([]string{"alt_r", "ctrl+space", "ctrl+shift+f5", ""})
	require.NoError(t, err)
	require.Len(t, chords, 3)

	assert.Equal(t, uint16(linux.KeyRightAlt), chords[0].Key)
	assert.Empty(t, chords[0].ModifierGroups)

	assert.Equal(t, uint16(linux.KeySpace), chords[1].Key)
	require.Len(t, chords[1].ModifierGroups, 1)
	assert.Contains(t, chords[1].ModifierGroups[0], uint16(linux.KeyLeftCtrl))
	assert.Contains(t, chords[1].ModifierGroups[0], uint16(linux.KeyRightCtrl))

	assert.Equal(t, uint16(linux.KeyF5), chords[2].Key)
	assert.Len(t, chords[2].ModifierGroups, 2)

	_, err = ParseToggleChords([]string{"hyper+space"})
	assert.Error(t, err)
	_, err = ParseToggleChords([]string{"nosuchkey"})
	assert.Error(t, err)
}

func TestParseKeyName(t *testing.T) {
	for name, want := range map[string]int{
		"a": linux.KeyA, "KEY_Q": linux.KeyQ, "1": linux.Key1, "0": linux.Key0,
		"caps": linux.KeyCapsLock, "space": linux.KeySpace,
	} {
		code, err := ParseKeyName(name)
		require.NoError(t, err, name)
		assert.Equal(t, uint16(want), code, name)
	}
}

func TestResolveSources(t *testing.T) {
	root := t.TempDir()
	sys := filepath.Join(root, "sys")
	user := filepath.Join(root, "user")
	writeFile(t, sys, "b.json", "{}")
	writeFile(t, sys, "a.txt", "")
	writeFile(t, sys, "notes.md", "")
	writeFile(t, sys, "level3.json", "{}")
	writeFile(t, user, "mine.dict.yaml", "")
	extra := writeFile(t, root, "extra.tsv", "")

	sources := ResolveSources([]string{sys, filepath.Join(root, "missing"), user}, []string{extra}, false)
	got := make([][2]any, len(sources))
	for i, s := range sources {
		got[i] = [2]any{filepath.Base(s.Path), s.Tier}
	}
	assert.Equal(t, [][2]any{
		{"a.txt", 1}, {"b.json", 1}, {"mine.dict.yaml", 3}, {"extra.tsv", 4},
	}, got)

	withL3 := ResolveSources([]string{sys}, nil, true)
	require.Len(t, withL3, 3)
	last := withL3[len(withL3)-1]
	assert.Equal(t, "level3.json", filepath.Base(last.Path))
	assert.Equal(t, 2, last.Tier)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.ini", "[input]\npage_size = 4\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	require.NoError(t, Watch(ctx, path, nil, func(cfg Config) { changes <- cfg }))

	require.NoError(t, os.WriteFile(path, []byte("[input]\npage_size = 6\n"), 0o600))
	select {
	case cfg := <-changes:
		assert.Equal(t, 6, cfg.Input.PageSize)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}
