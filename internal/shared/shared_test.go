package shared

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/config"
	"pinfe/internal/dict"
)

func writeDict(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func testConfig(dirs ...string) config.Config {
	cfg := config.Default()
	cfg.Dictionary.DictDirs = dirs
	return cfg
}

func TestReloadPublishesTiers(t *testing.T) {
	root := t.TempDir()
	common := filepath.Join(root, "common")
	rare := filepath.Join(root, "rare")
	writeDict(t, common, "chars.json", `{"ni": ["你"], "li": [{"char": "里", "en": "inside"}]}`)
	writeDict(t, rare, "chars.json", `{"ni": ["逆", "你"]}`)
	writeDict(t, rare, "level3.json", `{"ni": ["伲"]}`)

	s, err := New(testConfig(common, rare), nil)
	require.NoError(t, err)
	report, err := s.ReloadConfigured(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Files)

	words := func() []string {
		var out []string
		for _, e := range s.Trie().LookupExact("ni") {
			out = append(out, e.Word)
		}
		return out
	}
	assert.Equal(t, []string{"你", "逆"}, words())

	_, err = s.Reload(context.Background(), []string{common, rare}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"你", "逆", "伲"}, words())
}

func TestReloadTwiceIsStable(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "a.json", `{"ni": ["你", "泥"], "hao": ["好"]}`)
	s, err := New(testConfig(dir), nil)
	require.NoError(t, err)

	_, err = s.ReloadConfigured(context.Background())
	require.NoError(t, err)
	first := s.Lookup("ni")
	gen := s.Store().Snapshot().Generation

	_, err = s.ReloadConfigured(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, s.Lookup("ni"))
	assert.Greater(t, s.Store().Snapshot().Generation, gen)
}

func TestApplyConfig(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeDict(t, dirA, "a.json", `{"zhi": ["之"]}`)
	writeDict(t, dirB, "b.json", `{"zhi": ["知"]}`)

	s, err := New(testConfig(dirA), nil)
	require.NoError(t, err)
	_, err = s.ReloadConfigured(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s.FuzzyRules())

	cfg := testConfig(dirA)
	cfg.Input.Fuzzy = true
	cfg.Input.PageSize = 5
	reloaded, err := s.ApplyConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, reloaded)
	assert.Equal(t, 5, s.PageSize())
	require.NotEmpty(t, s.FuzzyRules())

	// "zi" reaches "zhi" through z=zh
	cands := s.Lookup("zi")
	require.NotEmpty(t, cands)
	assert.Equal(t, "之", cands[0].Word)
	assert.True(t, cands[0].Fuzzy)

	cfg.Dictionary.DictDirs = []string{dirB}
	reloaded, err = s.ApplyConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Equal(t, "知", s.Lookup("zhi")[0].Word)
}

func TestApplyConfigRejectsInvalid(t *testing.T) {
	s, err := New(config.Default(), nil)
	require.NoError(t, err)

	bad := config.Default()
	bad.Input.PageSize = 40
	_, err = s.ApplyConfig(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, config.Default().Input.PageSize, s.PageSize())
}

func TestPunctuationFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "punct.json")
	require.NoError(t, os.WriteFile(path, []byte(`{".": "．"}`), 0o644))

	cfg := config.Default()
	cfg.Dictionary.PunctuationFile = path
	s, err := New(cfg, nil)
	require.NoError(t, err)
	text, ok := s.Punctuation().Lookup('.')
	require.True(t, ok)
	assert.Equal(t, "．", text)
	text, _ = s.Punctuation().Lookup(',')
	assert.Equal(t, "，", text)
}

func TestNewWithStore(t *testing.T) {
	trie := dict.NewTrie()
	trie.Insert("hao", "好", 1, nil)
	s, err := NewWithStore(config.Default(), dict.NewStoreFromTrie(trie, nil), nil)
	require.NoError(t, err)
	require.Len(t, s.Lookup("hao"), 1)
	assert.Equal(t, "好", s.Lookup("hao")[0].Word)
}

func TestMissingPunctuationFileFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Dictionary.PunctuationFile = filepath.Join(t.TempDir(), "missing.json")
	require.NoError(t, config.Validate(cfg))

	s, err := New(cfg, nil)
	require.NoError(t, err)
	text, ok := s.Punctuation().Lookup(',')
	require.True(t, ok)
	assert.Equal(t, "，", text)

	reloaded, err := s.ApplyConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, reloaded)
}

func TestProfiles(t *testing.T) {
	root := t.TempDir()
	zh := filepath.Join(root, "zh")
	ja := filepath.Join(root, "ja")
	writeDict(t, zh, "chars.json", `{"ka": ["卡"]}`)
	writeDict(t, ja, "kana.json", `{"ka": ["か"]}`)

	cfg := testConfig(zh)
	cfg.Dictionary.Profiles = []string{"japanese=" + ja}
	s, err := New(cfg, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	published := map[string]int{}
	s.OnPublish(func(profile string, snap *dict.Snapshot) {
		mu.Lock()
		published[profile] = snap.Trie.Len()
		mu.Unlock()
	})
	_, err = s.ReloadConfigured(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"default": 1, "japanese": 1}, published)

	assert.Equal(t, []string{"default", "japanese"}, s.Profiles())
	assert.Equal(t, "default", s.Profile())
	assert.Equal(t, "卡", s.Lookup("ka")[0].Word)

	assert.Equal(t, "japanese", s.NextProfile())
	assert.Equal(t, "か", s.Lookup("ka")[0].Word)
	assert.Equal(t, "default", s.NextProfile())

	require.NoError(t, s.SetProfile("Japanese"))
	assert.Equal(t, "か", s.Trie().LookupExact("ka")[0].Word)
	assert.Error(t, s.SetProfile("korean"))

	// a reload that keeps the profile keeps the runtime choice
	_, err = s.ApplyConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "japanese", s.Profile())

	cfg.Dictionary.Profiles = nil
	reloaded, err := s.ApplyConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Equal(t, "default", s.Profile())
	assert.Equal(t, []string{"default"}, s.Profiles())
}
