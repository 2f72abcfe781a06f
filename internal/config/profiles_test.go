package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(" Japanese = /usr/share/pinfe/ja:/home/me/kana.json ")
	require.NoError(t, err)
	assert.Equal(t, "japanese", p.Name)
	assert.Equal(t, []string{"/usr/share/pinfe/ja"}, p.Dirs)
	assert.Equal(t, []string{"/home/me/kana.json"}, p.Files)

	for _, bad := range []string{"japanese", "=/a", "default=/a", "empty=::"} {
		_, err := ParseProfile(bad)
		assert.Error(t, err, bad)
	}
}

func TestProfilesFromINI(t *testing.T) {
	dir := t.TempDir()
	ja := filepath.Join(dir, "ja")
	writeFile(t, ja, "kana.json", `{"ka": ["か"]}`)
	path := writeFile(t, dir, "config.ini", `
[dictionary]
dict_dirs = /usr/share/pinfe/dict
profiles = japanese=`+ja+`
default_profile = Japanese

[input]
profile_keys = ctrl+alt+j
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "japanese", cfg.ActiveProfile())
	assert.Equal(t, []string{"ctrl+alt+j"}, cfg.Input.ProfileKeys)

	profiles, err := cfg.Profiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, DefaultProfileName, profiles[0].Name)
	assert.Equal(t, []string{"/usr/share/pinfe/dict"}, profiles[0].Dirs)

	sources := profiles[1].Sources(false)
	require.Len(t, sources, 1)
	assert.Equal(t, filepath.Join(ja, "kana.json"), sources[0].Path)
	assert.Equal(t, 1, sources[0].Tier)
}

func TestValidateProfiles(t *testing.T) {
	cfg := Default()
	cfg.Dictionary.DefaultProfile = "korean"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_profile")

	cfg = Default()
	cfg.Dictionary.Profiles = []string{"ja=/a", "ja=/b"}
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")

	cfg = Default()
	cfg.Input.PreviewKeys = []string{"hyper+p"}
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preview_keys")
}

func TestCycles(t *testing.T) {
	preview := PreviewNone
	var seen []string
	for i := 0; i < 3; i++ {
		preview = NextPreview(preview)
		seen = append(seen, preview)
	}
	assert.Equal(t, []string{PreviewPinyin, PreviewHanzi, PreviewNone}, seen)

	paste := PasteAuto
	seen = nil
	for i := 0; i < 4; i++ {
		paste = NextPaste(paste)
		seen = append(seen, paste)
	}
	assert.Equal(t, []string{PasteCtrlV, PasteCtrlShiftV, PasteShiftInsert, PasteAuto}, seen)
}
