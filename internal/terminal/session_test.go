package terminal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/config"
	"pinfe/internal/engine"
	"pinfe/internal/keymap"
	"pinfe/internal/shared"
	"pinfe/internal/types"
)

func newSession(t *testing.T) (*Session, *Screen, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "words.json"),
		[]byte(`{"nihao": ["你好"], "ni": ["你", "泥"]}`), 0o644))
	cfg := config.Default()
	cfg.Dictionary.DictDirs = []string{dir}
	sh, err := shared.New(cfg, nil)
	require.NoError(t, err)
	_, err = sh.ReloadConfigured(context.Background())
	require.NoError(t, err)

	machine := engine.NewMachine(sh, engine.Options{
		DefaultMode: types.ModeChinese,
		Preview:     config.PreviewNone,
		PageSize:    10,
		Punctuation: keymap.DefaultPunctuation(),
	})
	var out bytes.Buffer
	screen := NewScreen(&out)
	return NewSession(machine, screen, nil), screen, &out
}

func typeRunes(t *testing.T, s *Session, text string) {
	t.Helper()
	for _, r := range text {
		if r == ' ' {
			require.NoError(t, s.Key(0, keyboard.KeySpace))
			continue
		}
		require.NoError(t, s.Key(r, 0))
	}
}

func TestComposeAndCommit(t *testing.T) {
	s, screen, out := newSession(t)
	typeRunes(t, s, "ni")
	assert.Empty(t, screen.Text())
	assert.Contains(t, out.String(), "[ni 1.你 2.泥 3.你好]")

	require.NoError(t, s.Key('3', 0))
	assert.Equal(t, "你好", screen.Text())

	typeRunes(t, s, "nihao ")
	assert.Equal(t, "你好你好", screen.Text())

	require.NoError(t, s.Key(0, keyboard.KeyEnter))
	assert.Equal(t, []string{"你好你好"}, screen.Lines())
	assert.Empty(t, screen.Text())
}

func TestIdlePunctuationAndBackspace(t *testing.T) {
	s, screen, _ := newSession(t)
	typeRunes(t, s, ",@")
	assert.Equal(t, "，@", screen.Text())

	require.NoError(t, s.Key(0, keyboard.KeyBackspace2))
	assert.Equal(t, "，", screen.Text())
}

func TestEscapeCancels(t *testing.T) {
	s, screen, _ := newSession(t)
	typeRunes(t, s, "nih")
	require.NoError(t, s.Key(0, keyboard.KeyEsc))
	assert.Empty(t, screen.Text())
	assert.Empty(t, s.machine.Status().Buffer)
}

func TestToggleToEnglish(t *testing.T) {
	s, screen, out := newSession(t)
	require.NoError(t, s.Key(0, keyboard.KeyCtrlSpace))
	assert.Equal(t, types.ModeEnglish, s.machine.Mode())

	typeRunes(t, s, "Hi ni!")
	assert.Equal(t, "Hi ni!", screen.Text())
	assert.Contains(t, out.String(), "en> Hi ni!")
}

func TestPagingKeysOnlyWhileComposing(t *testing.T) {
	s, screen, _ := newSession(t)
	require.NoError(t, s.Key(0, keyboard.KeyPgdn))
	assert.Empty(t, screen.Text())

	typeRunes(t, s, "ni")
	require.NoError(t, s.Key(0, keyboard.KeyArrowDown))
	assert.Equal(t, 1, s.machine.Status().Selected)
	require.NoError(t, s.Key(0, keyboard.KeySpace))
	assert.Equal(t, "泥", screen.Text())
}

func TestQuit(t *testing.T) {
	s, _, _ := newSession(t)
	assert.ErrorIs(t, s.Key(0, keyboard.KeyCtrlC), ErrQuit)
}
