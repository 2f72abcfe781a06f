package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalName(t *testing.T) {
	cases := map[string]bool{
		"Alacritty":                true,
		"kitty":                    true,
		"gnome-terminal":           true,
		"com.raggesilver.BlackBox": true,
		"org.wezfurlong.wezterm":   true,
		"xterm":                    true,
		"Cool-Retro-Term":          true,
		"terminal-window":          true,
		"text-editor":              false,
		"firefox":                  false,
		"shell":                    false,
		"":                         false,
	}
	for input, want := range cases {
		assert.Equal(t, want, IsTerminalName(input), input)
	}
}

func TestIsTerminalTitle(t *testing.T) {
	assert.True(t, IsTerminalTitle("My Terminal"))
	assert.True(t, IsTerminalTitle("TTY1"))
	assert.True(t, IsTerminalTitle("Console - htop"))
	assert.False(t, IsTerminalTitle("bash"))
	assert.False(t, IsTerminalTitle("Notes"))
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, State{Kind: KindTerminal}.Terminal())
	assert.True(t, State{Kind: KindConsole}.Terminal())
	assert.False(t, State{Kind: KindGUI}.Terminal())
	assert.False(t, State{}.Terminal())
	assert.Equal(t, "gui", KindGUI.String())
}

func TestDetectorWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("XDG_SESSION_TYPE", "tty")
	d, err := NewDetector()
	if !assert.NoError(t, err) {
		return
	}
	defer d.Close()
	assert.Equal(t, KindConsole, d.Poll().Kind)
}
