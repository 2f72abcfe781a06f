package focus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies the window that will receive pasted text.
type Kind int

const (
	KindUnknown Kind = iota
	KindGUI
	KindTerminal
	KindConsole
)

func (k Kind) String() string {
	switch k {
	case KindGUI:
		return "gui"
	case KindTerminal:
		return "terminal"
	case KindConsole:
		return "console"
	default:
		return "unknown"
	}
}

// State is the result of one focus poll. Name is whatever identified the
// window: its class, process name or title.
type State struct {
	Kind Kind
	Name string
}

// Terminal reports whether pasting needs the terminal chord.
func (s State) Terminal() bool {
	return s.Kind == KindTerminal || s.Kind == KindConsole
}

var terminalNames = map[string]struct{}{
	"alacritty": {}, "kitty": {}, "wezterm": {}, "wezterm-gui": {}, "ghostty": {},
	"gnome-terminal": {}, "gnome-terminal-server": {}, "kgx": {}, "konsole": {},
	"yakuake": {}, "xfce4-terminal": {}, "terminator": {}, "tilix": {}, "guake": {},
	"tilda": {}, "xterm": {}, "uxterm": {}, "rxvt": {}, "urxvt": {}, "sakura": {},
	"hyper": {}, "tabby": {}, "rio": {}, "foot": {}, "footclient": {},
	"cool-retro-term": {}, "contour": {}, "st": {}, "st-256color": {}, "qterminal": {},
	"lxterminal": {}, "mate-terminal": {}, "deepin-terminal": {}, "warp-terminal": {},
	"blackbox": {}, "io.elementary.terminal": {}, "com.raggesilver.blackbox": {},
	"org.gnome.console": {}, "org.wezfurlong.wezterm": {},
}

// IsTerminalName matches window classes and process names of terminal
// emulators.
func IsTerminalName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if _, ok := terminalNames[name]; ok {
		return true
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == ' ' || r == '.' }) {
		if _, ok := terminalNames[part]; ok {
			return true
		}
	}
	return strings.Contains(name, "terminal") || strings.HasSuffix(name, "term")
}

// IsTerminalTitle is the last resort when class and process say nothing.
func IsTerminalTitle(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range []string{"terminal", "tty", "console"} {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

func processName(pid int) string {
	if pid <= 0 {
		return ""
	}
	if comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid)); err == nil {
		return strings.ToLower(strings.TrimSpace(string(comm)))
	}
	cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(string(cmdline), "\x00")
	return strings.ToLower(filepath.Base(first))
}

// consoleSession reports whether we run on a Linux virtual console rather
// than under a display server.
func consoleSession() bool {
	if os.Getenv("XDG_SESSION_TYPE") == "tty" {
		return true
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return false
	}
	_, err := os.Stat("/sys/class/tty/tty0/active")
	return err == nil
}
