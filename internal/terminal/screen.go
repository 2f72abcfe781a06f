// Package terminal runs the composing machine on a raw terminal instead of
// an evdev device. Screen is an emitter.Output that edits the current line
// in memory and redraws it together with the preedit and candidate list.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"pinfe/internal/emitter"
	"pinfe/internal/engine"
	"pinfe/internal/keymap"
	"pinfe/internal/linux"
	"pinfe/internal/types"
	"pinfe/internal/util"
)

const clearLine = "\r\033[K"

type Screen struct {
	w     io.Writer
	line  []rune
	done  []string
	shift bool
}

var _ emitter.Output = (*Screen)(nil)

func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w}
}

func (s *Screen) Close() error { return nil }

// Text is the line being edited.
func (s *Screen) Text() string { return string(s.line) }

// Lines are the lines finished with Enter.
func (s *Screen) Lines() []string { return s.done }

func (s *Screen) ForwardEvent(ev *util.InputEvent) error {
	if ev == nil || ev.Type != linux.EvKey {
		return nil
	}
	return s.key(ev.Code, ev.Value != linux.KeyValueRelease)
}

func (s *Screen) SendKeyState(code uint16, pressed bool) error {
	return s.key(code, pressed)
}

func (s *Screen) TapKey(code uint16) error {
	if err := s.key(code, true); err != nil {
		return err
	}
	return s.key(code, false)
}

func (s *Screen) SendBackspace(count int) error {
	if count > len(s.line) {
		count = len(s.line)
	}
	s.line = s.line[:len(s.line)-count]
	return nil
}

func (s *Screen) SendText(text string) error {
	s.line = append(s.line, []rune(text)...)
	return nil
}

func (s *Screen) key(code uint16, pressed bool) error {
	if code == uint16(linux.KeyLeftShift) || code == uint16(linux.KeyRightShift) {
		s.shift = pressed
		return nil
	}
	if !pressed {
		return nil
	}
	sym := keymap.Translate(code, s.shift)
	switch sym.Kind {
	case keymap.KindEnter:
		return s.newline()
	case keymap.KindBackspace:
		return s.SendBackspace(1)
	case keymap.KindNone, keymap.KindEscape, keymap.KindTab:
		return nil
	default:
		s.line = append(s.line, rune(sym.Char))
	}
	return nil
}

func (s *Screen) newline() error {
	s.done = append(s.done, string(s.line))
	_, err := fmt.Fprintf(s.w, "%s%s\r\n", clearLine, string(s.line))
	s.line = s.line[:0]
	return err
}

// Render redraws the current line followed by the machine's preedit.
func (s *Screen) Render(st engine.Status) error {
	var b strings.Builder
	b.WriteString(clearLine)
	b.WriteString(prompt(st))
	b.WriteString(string(s.line))
	if st.Buffer != "" {
		b.WriteString("  [")
		b.WriteString(st.Line())
		b.WriteByte(']')
		if st.Pages > 1 {
			fmt.Fprintf(&b, " %d/%d", st.Page+1, st.Pages)
		}
	}
	_, err := io.WriteString(s.w, b.String())
	return err
}

func prompt(st engine.Status) string {
	if st.Mode == types.ModeChinese {
		return "中> "
	}
	return "en> "
}
