package terminal

import (
	"errors"
	"log/slog"

	"github.com/eiannone/keyboard"

	"pinfe/internal/emitter"
	"pinfe/internal/engine"
	"pinfe/internal/keymap"
	"pinfe/internal/linux"
	"pinfe/internal/types"
	"pinfe/internal/util"
)

// ErrQuit is returned by Key for Ctrl+C and Ctrl+D.
var ErrQuit = errors.New("quit")

// Session feeds terminal keys to a Machine as synthetic evdev events and
// applies the resulting actions to a Screen.
type Session struct {
	machine *engine.Machine
	screen  *Screen
	logger  *slog.Logger
}

func NewSession(machine *engine.Machine, screen *Screen, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{machine: machine, screen: screen, logger: logger}
}

func (s *Session) Redraw() error {
	return s.screen.Render(s.machine.Status())
}

// Key handles one key read from the terminal and redraws the screen.
func (s *Session) Key(ch rune, key keyboard.Key) error {
	switch {
	case ch == 0 && key == keyboard.KeyCtrlSpace:
		if err := s.apply(s.machine.ToggleMode(), nil); err != nil {
			return err
		}
	case key == keyboard.KeyCtrlC || key == keyboard.KeyCtrlD:
		return ErrQuit
	default:
		code, shift, ok := s.translate(ch, key)
		if !ok {
			s.logger.Debug("unmapped terminal key", "rune", ch, "key", key)
			return s.Redraw()
		}
		if err := s.stroke(code, shift); err != nil {
			return err
		}
	}
	return s.Redraw()
}

// translate maps a terminal key to the evdev key that would produce it.
func (s *Session) translate(ch rune, key keyboard.Key) (uint16, bool, bool) {
	if ch != 0 {
		if ch > 0x7f {
			return 0, false, false
		}
		return keymap.CodeFor(byte(ch))
	}
	composing := s.machine.Status().Buffer != ""
	switch key {
	case keyboard.KeySpace:
		return uint16(linux.KeySpace), false, true
	case keyboard.KeyEnter:
		return uint16(linux.KeyEnter), false, true
	case keyboard.KeyBackspace, keyboard.KeyBackspace2:
		return uint16(linux.KeyBackspace), false, true
	case keyboard.KeyTab:
		return uint16(linux.KeyTab), false, true
	case keyboard.KeyEsc:
		return uint16(linux.KeyEsc), false, true
	case keyboard.KeyArrowDown:
		return uint16(linux.KeyTab), false, composing
	case keyboard.KeyArrowUp:
		return uint16(linux.KeyTab), true, composing
	case keyboard.KeyPgdn:
		return uint16(linux.KeyEqual), false, composing
	case keyboard.KeyPgup:
		return uint16(linux.KeyMinus), false, composing
	}
	return 0, false, false
}

// stroke presses and releases code, wrapped in a shift press when needed.
func (s *Session) stroke(code uint16, shift bool) error {
	events := make([]engine.KeyEvent, 0, 4)
	if shift {
		events = append(events, engine.KeyEvent{Code: uint16(linux.KeyLeftShift), Value: linux.KeyValuePress})
	}
	events = append(events,
		engine.KeyEvent{Code: code, Value: linux.KeyValuePress},
		engine.KeyEvent{Code: code, Value: linux.KeyValueRelease},
	)
	if shift {
		events = append(events, engine.KeyEvent{Code: uint16(linux.KeyLeftShift), Value: linux.KeyValueRelease})
	}
	for _, ev := range events {
		if !linux.IsModifier(ev.Code) {
			// a forwarded key is typed with the shift state the user had
			s.screen.shift = shift
		}
		raw := util.InputEvent{Type: linux.EvKey, Code: ev.Code, Value: ev.Value}
		if err := s.apply(s.machine.HandleKey(ev), &raw); err != nil {
			return err
		}
	}
	s.screen.shift = false
	return nil
}

func (s *Session) apply(action types.Action, ev *util.InputEvent) error {
	return emitter.Apply(s.screen, action, ev)
}
