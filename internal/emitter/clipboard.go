package emitter

import (
	"fmt"
	"io"

	"github.com/atotto/clipboard"

	"pinfe/internal/config"
	"pinfe/internal/focus"
	"pinfe/internal/linux"
)

// FocusPoller reports what kind of window has the keyboard focus.
type FocusPoller interface {
	Poll() focus.State
}

var writeClipboard = clipboard.WriteAll

// PasteCycler is an output whose paste chord can be changed at runtime.
type PasteCycler interface {
	CyclePaste() string
}

// ClipboardEmitter puts committed text on the clipboard and sends a paste
// chord. Raw events and backspaces go through uinput.
type ClipboardEmitter struct {
	*UinputEmitter
	paste string
	focus FocusPoller
}

func NewClipboardEmitter(u *UinputEmitter, paste string, poller FocusPoller) *ClipboardEmitter {
	return &ClipboardEmitter{UinputEmitter: u, paste: paste, focus: poller}
}

func (e *ClipboardEmitter) SendText(text string) error {
	if text == "" {
		return nil
	}
	if err := writeClipboard(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	var state focus.State
	if e.paste == config.PasteAuto && e.focus != nil {
		state = e.focus.Poll()
	}
	key, mods := PasteChord(e.paste, state)
	return e.Chord(key, mods...)
}

// CyclePaste moves to the next paste method and returns it. Only the
// engine goroutine calls it.
func (e *ClipboardEmitter) CyclePaste() string {
	e.paste = config.NextPaste(e.paste)
	return e.paste
}

func (e *ClipboardEmitter) Close() error {
	if c, ok := e.focus.(io.Closer); ok {
		_ = c.Close()
	}
	return e.UinputEmitter.Close()
}

// PasteChord returns the key and modifiers that paste in the focused
// window. Auto mode uses Ctrl+Shift+V for terminals and Ctrl+V elsewhere.
func PasteChord(method string, state focus.State) (uint16, []uint16) {
	ctrl, shift := uint16(linux.KeyLeftCtrl), uint16(linux.KeyLeftShift)
	switch method {
	case config.PasteCtrlShiftV:
		return uint16(linux.KeyV), []uint16{ctrl, shift}
	case config.PasteShiftInsert:
		return uint16(linux.KeyInsert), []uint16{shift}
	case config.PasteCtrlV:
		return uint16(linux.KeyV), []uint16{ctrl}
	}
	if state.Terminal() {
		return uint16(linux.KeyV), []uint16{ctrl, shift}
	}
	return uint16(linux.KeyV), []uint16{ctrl}
}
