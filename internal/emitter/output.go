package emitter

import (
	"fmt"

	"pinfe/internal/types"
	"pinfe/internal/util"
)

// Output represents the operations required by the engine to emit text,
// erase previews, and forward raw input events. It is satisfied by
// UinputEmitter, X11Emitter and ClipboardEmitter and enables tests to
// substitute lightweight fakes.
type Output interface {
	Close() error
	ForwardEvent(*util.InputEvent) error
	SendKeyState(code uint16, pressed bool) error
	TapKey(code uint16) error
	SendBackspace(count int) error
	SendText(text string) error
}

// Apply performs action on out. ev is the key event the action answers
// and is only used for PassThrough.
func Apply(out Output, action types.Action, ev *util.InputEvent) error {
	switch a := action.(type) {
	case types.Emit:
		return out.SendText(a.Text)
	case types.DeleteAndEmit:
		if a.Delete > 0 {
			if err := out.SendBackspace(a.Delete); err != nil {
				return fmt.Errorf("erase %d: %w", a.Delete, err)
			}
		}
		return out.SendText(a.Text)
	case types.PassThrough:
		if ev == nil {
			return nil
		}
		return out.ForwardEvent(ev)
	case types.Consume:
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unknown action %T", action)
	}
}

var (
	_ Output = (*UinputEmitter)(nil)
	_ Output = (*X11Emitter)(nil)
	_ Output = (*ClipboardEmitter)(nil)
)
