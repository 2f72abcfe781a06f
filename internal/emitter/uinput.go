package emitter

import (
	"errors"
	"fmt"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/sys/unix"

	"pinfe/internal/keymap"
	"pinfe/internal/linux"
	"pinfe/internal/util"
)

// DeviceName is the name of the virtual keyboard pinfe creates.
const DeviceName = "pinfe-virtual"

const absCnt = 0x3f + 1

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [linux.UinputMaxNameSize]byte
	ID           inputID
	FFEffectsMax int32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

// UinputEmitter injects through a uinput virtual keyboard. ASCII is typed
// with the matching keys; everything else goes through Ctrl+Shift+U hex
// entry.
type UinputEmitter struct {
	fd          int
	closed      bool
	hexKeycodes [16]int
}

func OpenUinput() (*UinputEmitter, error) {
	e := &UinputEmitter{fd: -1}
	for i := range e.hexKeycodes {
		e.hexKeycodes[i] = -1
	}
	for ch, code := range keymap.UnicodeHexKeycodes() {
		if idx := hexIndex(ch); idx >= 0 {
			e.hexKeycodes[idx] = int(code)
		}
	}

	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}
	if err := configureUinput(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	e.fd = fd
	return e, nil
}

func configureUinput(fd int) error {
	if err := linux.IoctlSetInt(fd, linux.UISetEvbit, linux.EvSyn); err != nil {
		return fmt.Errorf("UI_SET_EVBIT(EV_SYN): %w", err)
	}
	if err := linux.IoctlSetInt(fd, linux.UISetEvbit, linux.EvKey); err != nil {
		return fmt.Errorf("UI_SET_EVBIT(EV_KEY): %w", err)
	}
	for code := 0; code <= linux.KeyMax; code++ {
		_ = linux.IoctlSetInt(fd, linux.UISetKeybit, code)
	}

	var setup uinputUserDev
	copy(setup.Name[:], DeviceName)
	setup.ID.Bustype = linux.BusUSB
	setup.ID.Vendor = 0x1
	setup.ID.Product = 0x1
	setup.ID.Version = 1

	buf := linux.UnsafeSlice((*byte)(unsafe.Pointer(&setup)), int(unsafe.Sizeof(setup)))
	if _, err := unix.Write(fd, buf); err != nil {
		return fmt.Errorf("write uinput setup: %w", err)
	}
	if err := linux.IoctlSetInt(fd, linux.UIDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func (e *UinputEmitter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.fd >= 0 {
		_ = linux.IoctlSetInt(e.fd, linux.UIDevDestroy, 0)
		unix.Close(e.fd)
		e.fd = -1
	}
	return nil
}

func (e *UinputEmitter) write(ev util.InputEvent) error {
	if e.fd < 0 {
		return errors.New("uinput device closed")
	}
	for {
		_, err := unix.Write(e.fd, ev.Bytes())
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

func (e *UinputEmitter) sync() error {
	return e.write(util.InputEvent{Type: linux.EvSyn, Code: linux.SynReport})
}

func (e *UinputEmitter) ForwardEvent(ev *util.InputEvent) error {
	if ev == nil {
		return nil
	}
	if err := e.write(*ev); err != nil {
		return err
	}
	return e.sync()
}

func (e *UinputEmitter) SendKeyState(code uint16, pressed bool) error {
	value := int32(linux.KeyValueRelease)
	if pressed {
		value = linux.KeyValuePress
	}
	if err := e.write(util.KeyEvent(code, value)); err != nil {
		return err
	}
	return e.sync()
}

func (e *UinputEmitter) TapKey(code uint16) error {
	if err := e.SendKeyState(code, true); err != nil {
		return err
	}
	return e.SendKeyState(code, false)
}

// Chord holds modifiers down around a tap of key.
func (e *UinputEmitter) Chord(key uint16, modifiers ...uint16) error {
	for _, m := range modifiers {
		if err := e.SendKeyState(m, true); err != nil {
			return err
		}
	}
	err := e.TapKey(key)
	for i := len(modifiers) - 1; i >= 0; i-- {
		if rerr := e.SendKeyState(modifiers[i], false); err == nil {
			err = rerr
		}
	}
	return err
}

func (e *UinputEmitter) SendBackspace(count int) error {
	for i := 0; i < count; i++ {
		if err := e.TapKey(uint16(linux.KeyBackspace)); err != nil {
			return err
		}
	}
	return nil
}

func (e *UinputEmitter) SendText(text string) error {
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		if r == utf8.RuneError && size == 1 {
			return fmt.Errorf("invalid utf-8 sequence")
		}
		if err := e.typeRune(r); err != nil {
			return err
		}
		text = text[size:]
	}
	return nil
}

func (e *UinputEmitter) typeRune(r rune) error {
	if r < utf8.RuneSelf {
		if code, shift, ok := keymap.CodeFor(byte(r)); ok {
			if shift {
				return e.Chord(code, uint16(linux.KeyLeftShift))
			}
			return e.TapKey(code)
		}
	}
	return e.typeUnicode(r)
}

func (e *UinputEmitter) typeUnicode(r rune) error {
	ctrl, shift := uint16(linux.KeyLeftCtrl), uint16(linux.KeyLeftShift)
	if err := e.Chord(uint16(linux.KeyU), ctrl, shift); err != nil {
		return err
	}
	for _, ch := range fmt.Sprintf("%x", r) {
		key := e.hexKeycodes[hexIndex(ch)]
		if key < 0 {
			continue
		}
		if err := e.TapKey(uint16(key)); err != nil {
			return err
		}
	}
	return e.Chord(uint16(linux.KeyEnter), ctrl, shift)
}

func hexIndex(ch rune) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return 10 + int(ch-'a')
	case ch >= 'A' && ch <= 'F':
		return 10 + int(ch-'A')
	default:
		return -1
	}
}
