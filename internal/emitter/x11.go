package emitter

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
)

const (
	keysymReturn xproto.Keysym = 0xff0d
	keysymTab    xproto.Keysym = 0xff09
)

// X11Emitter types text through XTEST by remapping a spare keycode to each
// character's keysym. Raw events and backspaces still go through uinput.
type X11Emitter struct {
	*UinputEmitter
	inj *x11Injector
}

func OpenX11() (*X11Emitter, error) {
	inj, err := newX11Injector()
	if err != nil {
		return nil, fmt.Errorf("x11 injector: %w", err)
	}
	u, err := OpenUinput()
	if err != nil {
		inj.Close()
		return nil, err
	}
	return &X11Emitter{UinputEmitter: u, inj: inj}, nil
}

func (e *X11Emitter) SendText(text string) error {
	return e.inj.TypeText(text)
}

func (e *X11Emitter) Close() error {
	err := e.inj.Close()
	if uerr := e.UinputEmitter.Close(); err == nil {
		err = uerr
	}
	return err
}

// keySlot is the keycode borrowed for typing and the keysyms it had
// before, restored on close.
type keySlot struct {
	code  xproto.Keycode
	width int
	saved []xproto.Keysym
}

// pickSlot borrows the first keycode with no keysyms bound, or the highest
// keycode when every one is taken. keysyms is the server's mapping starting
// at first, width entries per keycode.
func pickSlot(keysyms []xproto.Keysym, first xproto.Keycode, width int) keySlot {
	count := len(keysyms) / width
	pick := count - 1
	for i := 0; i < count; i++ {
		if allZero(keysyms[i*width : (i+1)*width]) {
			pick = i
			break
		}
	}
	return keySlot{
		code:  first + xproto.Keycode(pick),
		width: width,
		saved: append([]xproto.Keysym(nil), keysyms[pick*width:(pick+1)*width]...),
	}
}

func allZero(syms []xproto.Keysym) bool {
	for _, sym := range syms {
		if sym != 0 {
			return false
		}
	}
	return true
}

// keysymsFor plans the keysyms that type text. Carriage returns are
// dropped; newline and tab map to Return and Tab.
func keysymsFor(text string) ([]xproto.Keysym, error) {
	syms := make([]xproto.Keysym, 0, utf8.RuneCountInString(text))
	for i, r := range text {
		switch {
		case r == utf8.RuneError && !strings.HasPrefix(text[i:], string(utf8.RuneError)):
			return nil, fmt.Errorf("invalid utf-8 at byte %d", i)
		case r == '\r':
		case r == '\n':
			syms = append(syms, keysymReturn)
		case r == '\t':
			syms = append(syms, keysymTab)
		default:
			syms = append(syms, runeKeysym(r))
		}
	}
	return syms, nil
}

// runeKeysym maps a character to its keysym: Latin-1 code points are their
// own keysyms, everything else uses the Unicode keysym range.
func runeKeysym(r rune) xproto.Keysym {
	if (r >= 0x20 && r <= 0x7e) || (r >= 0xa0 && r <= 0xff) {
		return xproto.Keysym(r)
	}
	return xproto.Keysym(0x01000000 | uint32(r))
}

type x11Injector struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	slot  keySlot
	bound xproto.Keysym
}

func newX11Injector() (*x11Injector, error) {
	display := os.Getenv("DISPLAY")
	if display == "" {
		return nil, errors.New("DISPLAY not set")
	}
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", display, err)
	}
	inj, err := setupInjector(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return inj, nil
}

func setupInjector(conn *xgb.Conn) (*x11Injector, error) {
	if err := xtest.Init(conn); err != nil {
		return nil, fmt.Errorf("xtest: %w", err)
	}
	setup := xproto.Setup(conn)
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - first + 1)
	reply, err := xproto.GetKeyboardMapping(conn, first, count).Reply()
	if err != nil {
		return nil, fmt.Errorf("read keyboard mapping: %w", err)
	}
	width := int(reply.KeysymsPerKeycode)
	if width == 0 || len(reply.Keysyms) < width {
		return nil, errors.New("server reported an empty keyboard mapping")
	}
	inj := &x11Injector{conn: conn, slot: pickSlot(reply.Keysyms, first, width)}
	if err := inj.bind(0); err != nil {
		return nil, err
	}
	return inj, nil
}

// bind maps the borrowed keycode to sym alone.
func (x *x11Injector) bind(sym xproto.Keysym) error {
	syms := make([]xproto.Keysym, x.slot.width)
	syms[0] = sym
	if err := x.remap(syms); err != nil {
		return fmt.Errorf("bind keysym %#x: %w", uint32(sym), err)
	}
	x.bound = sym
	return nil
}

func (x *x11Injector) remap(syms []xproto.Keysym) error {
	return xproto.ChangeKeyboardMappingChecked(x.conn, 1, x.slot.code, byte(x.slot.width), syms).Check()
}

func (x *x11Injector) tap() error {
	for _, kind := range []byte{xproto.KeyPress, xproto.KeyRelease} {
		if err := xtest.FakeInputChecked(x.conn, kind, byte(x.slot.code), 0, xproto.Window(0), 0, 0, 0).Check(); err != nil {
			return fmt.Errorf("fake key event: %w", err)
		}
	}
	return nil
}

// TypeText types text as one burst. Invalid UTF-8 types nothing.
func (x *x11Injector) TypeText(text string) error {
	syms, err := keysymsFor(text)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	defer x.conn.Sync()
	for _, sym := range syms {
		// repeated characters reuse the mapping
		if sym != x.bound {
			if err := x.bind(sym); err != nil {
				return err
			}
		}
		if err := x.tap(); err != nil {
			return err
		}
	}
	return nil
}

func (x *x11Injector) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	defer x.conn.Close()
	err := x.remap(x.slot.saved)
	x.conn.Sync()
	if err != nil {
		return fmt.Errorf("restore keyboard mapping: %w", err)
	}
	return nil
}
