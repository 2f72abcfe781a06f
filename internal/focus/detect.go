package focus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// Detector classifies the focused X11 window. Without a display it
// reports a console session or KindUnknown.
type Detector struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
	last  State
}

var atomNames = []string{"_NET_ACTIVE_WINDOW", "_NET_WM_PID", "WM_CLASS", "_NET_WM_NAME", "WM_NAME"}

func NewDetector() (*Detector, error) {
	d := &Detector{}
	display := os.Getenv("DISPLAY")
	if display == "" {
		return d, nil
	}
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect x server: %w", err)
	}
	d.conn = conn
	d.root = xproto.Setup(conn).DefaultScreen(conn).Root
	d.atoms = make(map[string]xproto.Atom, len(atomNames))
	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("intern %s: %w", name, err)
		}
		d.atoms[name] = reply.Atom
	}
	return d, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	return nil
}

// Poll classifies the window focused right now. When the X server cannot
// answer the previous result is returned.
func (d *Detector) Poll() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		if consoleSession() {
			return State{Kind: KindConsole, Name: "tty"}
		}
		return d.last
	}
	st, err := d.pollX11()
	if err != nil {
		return d.last
	}
	d.last = st
	return st
}

func (d *Detector) pollX11() (State, error) {
	value := d.property(d.root, "_NET_ACTIVE_WINDOW", xproto.AtomWindow, 1)
	if len(value) < 4 {
		return State{}, errors.New("no active window")
	}
	win := xproto.Window(binary.LittleEndian.Uint32(value))
	if win == 0 {
		return State{}, errors.New("no active window")
	}

	for _, class := range strings.Split(string(d.property(win, "WM_CLASS", xproto.AtomString, 64)), "\x00") {
		if IsTerminalName(class) {
			return State{Kind: KindTerminal, Name: strings.ToLower(class)}, nil
		}
	}
	if pid := d.property(win, "_NET_WM_PID", xproto.AtomCardinal, 1); len(pid) >= 4 {
		if name := processName(int(binary.LittleEndian.Uint32(pid))); IsTerminalName(name) {
			return State{Kind: KindTerminal, Name: name}, nil
		}
	}
	for _, atom := range []string{"_NET_WM_NAME", "WM_NAME"} {
		if title := string(d.property(win, atom, xproto.AtomAny, 64)); IsTerminalTitle(title) {
			return State{Kind: KindTerminal, Name: strings.ToLower(title)}, nil
		}
	}
	return State{Kind: KindGUI}, nil
}

// property reads up to length 32-bit units of a window property.
func (d *Detector) property(win xproto.Window, name string, typ xproto.Atom, length uint32) []byte {
	atom := d.atoms[name]
	if atom == 0 {
		return nil
	}
	reply, err := xproto.GetProperty(d.conn, false, win, atom, typ, 0, length).Reply()
	if err != nil || reply == nil {
		return nil
	}
	return reply.Value
}
