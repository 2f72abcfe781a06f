// Package keymap turns evdev key codes into the symbols the pinyin engine
// understands, assuming a US keyboard.
package keymap

import "pinfe/internal/linux"

type Kind int

const (
	KindNone Kind = iota
	KindLetter
	KindDigit
	KindPunct
	KindSeparator
	KindSpace
	KindEnter
	KindBackspace
	KindEscape
	KindTab
)

func (k Kind) String() string {
	switch k {
	case KindLetter:
		return "letter"
	case KindDigit:
		return "digit"
	case KindPunct:
		return "punct"
	case KindSeparator:
		return "separator"
	case KindSpace:
		return "space"
	case KindEnter:
		return "enter"
	case KindBackspace:
		return "backspace"
	case KindEscape:
		return "escape"
	case KindTab:
		return "tab"
	default:
		return "none"
	}
}

// Symbol is what a key produces with the current shift state. Char is the
// ASCII character for letters, digits, punctuation and the separator.
type Symbol struct {
	Kind Kind
	Char byte
}

type entry struct {
	normal  Symbol
	shifted Symbol
}

var table = build()

func add(m map[uint16]entry, key int, normal, shifted Symbol) {
	m[uint16(key)] = entry{normal: normal, shifted: shifted}
}

func build() map[uint16]entry {
	m := make(map[uint16]entry, 64)

	letters := []struct {
		key int
		ch  byte
	}{
		{linux.KeyA, 'a'}, {linux.KeyB, 'b'}, {linux.KeyC, 'c'}, {linux.KeyD, 'd'},
		{linux.KeyE, 'e'}, {linux.KeyF, 'f'}, {linux.KeyG, 'g'}, {linux.KeyH, 'h'},
		{linux.KeyI, 'i'}, {linux.KeyJ, 'j'}, {linux.KeyK, 'k'}, {linux.KeyL, 'l'},
		{linux.KeyM, 'm'}, {linux.KeyN, 'n'}, {linux.KeyO, 'o'}, {linux.KeyP, 'p'},
		{linux.KeyQ, 'q'}, {linux.KeyR, 'r'}, {linux.KeyS, 's'}, {linux.KeyT, 't'},
		{linux.KeyU, 'u'}, {linux.KeyV, 'v'}, {linux.KeyW, 'w'}, {linux.KeyX, 'x'},
		{linux.KeyY, 'y'}, {linux.KeyZ, 'z'},
	}
	for _, l := range letters {
		add(m, l.key, Symbol{KindLetter, l.ch}, Symbol{KindLetter, l.ch - 'a' + 'A'})
	}

	digits := []struct {
		key   int
		ch    byte
		shift byte
	}{
		{linux.Key1, '1', '!'}, {linux.Key2, '2', '@'}, {linux.Key3, '3', '#'},
		{linux.Key4, '4', '$'}, {linux.Key5, '5', '%'}, {linux.Key6, '6', '^'},
		{linux.Key7, '7', '&'}, {linux.Key8, '8', '*'}, {linux.Key9, '9', '('},
		{linux.Key0, '0', ')'},
	}
	for _, d := range digits {
		add(m, d.key, Symbol{KindDigit, d.ch}, Symbol{KindPunct, d.shift})
	}

	punct := map[int][2]byte{
		linux.KeyMinus:      {'-', '_'},
		linux.KeyEqual:      {'=', '+'},
		linux.KeyLeftBrace:  {'[', '{'},
		linux.KeyRightBrace: {']', '}'},
		linux.KeyBackslash:  {'\\', '|'},
		linux.KeySemicolon:  {';', ':'},
		linux.KeyGrave:      {'`', '~'},
		linux.KeyComma:      {',', '<'},
		linux.KeyDot:        {'.', '>'},
		linux.KeySlash:      {'/', '?'},
	}
	for key, pair := range punct {
		add(m, key, Symbol{KindPunct, pair[0]}, Symbol{KindPunct, pair[1]})
	}
	add(m, linux.KeyApostrophe, Symbol{KindSeparator, '\''}, Symbol{KindPunct, '"'})

	add(m, linux.KeySpace, Symbol{KindSpace, ' '}, Symbol{KindSpace, ' '})
	add(m, linux.KeyEnter, Symbol{Kind: KindEnter}, Symbol{Kind: KindEnter})
	add(m, linux.KeyBackspace, Symbol{Kind: KindBackspace}, Symbol{Kind: KindBackspace})
	add(m, linux.KeyEsc, Symbol{Kind: KindEscape}, Symbol{Kind: KindEscape})
	add(m, linux.KeyTab, Symbol{Kind: KindTab}, Symbol{Kind: KindTab})
	return m
}

// Translate returns the symbol for code. Unknown keys are KindNone.
func Translate(code uint16, shift bool) Symbol {
	e, ok := table[code]
	if !ok {
		return Symbol{}
	}
	if shift {
		return e.shifted
	}
	return e.normal
}

// CodeFor finds the key (and shift state) that types ch.
func CodeFor(ch byte) (uint16, bool, bool) {
	for code, e := range table {
		if e.normal.Char == ch && e.normal.Kind != KindNone && e.normal.Kind != KindSpace {
			return code, false, true
		}
		if e.shifted.Char == ch && e.shifted.Kind != KindNone && e.shifted.Kind != KindSpace {
			return code, true, true
		}
	}
	if ch == ' ' {
		return uint16(linux.KeySpace), false, true
	}
	return 0, false, false
}

// UnicodeHexKeycodes maps hex digits to the keys that type them, for
// Ctrl+Shift+U code point entry.
func UnicodeHexKeycodes() map[rune]uint16 {
	out := make(map[rune]uint16, 16)
	for _, r := range "0123456789abcdef" {
		code, _, ok := CodeFor(byte(r))
		if ok {
			out[r] = code
		}
	}
	return out
}
