package config

import (
	"fmt"
	"strings"

	"pinfe/internal/linux"
)

// ToggleChord is a key that switches modes when pressed while at least one
// key from every modifier group is held.
type ToggleChord struct {
	Key            uint16
	ModifierGroups [][]uint16
}

var modifierGroups = map[string][]uint16{
	"CTRL":    {uint16(linux.KeyLeftCtrl), uint16(linux.KeyRightCtrl)},
	"CONTROL": {uint16(linux.KeyLeftCtrl), uint16(linux.KeyRightCtrl)},
	"SHIFT":   {uint16(linux.KeyLeftShift), uint16(linux.KeyRightShift)},
	"ALT":     {uint16(linux.KeyLeftAlt), uint16(linux.KeyRightAlt)},
	"META":    {uint16(linux.KeyLeftMeta), uint16(linux.KeyRightMeta)},
	"SUPER":   {uint16(linux.KeyLeftMeta), uint16(linux.KeyRightMeta)},
}

// ParseToggleChords parses entries such as "ctrl+space", "alt_r" or
// "capslock".
func ParseToggleChords(specs []string) ([]ToggleChord, error) {
	chords := make([]ToggleChord, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		chord, err := ParseToggleChord(spec)
		if err != nil {
			return nil, err
		}
		chords = append(chords, chord)
	}
	return chords, nil
}

func ParseToggleChord(spec string) (ToggleChord, error) {
	tokens := strings.Split(spec, "+")
	keyName := strings.TrimSpace(tokens[len(tokens)-1])
	if keyName == "" {
		return ToggleChord{}, ConfigError{msg: fmt.Sprintf("invalid toggle chord '%s'", spec)}
	}
	code, err := ParseKeyName(keyName)
	if err != nil {
		return ToggleChord{}, err
	}
	chord := ToggleChord{Key: code}
	for _, token := range tokens[:len(tokens)-1] {
		name := strings.ToUpper(strings.TrimSpace(token))
		group, ok := modifierGroups[name]
		if !ok {
			return ToggleChord{}, ConfigError{msg: fmt.Sprintf("unknown modifier '%s' in '%s'", token, spec)}
		}
		chord.ModifierGroups = append(chord.ModifierGroups, group)
	}
	return chord, nil
}

func ParseKeyName(name string) (uint16, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if normalized == "" {
		return 0, ConfigError{msg: "empty key name"}
	}

	aliases := map[string]string{
		"ALT_R":   "KEY_RIGHTALT",
		"ALT_L":   "KEY_LEFTALT",
		"CTRL_R":  "KEY_RIGHTCTRL",
		"CTRL_L":  "KEY_LEFTCTRL",
		"SHIFT_R": "KEY_RIGHTSHIFT",
		"SHIFT_L": "KEY_LEFTSHIFT",
		"META_R":  "KEY_RIGHTMETA",
		"META_L":  "KEY_LEFTMETA",
		"CAPS":    "KEY_CAPSLOCK",
		"ESCAPE":  "KEY_ESC",
		"RETURN":  "KEY_ENTER",
	}
	if alias, ok := aliases[normalized]; ok {
		normalized = alias
	}

	if !strings.HasPrefix(normalized, "KEY_") {
		normalized = "KEY_" + normalized
	}

	code, ok := keycodeTable[normalized]
	if !ok {
		return 0, ConfigError{msg: fmt.Sprintf("unknown key code '%s'", name)}
	}
	return code, nil
}

var keycodeTable = buildKeycodeTable()

func buildKeycodeTable() map[string]uint16 {
	table := map[string]uint16{}
	letters := "QWERTYUIOPASDFGHJKLZXCVBNM"
	codes := []int{
		linux.KeyQ, linux.KeyW, linux.KeyE, linux.KeyR, linux.KeyT, linux.KeyY, linux.KeyU,
		linux.KeyI, linux.KeyO, linux.KeyP, linux.KeyA, linux.KeyS, linux.KeyD, linux.KeyF,
		linux.KeyG, linux.KeyH, linux.KeyJ, linux.KeyK, linux.KeyL, linux.KeyZ, linux.KeyX,
		linux.KeyC, linux.KeyV, linux.KeyB, linux.KeyN, linux.KeyM,
	}
	for i := range letters {
		table[fmt.Sprintf("KEY_%c", letters[i])] = uint16(codes[i])
	}
	table["KEY_0"] = uint16(linux.Key0)
	for ch := '1'; ch <= '9'; ch++ {
		table[fmt.Sprintf("KEY_%c", ch)] = uint16(linux.Key1 + int(ch-'1'))
	}

	additional := map[string]int{
		"KEY_MINUS":      linux.KeyMinus,
		"KEY_EQUAL":      linux.KeyEqual,
		"KEY_LEFTBRACE":  linux.KeyLeftBrace,
		"KEY_RIGHTBRACE": linux.KeyRightBrace,
		"KEY_BACKSLASH":  linux.KeyBackslash,
		"KEY_SEMICOLON":  linux.KeySemicolon,
		"KEY_APOSTROPHE": linux.KeyApostrophe,
		"KEY_GRAVE":      linux.KeyGrave,
		"KEY_COMMA":      linux.KeyComma,
		"KEY_DOT":        linux.KeyDot,
		"KEY_SLASH":      linux.KeySlash,
		"KEY_SPACE":      linux.KeySpace,
		"KEY_TAB":        linux.KeyTab,
		"KEY_ENTER":      linux.KeyEnter,
		"KEY_ESC":        linux.KeyEsc,
		"KEY_BACKSPACE":  linux.KeyBackspace,
		"KEY_LEFTSHIFT":  linux.KeyLeftShift,
		"KEY_RIGHTSHIFT": linux.KeyRightShift,
		"KEY_LEFTCTRL":   linux.KeyLeftCtrl,
		"KEY_RIGHTCTRL":  linux.KeyRightCtrl,
		"KEY_LEFTALT":    linux.KeyLeftAlt,
		"KEY_RIGHTALT":   linux.KeyRightAlt,
		"KEY_LEFTMETA":   linux.KeyLeftMeta,
		"KEY_RIGHTMETA":  linux.KeyRightMeta,
		"KEY_CAPSLOCK":   linux.KeyCapsLock,
		"KEY_INSERT":     linux.KeyInsert,
		"KEY_COMPOSE":    linux.KeyCompose,
		"KEY_F1":         linux.KeyF1,
		"KEY_F2":         linux.KeyF2,
		"KEY_F3":         linux.KeyF3,
		"KEY_F4":         linux.KeyF4,
		"KEY_F5":         linux.KeyF5,
		"KEY_F6":         linux.KeyF6,
		"KEY_F7":         linux.KeyF7,
		"KEY_F8":         linux.KeyF8,
		"KEY_F9":         linux.KeyF9,
		"KEY_F10":        linux.KeyF10,
		"KEY_F11":        linux.KeyF11,
		"KEY_F12":        linux.KeyF12,
	}
	for name, code := range additional {
		table[name] = uint16(code)
	}
	return table
}
