package types

import (
	"fmt"
	"strings"
)

type InputMode int

const (
	ModeEnglish InputMode = iota
	ModeChinese
)

func (m InputMode) String() string {
	switch m {
	case ModeChinese:
		return "chinese"
	case ModeEnglish:
		return "english"
	default:
		return "unknown"
	}
}

// Toggle returns the other mode.
func (m InputMode) Toggle() InputMode {
	if m == ModeChinese {
		return ModeEnglish
	}
	return ModeChinese
}

func ParseMode(value string) (InputMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "chinese", "pinyin", "zh", "cn":
		return ModeChinese, nil
	case "english", "latin", "en", "direct", "":
		return ModeEnglish, nil
	default:
		return ModeEnglish, fmt.Errorf("unknown input mode %q", value)
	}
}

func (m InputMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *InputMode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
