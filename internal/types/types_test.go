package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]InputMode{
		"chinese": ModeChinese, " Pinyin ": ModeChinese, "zh": ModeChinese,
		"english": ModeEnglish, "": ModeEnglish, "latin": ModeEnglish,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("hangul")
	assert.Error(t, err)
}

func TestModeText(t *testing.T) {
	out, err := json.Marshal(struct {
		Mode InputMode `json:"mode"`
	}{ModeChinese})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"chinese"}`, string(out))

	var m InputMode
	require.NoError(t, m.UnmarshalText([]byte("english")))
	assert.Equal(t, ModeEnglish, m)
	assert.Equal(t, ModeChinese, m.Toggle())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, `Emit("你")`, Emit{Text: "你"}.String())
	assert.Equal(t, `DeleteAndEmit(2, "ni", highlight=true)`, DeleteAndEmit{Delete: 2, Text: "ni", Highlight: true}.String())
	assert.Equal(t, "Consume", Consume{}.String())
}
