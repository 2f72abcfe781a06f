package emitter

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysymsFor(t *testing.T) {
	syms, err := keysymsFor("a你\r\n\té�")
	require.NoError(t, err)
	assert.Equal(t, []xproto.Keysym{
		'a',
		0x01000000 | 0x4f60,
		keysymReturn,
		keysymTab,
		0xe9,
		0x01000000 | 0xfffd,
	}, syms)

	_, err = keysymsFor("好\xff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte 3")
}

func TestPickSlot(t *testing.T) {
	keysyms := []xproto.Keysym{
		'a', 'A',
		0, 0,
		'b', 'B',
	}
	slot := pickSlot(keysyms, 8, 2)
	assert.Equal(t, xproto.Keycode(9), slot.code)
	assert.Equal(t, []xproto.Keysym{0, 0}, slot.saved)

	// no spare keycode: borrow the last one and remember its keysyms
	slot = pickSlot(keysyms[:2:2], 8, 2)
	assert.Equal(t, xproto.Keycode(8), slot.code)
	keysyms[0] = 'z'
	assert.Equal(t, []xproto.Keysym{'a', 'A'}, slot.saved)
}
