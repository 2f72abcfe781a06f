package util

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pinfe/internal/linux"
)

func TestKeyEventPredicates(t *testing.T) {
	press := KeyEvent(uint16(linux.KeyA), linux.KeyValuePress)
	repeat := KeyEvent(uint16(linux.KeyA), linux.KeyValueRepeat)
	release := KeyEvent(uint16(linux.KeyA), linux.KeyValueRelease)

	assert.True(t, press.IsKey())
	assert.True(t, press.IsPress())
	assert.True(t, repeat.IsPress())
	assert.False(t, release.IsPress())
	assert.True(t, release.IsRelease())

	sync := InputEvent{Type: linux.EvSyn}
	assert.False(t, sync.IsKey())
}

func TestBytesCoversWholeEvent(t *testing.T) {
	ev := KeyEvent(30, 1)
	assert.Len(t, ev.Bytes(), InputEventSize())
}
