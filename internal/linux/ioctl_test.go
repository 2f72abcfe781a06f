package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestNumbers(t *testing.T) {
	// values from linux/input.h and linux/uinput.h on x86_64
	assert.Equal(t, uintptr(0x40044590), EVIOCGRAB)
	assert.Equal(t, uintptr(0x80ff4506), EVIOCGNAME(255))
	assert.Equal(t, uintptr(0x80604521), EVIOCGBIT(EvKey, 0x60))
	assert.Equal(t, uintptr(0x5501), UIDevCreate)
	assert.Equal(t, uintptr(0x40045564), UISetEvbit)
}

func TestIsModifier(t *testing.T) {
	assert.True(t, IsModifier(KeyLeftShift))
	assert.False(t, IsModifier(KeyA))
}
