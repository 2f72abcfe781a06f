package util

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"pinfe/internal/linux"
)

// InputEvent mirrors struct input_event from linux/input.h.
type InputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

func InputEventSize() int {
	return int(unsafe.Sizeof(InputEvent{}))
}

func (ev *InputEvent) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ev)), InputEventSize())
}

func (ev *InputEvent) IsKey() bool {
	return ev.Type == linux.EvKey
}

// IsPress treats autorepeat as a press.
func (ev *InputEvent) IsPress() bool {
	return ev.Value == linux.KeyValuePress || ev.Value == linux.KeyValueRepeat
}

func (ev *InputEvent) IsRelease() bool {
	return ev.Value == linux.KeyValueRelease
}

func KeyEvent(code uint16, value int32) InputEvent {
	return InputEvent{Type: linux.EvKey, Code: code, Value: value}
}
