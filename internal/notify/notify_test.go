package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/types"
)

type fakeBus struct {
	mu    sync.Mutex
	calls [][]any
	fail  bool
	next  uint32
}

func (f *fakeBus) Call(method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]any{method}, args...))
	if f.fail {
		return &dbus.Call{Err: errors.New("no notification daemon")}
	}
	f.next++
	return &dbus.Call{Body: []any{f.next}}
}

func TestModeChangedPostsAndReplaces(t *testing.T) {
	bus := &fakeBus{}
	n := newNotifier(bus, nil)
	n.ModeChanged(types.ModeEnglish)
	n.ModeChanged(types.ModeChinese)
	require.NoError(t, n.Close())

	require.Len(t, bus.calls, 2)
	first, second := bus.calls[0], bus.calls[1]
	assert.Equal(t, method, first[0])
	assert.Equal(t, appName, first[1])
	assert.Equal(t, uint32(0), first[2])
	assert.Equal(t, "English", first[4])
	// the second notification replaces the first
	assert.Equal(t, uint32(1), second[2])
	assert.Equal(t, "中文 (Pinyin)", second[4])
}

func TestFailuresAreNotFatal(t *testing.T) {
	bus := &fakeBus{fail: true}
	n := newNotifier(bus, nil)
	n.ModeChanged(types.ModeEnglish)
	require.NoError(t, n.Close())
	assert.Len(t, bus.calls, 1)
	assert.Equal(t, uint32(0), n.replaceID)
}

func TestNotice(t *testing.T) {
	bus := &fakeBus{}
	n := newNotifier(bus, nil)
	n.Notice("Dictionary: japanese", "Profile switched")
	require.NoError(t, n.Close())
	require.Len(t, bus.calls, 1)
	assert.Equal(t, "Dictionary: japanese", bus.calls[0][4])
	assert.Equal(t, "Profile switched", bus.calls[0][5])
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	n.ModeChanged(types.ModeChinese)
	n.Notice("x", "y")
	assert.NoError(t, n.Close())
}
