package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/config"
	"pinfe/internal/linux"
	"pinfe/internal/types"
	"pinfe/internal/util"
)

type fakeEmitter struct {
	calls  []string
	failOn string
}

func (f *fakeEmitter) note(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && call == f.failOn {
		return errors.New("device gone")
	}
	return nil
}

func (f *fakeEmitter) Close() error { return nil }
func (f *fakeEmitter) ForwardEvent(ev *util.InputEvent) error {
	return f.note(fmt.Sprintf("forward %d/%d", ev.Code, ev.Value))
}
func (f *fakeEmitter) SendKeyState(code uint16, pressed bool) error {
	return f.note(fmt.Sprintf("state %d %t", code, pressed))
}
func (f *fakeEmitter) TapKey(code uint16) error   { return f.note(fmt.Sprintf("tap %d", code)) }
func (f *fakeEmitter) SendBackspace(n int) error  { return f.note(fmt.Sprintf("backspace %d", n)) }
func (f *fakeEmitter) SendText(text string) error { return f.note("text " + text) }

func newTestEngine(opts Options, hooks Hooks) (*Engine, *fakeEmitter) {
	out := &fakeEmitter{}
	return NewEngine(-1, newMachine(opts), out, nil, hooks), out
}

func feed(t *testing.T, e *Engine, code int, value int32) {
	t.Helper()
	ev := util.KeyEvent(uint16(code), value)
	require.NoError(t, e.processEvent(&ev))
}

func feedTap(t *testing.T, e *Engine, code int) {
	t.Helper()
	feed(t, e, code, linux.KeyValuePress)
	feed(t, e, code, linux.KeyValueRelease)
}

func TestEngineReplacesPreviewOnCommit(t *testing.T) {
	opts := testOptions()
	opts.Preview = config.PreviewPinyin
	e, out := newTestEngine(opts, Hooks{})

	feedTap(t, e, linux.KeyN)
	feedTap(t, e, linux.KeyI)
	feedTap(t, e, linux.KeySpace)

	assert.Equal(t, []string{
		"text n",
		"backspace 1", "text ni",
		"backspace 2", "text 你好",
	}, out.calls)
}

func TestEngineForwardsInEnglish(t *testing.T) {
	opts := testOptions()
	opts.DefaultMode = types.ModeEnglish
	e, out := newTestEngine(opts, Hooks{})

	feedTap(t, e, linux.KeyA)
	syn := util.InputEvent{Type: linux.EvSyn, Code: linux.SynReport}
	require.NoError(t, e.processEvent(&syn))

	assert.Equal(t, []string{
		fmt.Sprintf("forward %d/1", linux.KeyA),
		fmt.Sprintf("forward %d/0", linux.KeyA),
		fmt.Sprintf("forward %d/0", linux.SynReport),
	}, out.calls)
}

func TestEngineReplaysShiftForPassThrough(t *testing.T) {
	e, out := newTestEngine(testOptions(), Hooks{})

	feed(t, e, linux.KeyLeftShift, linux.KeyValuePress)
	feedTap(t, e, linux.Key2)
	feed(t, e, linux.KeyLeftShift, linux.KeyValueRelease)

	assert.Equal(t, []string{
		fmt.Sprintf("state %d true", linux.KeyLeftShift),
		fmt.Sprintf("forward %d/1", linux.Key2),
		fmt.Sprintf("forward %d/0", linux.Key2),
		fmt.Sprintf("state %d false", linux.KeyLeftShift),
	}, out.calls)
	assert.Equal(t, types.ModeChinese, e.Machine().Mode())
}

func TestEngineSuspendsForwardedModifiersAroundText(t *testing.T) {
	e, out := newTestEngine(testOptions(), Hooks{})

	feed(t, e, linux.KeyLeftShift, linux.KeyValuePress)
	feedTap(t, e, linux.Key2)
	out.calls = nil

	// shift is still down and already forwarded; typed text must not be
	// shifted by it
	feedTap(t, e, linux.KeySlash)
	assert.Equal(t, []string{
		fmt.Sprintf("state %d false", linux.KeyLeftShift),
		"text ？",
		fmt.Sprintf("state %d true", linux.KeyLeftShift),
	}, out.calls)
}

func TestEngineHooks(t *testing.T) {
	var modes []types.InputMode
	var actions []types.Action
	e, _ := newTestEngine(testOptions(), Hooks{
		OnAction:     func(a types.Action, _ time.Duration) { actions = append(actions, a) },
		OnModeChange: func(m types.InputMode) { modes = append(modes, m) },
	})

	feedTap(t, e, linux.KeyLeftShift)
	assert.Equal(t, []types.InputMode{types.ModeEnglish}, modes)
	assert.Len(t, actions, 2)
}

func TestEngineStopsOnEmitterError(t *testing.T) {
	e, out := newTestEngine(testOptions(), Hooks{})
	out.failOn = "text ，"
	ev := util.KeyEvent(uint16(linux.KeyComma), linux.KeyValuePress)
	assert.Error(t, e.processEvent(&ev))
}

func TestEngineCommands(t *testing.T) {
	opts := testOptions()
	opts.Preview = config.PreviewPinyin
	var modes []types.InputMode
	e, out := newTestEngine(opts, Hooks{
		OnModeChange: func(m types.InputMode) { modes = append(modes, m) },
	})
	feedTap(t, e, linux.KeyN)
	out.calls = nil

	require.NoError(t, e.Submit(func(m *Machine) types.Action { return m.SetMode(types.ModeEnglish) }))
	require.NoError(t, e.runCommand(<-e.commands))
	assert.Equal(t, []string{"backspace 1", "text "}, out.calls)
	assert.Equal(t, []types.InputMode{types.ModeEnglish}, modes)

	for i := 0; i < cap(e.commands); i++ {
		require.NoError(t, e.Submit(func(m *Machine) types.Action { return types.Consume{} }))
	}
	assert.ErrorIs(t, e.Submit(func(m *Machine) types.Action { return types.Consume{} }), ErrBusy)
}

type pasteEmitter struct {
	fakeEmitter
	method string
}

func (p *pasteEmitter) CyclePaste() string {
	p.method = config.NextPaste(p.method)
	return p.method
}

func TestEngineHotkeys(t *testing.T) {
	type fired struct {
		hotkey Hotkey
		value  string
	}
	var got []fired
	hooks := Hooks{OnHotkey: func(h Hotkey, v string) { got = append(got, fired{h, v}) }}

	out := &pasteEmitter{method: config.PasteAuto}
	e := NewEngine(-1, NewMachine(newProfileResolver(), hotkeyOptions(t)), out, nil, hooks)
	press := func(code int) { feed(t, e, code, linux.KeyValuePress) }
	release := func(code int) { feed(t, e, code, linux.KeyValueRelease) }

	press(linux.KeyLeftCtrl)
	press(linux.KeyLeftAlt)
	feedTap(t, e, linux.KeyV)
	feedTap(t, e, linux.KeyP)
	feedTap(t, e, linux.KeyS)
	release(linux.KeyLeftAlt)
	release(linux.KeyLeftCtrl)

	require.NoError(t, e.Submit(func(m *Machine) types.Action { return m.NextProfile() }))
	require.NoError(t, e.runCommand(<-e.commands))

	assert.Equal(t, []fired{
		{HotkeyPaste, config.PasteCtrlV},
		{HotkeyPreview, config.PreviewPinyin},
		{HotkeyProfile, "japanese"},
		{HotkeyProfile, "default"},
	}, got)
	assert.Equal(t, config.PasteCtrlV, out.method)
}

func TestEnginePasteHotkeyWithoutClipboard(t *testing.T) {
	var calls int
	e, _ := newTestEngine(hotkeyOptions(t), Hooks{OnHotkey: func(Hotkey, string) { calls++ }})
	feed(t, e, linux.KeyLeftCtrl, linux.KeyValuePress)
	feed(t, e, linux.KeyLeftAlt, linux.KeyValuePress)
	feedTap(t, e, linux.KeyV)
	assert.Zero(t, calls)
}
