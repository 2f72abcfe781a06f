package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"pinfe/internal/emitter"
	"pinfe/internal/linux"
	"pinfe/internal/types"
	"pinfe/internal/util"
)

// ErrBusy is returned by Submit when the command queue is full.
var ErrBusy = errors.New("engine busy")

// Hooks observe the engine. They run on the engine goroutine and must not
// block.
type Hooks struct {
	OnAction     func(action types.Action, took time.Duration)
	OnModeChange func(mode types.InputMode)
	// OnHotkey receives the new profile, preview style or paste method.
	OnHotkey func(h Hotkey, value string)
}

// Command runs on the engine goroutine between key events.
type Command func(*Machine) types.Action

// Engine reads a grabbed keyboard, feeds the Machine and applies its
// actions to the output. Modifiers the Machine swallows are replayed to
// the output only when a forwarded key needs them.
type Engine struct {
	deviceFD           int
	machine            *Machine
	emitter            emitter.Output
	logger             *slog.Logger
	hooks              Hooks
	commands           chan Command
	modifierState      map[uint16]bool
	forwardedModifiers map[uint16]bool
}

var modifierCodes = append(append([]uint16{}, shiftKeys...), ctrlAltMeta...)

func NewEngine(deviceFD int, machine *Machine, out emitter.Output, logger *slog.Logger, hooks Hooks) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	eng := &Engine{
		deviceFD:           deviceFD,
		machine:            machine,
		emitter:            out,
		logger:             logger,
		hooks:              hooks,
		commands:           make(chan Command, 16),
		modifierState:      make(map[uint16]bool, len(modifierCodes)),
		forwardedModifiers: make(map[uint16]bool, len(modifierCodes)),
	}
	for _, code := range modifierCodes {
		eng.modifierState[code] = false
		eng.forwardedModifiers[code] = false
	}
	return eng
}

func (e *Engine) Machine() *Machine { return e.machine }

// Status is safe to call from any goroutine.
func (e *Engine) Status() Status { return e.machine.Status() }

// Submit queues cmd for the engine goroutine without blocking.
func (e *Engine) Submit(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	default:
		return ErrBusy
	}
}

// Run grabs the device and processes events until ctx is done or the
// device fails.
func (e *Engine) Run(ctx context.Context) error {
	if err := linux.Grab(e.deviceFD, true); err != nil {
		return fmt.Errorf("grab device: %w", err)
	}
	defer linux.Grab(e.deviceFD, false)
	defer e.emitter.Close()

	events := make(chan util.InputEvent, 64)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		readErr <- e.readEvents(events, done)
	}()

	e.logger.Info("engine started", "mode", e.machine.Mode())
	for {
		select {
		case <-ctx.Done():
			e.apply(e.machine.Reset(), nil)
			return nil
		case err := <-readErr:
			return err
		case ev := <-events:
			if err := e.processEvent(&ev); err != nil {
				return err
			}
		case cmd := <-e.commands:
			if err := e.runCommand(cmd); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) readEvents(out chan<- util.InputEvent, done <-chan struct{}) error {
	size := util.InputEventSize()
	for {
		var ev util.InputEvent
		n, err := unix.Read(e.deviceFD, ev.Bytes())
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return fmt.Errorf("read input event: %w", err)
		}
		if n == 0 {
			return nil
		}
		if n != size {
			continue
		}
		select {
		case out <- ev:
		case <-done:
			return nil
		}
	}
}

func (e *Engine) runCommand(cmd Command) error {
	before := e.machine.Mode()
	err := e.apply(cmd(e.machine), nil)
	e.noteMode(before)
	e.noteHotkey()
	return err
}

func (e *Engine) processEvent(event *util.InputEvent) error {
	if event.Type != linux.EvKey {
		if e.machine.Mode() == types.ModeEnglish {
			return e.emitter.ForwardEvent(event)
		}
		return nil
	}

	code := event.Code
	isModifier := linux.IsModifier(code)
	if isModifier {
		if event.IsPress() {
			e.modifierState[code] = true
		} else if event.IsRelease() {
			e.modifierState[code] = false
		}
	}

	before := e.machine.Mode()
	started := time.Now()
	action := e.machine.HandleKey(KeyEvent{Code: code, Value: event.Value})
	took := time.Since(started)

	var err error
	if isModifier {
		err = e.applyModifier(action, event)
	} else {
		err = e.apply(action, event)
	}
	if e.hooks.OnAction != nil {
		e.hooks.OnAction(action, took)
	}
	e.noteMode(before)
	e.noteHotkey()
	return err
}

func (e *Engine) noteHotkey() {
	h := e.machine.takeHotkey()
	var value string
	switch h {
	case HotkeyNone:
		return
	case HotkeyProfile:
		value = e.machine.Profile()
	case HotkeyPreview:
		value = e.machine.Preview()
	case HotkeyPaste:
		cycler, ok := e.emitter.(emitter.PasteCycler)
		if !ok {
			e.logger.Info("paste method only applies to clipboard output")
			return
		}
		value = cycler.CyclePaste()
	}
	e.logger.Info("hotkey", "hotkey", h.String(), "value", value)
	if e.hooks.OnHotkey != nil {
		e.hooks.OnHotkey(h, value)
	}
}

func (e *Engine) noteMode(before types.InputMode) {
	after := e.machine.Mode()
	if after == before {
		return
	}
	e.logger.Info("mode changed", "mode", after)
	if e.hooks.OnModeChange != nil {
		e.hooks.OnModeChange(after)
	}
}

func (e *Engine) applyModifier(action types.Action, event *util.InputEvent) error {
	code := event.Code
	switch action.(type) {
	case types.PassThrough:
		if err := e.emitter.ForwardEvent(event); err != nil {
			return err
		}
		e.forwardedModifiers[code] = event.IsPress()
		return nil
	case types.Consume:
		if event.IsRelease() && e.forwardedModifiers[code] {
			return e.setForwardedModifier(code, false)
		}
		return nil
	default:
		// a shift tap that committed text
		if event.IsRelease() && e.forwardedModifiers[code] {
			if err := e.setForwardedModifier(code, false); err != nil {
				return err
			}
		}
		return e.apply(action, nil)
	}
}

func (e *Engine) apply(action types.Action, event *util.InputEvent) error {
	switch action.(type) {
	case types.Consume:
		return nil
	case types.PassThrough:
		if event != nil && event.IsPress() {
			if err := e.ensureShiftForwarded(); err != nil {
				return err
			}
		}
		return emitter.Apply(e.emitter, action, event)
	}
	suspended, err := e.suspendForwardedModifiers()
	if err != nil {
		return err
	}
	err = emitter.Apply(e.emitter, action, event)
	e.restoreForwardedModifiers(suspended)
	return err
}

func (e *Engine) ensureShiftForwarded() error {
	for _, code := range shiftKeys {
		if e.modifierState[code] && !e.forwardedModifiers[code] {
			if err := e.setForwardedModifier(code, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) setForwardedModifier(code uint16, pressed bool) error {
	if current := e.forwardedModifiers[code]; current == pressed {
		return nil
	}
	if err := e.emitter.SendKeyState(code, pressed); err != nil {
		return err
	}
	e.forwardedModifiers[code] = pressed
	return nil
}

func (e *Engine) suspendForwardedModifiers() ([]uint16, error) {
	var suspended []uint16
	for code, forwarded := range e.forwardedModifiers {
		if forwarded {
			if err := e.setForwardedModifier(code, false); err != nil {
				return suspended, err
			}
			suspended = append(suspended, code)
		}
	}
	return suspended, nil
}

func (e *Engine) restoreForwardedModifiers(codes []uint16) {
	for _, code := range codes {
		if e.modifierState[code] {
			_ = e.setForwardedModifier(code, true)
		}
	}
}
