package engine

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"pinfe/internal/candidate"
	"pinfe/internal/config"
	"pinfe/internal/keymap"
	"pinfe/internal/linux"
	"pinfe/internal/pinyin"
	"pinfe/internal/types"
)

// MaxBuffer caps the composing buffer; extra letters are swallowed.
const MaxBuffer = 64

const historySize = 8

// Resolver supplies the dictionary and fuzzy rules current at the time of
// each lookup. It is satisfied by *shared.Shared.
type Resolver interface {
	Index() candidate.Index
	FuzzyRules() pinyin.Rules
}

// ProfileSwitcher is implemented by resolvers holding several dictionary
// profiles.
type ProfileSwitcher interface {
	Profile() string
	NextProfile() string
	SetProfile(name string) error
}

// Hotkey names a chord-bound command other than the mode toggle.
type Hotkey int

const (
	HotkeyNone Hotkey = iota
	HotkeyProfile
	HotkeyPreview
	HotkeyPaste
)

func (h Hotkey) String() string {
	switch h {
	case HotkeyProfile:
		return "profile"
	case HotkeyPreview:
		return "preview"
	case HotkeyPaste:
		return "paste"
	}
	return "none"
}

type Options struct {
	DefaultMode      types.InputMode
	Preview          string
	AutoCommitUnique bool
	PageSize         int
	PrefixLimit      int
	Punctuation      keymap.Punctuation
	ToggleChords     []config.ToggleChord
	ProfileChords    []config.ToggleChord
	PreviewChords    []config.ToggleChord
	PasteChords      []config.ToggleChord
	Logger           *slog.Logger
}

// OptionsFromConfig builds machine options from a validated config.
func OptionsFromConfig(cfg config.Config, punct keymap.Punctuation, logger *slog.Logger) Options {
	chords, _ := config.ParseToggleChords(cfg.Input.ToggleKeys)
	profileChords, _ := config.ParseToggleChords(cfg.Input.ProfileKeys)
	previewChords, _ := config.ParseToggleChords(cfg.Input.PreviewKeys)
	pasteChords, _ := config.ParseToggleChords(cfg.Input.PasteKeys)
	if punct == nil {
		punct = keymap.DefaultPunctuation()
	}
	return Options{
		DefaultMode:      cfg.Mode(),
		Preview:          cfg.Input.Preview,
		AutoCommitUnique: cfg.Input.AutoCommitUnique,
		PageSize:         cfg.Input.PageSize,
		PrefixLimit:      cfg.Input.PrefixLimit,
		Punctuation:      punct,
		ToggleChords:     chords,
		ProfileChords:    profileChords,
		PreviewChords:    previewChords,
		PasteChords:      pasteChords,
		Logger:           logger,
	}
}

// KeyEvent is one evdev key event: Value 1 press, 2 repeat, 0 release.
type KeyEvent struct {
	Code  uint16
	Value int32
}

func (ev KeyEvent) press() bool   { return ev.Value == linux.KeyValuePress || ev.Value == linux.KeyValueRepeat }
func (ev KeyEvent) release() bool { return ev.Value == linux.KeyValueRelease }

// Status is an immutable view of the machine after a keystroke.
type Status struct {
	Mode       types.InputMode `json:"mode"`
	Profile    string          `json:"profile,omitempty"`
	Preview    string          `json:"preview"`
	Buffer     string          `json:"buffer"`
	Pinyin     string          `json:"pinyin"`
	Filter     string          `json:"filter"`
	Candidates []string        `json:"candidates"`
	Page       int             `json:"page"`
	Pages      int             `json:"pages"`
	Selected   int             `json:"selected"`
	History    []string        `json:"history"`
}

// State names the machine's coarse state.
func (s Status) State() string {
	switch {
	case s.Buffer == "":
		return "idle"
	case s.Filter != "":
		return "filtering"
	default:
		return "composing"
	}
}

// Machine turns key events into actions. It is owned by one goroutine;
// Status may be read from any goroutine.
type Machine struct {
	resolver Resolver
	opts     Options
	logger   *slog.Logger

	mode    types.InputMode
	profile string
	fired   Hotkey
	buffer  []byte
	pager   *candidate.Pager
	preview string

	held       map[uint16]bool
	passed     map[uint16]bool
	shiftTap   uint16
	shiftClean bool

	history [historySize]string
	commits int

	status atomic.Pointer[Status]
}

func NewMachine(resolver Resolver, opts Options) *Machine {
	m := &Machine{
		resolver: resolver,
		held:     make(map[uint16]bool),
		passed:   make(map[uint16]bool),
	}
	m.SetOptions(opts)
	m.mode = opts.DefaultMode
	m.publish()
	return m
}

// SetOptions replaces the options. The composing state is kept.
func (m *Machine) SetOptions(opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = candidate.DefaultPageSize
	}
	m.opts = opts
	m.logger = opts.Logger
	if p, ok := m.resolver.(ProfileSwitcher); ok {
		m.profile = p.Profile()
	}
	m.publish()
}

func (m *Machine) Status() Status {
	return *m.status.Load()
}

func (m *Machine) Mode() types.InputMode {
	return m.mode
}

// SetMode switches mode, abandoning any composition.
func (m *Machine) SetMode(mode types.InputMode) types.Action {
	action := m.cancel()
	m.mode = mode
	m.publish()
	return action
}

// ToggleMode switches mode, abandoning any composition.
func (m *Machine) ToggleMode() types.Action {
	action := m.cancel()
	m.mode = m.mode.Toggle()
	m.publish()
	return action
}

// Profile is the active dictionary profile, empty when the resolver has
// only one.
func (m *Machine) Profile() string {
	return m.profile
}

// NextProfile abandons any composition and activates the next dictionary
// profile.
func (m *Machine) NextProfile() types.Action {
	action := m.cancel()
	if p, ok := m.resolver.(ProfileSwitcher); ok {
		m.profile = p.NextProfile()
	}
	m.fired = HotkeyProfile
	m.publish()
	return action
}

// SetProfile abandons any composition and activates the named profile.
func (m *Machine) SetProfile(name string) (types.Action, error) {
	p, ok := m.resolver.(ProfileSwitcher)
	if !ok {
		return types.Consume{}, errors.New("dictionary profiles unavailable")
	}
	if err := p.SetProfile(name); err != nil {
		return types.Consume{}, err
	}
	action := m.cancel()
	m.profile = p.Profile()
	m.fired = HotkeyProfile
	m.publish()
	return action, nil
}

// Preview is the inline preview style in effect.
func (m *Machine) Preview() string {
	return m.opts.Preview
}

// CyclePreview moves to the next preview style and redraws the preview of
// a running composition.
func (m *Machine) CyclePreview() types.Action {
	m.opts.Preview = config.NextPreview(m.opts.Preview)
	m.fired = HotkeyPreview
	var action types.Action = types.Consume{}
	if len(m.buffer) > 0 {
		action = m.showPreview()
	}
	m.publish()
	return action
}

// takeHotkey returns and clears the hotkey fired by the last key or
// command.
func (m *Machine) takeHotkey() Hotkey {
	h := m.fired
	m.fired = HotkeyNone
	return h
}

// Reset abandons any composition and forgets held keys.
func (m *Machine) Reset() types.Action {
	action := m.cancel()
	clear(m.held)
	clear(m.passed)
	m.shiftClean = false
	m.publish()
	return action
}

func (m *Machine) HandleKey(ev KeyEvent) types.Action {
	action := m.handle(ev)
	if ev.press() {
		if _, ok := action.(types.PassThrough); ok {
			m.passed[ev.Code] = true
		} else {
			delete(m.passed, ev.Code)
		}
	}
	m.publish()
	return action
}

func (m *Machine) handle(ev KeyEvent) types.Action {
	if linux.IsModifier(ev.Code) {
		return m.handleModifier(ev)
	}
	if ev.release() {
		if m.passed[ev.Code] {
			delete(m.passed, ev.Code)
			return types.PassThrough{}
		}
		return types.Consume{}
	}
	if !ev.press() {
		return types.PassThrough{}
	}
	m.shiftClean = false

	if ev.Value == linux.KeyValuePress {
		switch {
		case m.chordMatches(m.opts.ToggleChords, ev.Code):
			return m.ToggleMode()
		case m.chordMatches(m.opts.ProfileChords, ev.Code):
			return m.NextProfile()
		case m.chordMatches(m.opts.PreviewChords, ev.Code):
			return m.CyclePreview()
		case m.chordMatches(m.opts.PasteChords, ev.Code):
			// the output owns the paste method
			m.fired = HotkeyPaste
			return types.Consume{}
		}
	}
	if m.anyHeld(ctrlAltMeta) {
		return types.PassThrough{}
	}
	if m.mode != types.ModeChinese {
		return types.PassThrough{}
	}

	sym := keymap.Translate(ev.Code, m.anyHeld(shiftKeys))
	if len(m.buffer) == 0 {
		return m.handleIdle(sym)
	}
	return m.handleComposing(sym)
}

func (m *Machine) handleModifier(ev KeyEvent) types.Action {
	code := ev.Code
	isShift := code == uint16(linux.KeyLeftShift) || code == uint16(linux.KeyRightShift)
	switch {
	case ev.Value == linux.KeyValuePress:
		m.held[code] = true
		if isShift && !m.anyHeldExcept(code) {
			m.shiftTap = code
			m.shiftClean = true
		} else {
			m.shiftClean = false
		}
	case ev.release():
		m.held[code] = false
		passed := m.passed[code]
		delete(m.passed, code)
		if isShift && m.shiftClean && m.shiftTap == code {
			m.shiftClean = false
			action := m.shiftTapped()
			if passed {
				return types.PassThrough{}
			}
			return action
		}
		if passed {
			return types.PassThrough{}
		}
		return types.Consume{}
	}
	if isShift && m.mode == types.ModeChinese {
		return types.Consume{}
	}
	return types.PassThrough{}
}

// shiftTapped commits the first candidate while composing and toggles the
// mode otherwise.
func (m *Machine) shiftTapped() types.Action {
	if len(m.buffer) == 0 {
		m.mode = m.mode.Toggle()
		return types.Consume{}
	}
	if c, ok := m.pager.SelectAt(0); ok {
		return m.commit(c.Word)
	}
	return m.commit(string(m.buffer))
}

func (m *Machine) handleIdle(sym keymap.Symbol) types.Action {
	switch sym.Kind {
	case keymap.KindLetter:
		return m.appendChar(sym.Char)
	case keymap.KindPunct:
		if text, ok := m.opts.Punctuation.Lookup(sym.Char); ok {
			m.record(text)
			return types.Emit{Text: text}
		}
	}
	return types.PassThrough{}
}

func (m *Machine) handleComposing(sym keymap.Symbol) types.Action {
	switch sym.Kind {
	case keymap.KindLetter:
		return m.appendChar(sym.Char)
	case keymap.KindSeparator:
		if m.buffer[len(m.buffer)-1] == pinyin.Separator {
			return types.Consume{}
		}
		return m.appendChar(sym.Char)
	case keymap.KindDigit:
		slot, _ := candidate.DigitSlot(sym.Char)
		c, ok := m.pager.Select(slot)
		if !ok {
			return types.Consume{}
		}
		return m.commit(c.Word)
	case keymap.KindSpace:
		if c, ok := m.pager.Selected(); ok {
			return m.commit(c.Word)
		}
		return m.commit(string(m.buffer))
	case keymap.KindEnter:
		return m.commit(string(m.buffer))
	case keymap.KindEscape:
		return m.cancel()
	case keymap.KindBackspace:
		m.buffer = m.buffer[:len(m.buffer)-1]
		if len(m.buffer) == 0 {
			return m.cancel()
		}
		m.refresh()
		return m.showPreview()
	case keymap.KindTab:
		delta := 1
		if m.anyHeld(shiftKeys) {
			delta = -1
		}
		if !m.pager.MoveCursor(delta) {
			m.logger.Debug("selection at end of list", "cursor", m.pager.Cursor(), "len", m.pager.Len())
		}
		return m.showPreview()
	case keymap.KindPunct:
		switch sym.Char {
		case '-':
			if !m.pager.Prev() {
				m.logger.Debug("page out of range", "page", m.pager.Page()-1)
			}
			return m.showPreview()
		case '=':
			if !m.pager.Next() {
				m.logger.Debug("page out of range", "page", m.pager.Page()+1)
			}
			return m.showPreview()
		}
		text, ok := m.opts.Punctuation.Lookup(sym.Char)
		if !ok {
			text = string(sym.Char)
		}
		word := string(m.buffer)
		if c, ok := m.pager.Selected(); ok {
			word = c.Word
		}
		return m.commit(word + text)
	}
	return types.PassThrough{}
}

func (m *Machine) appendChar(ch byte) types.Action {
	if len(m.buffer) >= MaxBuffer {
		return types.Consume{}
	}
	m.buffer = append(m.buffer, ch)
	m.refresh()
	if m.opts.AutoCommitUnique && m.pager.Len() == 1 {
		if _, filter := pinyin.Split(string(m.buffer)); filter != "" {
			c, _ := m.pager.SelectAt(0)
			return m.commit(c.Word)
		}
	}
	return m.showPreview()
}

// refresh recomputes candidates from the buffer.
func (m *Machine) refresh() {
	var idx candidate.Index
	var rules pinyin.Rules
	if m.resolver != nil {
		idx = m.resolver.Index()
		rules = m.resolver.FuzzyRules()
	}
	cands := candidate.Resolve(idx, string(m.buffer), rules, candidate.Options{PrefixLimit: m.opts.PrefixLimit})
	m.pager = candidate.NewPager(cands, m.opts.PageSize)
}

func (m *Machine) previewText() string {
	switch m.opts.Preview {
	case config.PreviewPinyin:
		return string(m.buffer)
	case config.PreviewHanzi:
		if c, ok := m.pager.Selected(); ok {
			return c.Word
		}
		return string(m.buffer)
	default:
		return ""
	}
}

func (m *Machine) showPreview() types.Action {
	next := m.previewText()
	prev := m.preview
	m.preview = next
	if prev == next {
		return types.Consume{}
	}
	return types.DeleteAndEmit{Delete: utf8.RuneCountInString(prev), Text: next, Highlight: next != ""}
}

// commit replaces any preview with text and returns to idle.
func (m *Machine) commit(text string) types.Action {
	prev := m.preview
	m.clearComposition()
	m.record(text)
	if prev == "" {
		return types.Emit{Text: text}
	}
	return types.DeleteAndEmit{Delete: utf8.RuneCountInString(prev), Text: text}
}

// cancel drops the composition without committing.
func (m *Machine) cancel() types.Action {
	prev := m.preview
	m.clearComposition()
	if prev == "" {
		return types.Consume{}
	}
	return types.DeleteAndEmit{Delete: utf8.RuneCountInString(prev)}
}

func (m *Machine) clearComposition() {
	m.buffer = m.buffer[:0]
	m.pager = nil
	m.preview = ""
}

func (m *Machine) record(text string) {
	if text == "" {
		return
	}
	m.history[m.commits%historySize] = text
	m.commits++
}

// History returns committed strings, oldest first.
func (m *Machine) History() []string {
	n := min(m.commits, historySize)
	out := make([]string, 0, n)
	for i := m.commits - n; i < m.commits; i++ {
		out = append(out, m.history[i%historySize])
	}
	return out
}

func (m *Machine) publish() {
	buf := string(m.buffer)
	py, filter := pinyin.Split(buf)
	st := &Status{
		Mode:     m.mode,
		Profile:  m.profile,
		Preview:  m.opts.Preview,
		Buffer:   buf,
		Pinyin:   py,
		Filter:   filter,
		Page:     m.pager.Page(),
		Pages:    m.pager.Pages(),
		Selected: m.pager.Cursor(),
		History:  m.History(),
	}
	for _, c := range m.pager.Current() {
		st.Candidates = append(st.Candidates, c.Word)
	}
	m.status.Store(st)
}

func (m *Machine) chordMatches(chords []config.ToggleChord, code uint16) bool {
	for _, chord := range chords {
		if chord.Key != code {
			continue
		}
		if m.groupsHeld(chord.ModifierGroups) {
			return true
		}
	}
	return false
}

func (m *Machine) groupsHeld(groups [][]uint16) bool {
	for _, group := range groups {
		if !m.anyHeld(group) {
			return false
		}
	}
	return true
}

func (m *Machine) anyHeld(codes []uint16) bool {
	for _, code := range codes {
		if m.held[code] {
			return true
		}
	}
	return false
}

func (m *Machine) anyHeldExcept(skip uint16) bool {
	for code, down := range m.held {
		if down && code != skip {
			return true
		}
	}
	return false
}

var (
	shiftKeys   = []uint16{uint16(linux.KeyLeftShift), uint16(linux.KeyRightShift)}
	ctrlAltMeta = []uint16{
		uint16(linux.KeyLeftCtrl), uint16(linux.KeyRightCtrl),
		uint16(linux.KeyLeftAlt), uint16(linux.KeyRightAlt),
		uint16(linux.KeyLeftMeta), uint16(linux.KeyRightMeta),
	}
)

// Line renders the status on one line: the buffer followed by the
// numbered candidates of the current page.
func (s Status) Line() string {
	var b strings.Builder
	b.WriteString(s.Buffer)
	for i, c := range s.Candidates {
		b.WriteByte(' ')
		b.WriteByte(byte('0' + (i+1)%10))
		b.WriteByte('.')
		b.WriteString(c)
	}
	return b.String()
}
