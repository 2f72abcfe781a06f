// Package control serves the daemon's unix socket: one request per line,
// one response line per request. Successful replies are JSON; failures are
// "error: <message>".
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"pinfe/internal/common"
	"pinfe/internal/dict"
	"pinfe/internal/engine"
	"pinfe/internal/shared"
	"pinfe/internal/types"
)

const (
	maxLine       = 64 * 1024
	modeTimeout   = time.Second
	maxLookupList = 50
)

// Engine is the part of the engine the server drives.
type Engine interface {
	Status() engine.Status
	Submit(engine.Command) error
}

type Hooks struct {
	OnReload func(dict.Report, error)
	OnLookup func(time.Duration)
}

type Server struct {
	listener net.Listener
	socket   string
	engine   Engine
	shared   *shared.Shared
	hooks    Hooks
	logger   *slog.Logger
	errCh    chan error
	ctx      context.Context
	cancel   context.CancelFunc
}

// Start listens on path. An empty path disables the server and returns nil.
func Start(path string, eng Engine, sh *shared.Shared, hooks Hooks, logger *slog.Logger) (*Server, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := common.EnsureSocketDir(path); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		listener.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		listener: listener,
		socket:   path,
		engine:   eng,
		shared:   sh,
		hooks:    hooks,
		logger:   logger,
		errCh:    make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	go func() {
		srv.errCh <- srv.serve()
		close(srv.errCh)
	}()
	logger.Info("control socket listening", "path", path)
	return srv, nil
}

func (s *Server) Close() {
	if s == nil {
		return
	}
	s.cancel()
	s.listener.Close()
	for range s.errCh {
	}
	_ = os.Remove(s.socket)
}

func (s *Server) Err() <-chan error {
	if s == nil {
		return nil
	}
	return s.errCh
}

func (s *Server) serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go func(c net.Conn) {
			defer c.Close()
			if err := s.handleConn(c); err != nil {
				s.logger.Warn("control connection failed", "err", err)
			}
		}(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	writer := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := writer.WriteString(s.Handle(line)); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// StatusReply is the reply to "status".
type StatusReply struct {
	engine.Status
	State      string `json:"state"`
	Generation uint64 `json:"generation"`
	Entries    int    `json:"entries"`
}

// ReloadReply is the reply to "reload".
type ReloadReply struct {
	Files      int      `json:"files"`
	Loaded     int      `json:"loaded"`
	Entries    int      `json:"entries"`
	Keys       int      `json:"keys"`
	Failed     []string `json:"failed,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// LookupItem is one element of the reply to "lookup".
type LookupItem struct {
	Word  string   `json:"word"`
	Tier  int      `json:"tier"`
	Key   string   `json:"key"`
	Tags  []string `json:"tags,omitempty"`
	Fuzzy bool     `json:"fuzzy,omitempty"`
}

type ModeReply struct {
	Mode types.InputMode `json:"mode"`
}

// ProfileReply is the reply to "profile".
type ProfileReply struct {
	Profile  string   `json:"profile"`
	Profiles []string `json:"profiles"`
}

// Handle answers one request line.
func (s *Server) Handle(line string) string {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	var reply any
	var err error
	switch strings.ToLower(cmd) {
	case "ping":
		return "pong"
	case "status":
		reply, err = s.status()
	case "reload":
		reply, err = s.reload()
	case "lookup":
		reply, err = s.lookup(arg)
	case "mode":
		reply, err = s.mode(arg)
	case "profile":
		reply, err = s.profile(arg)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return "error: " + err.Error()
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(out)
}

func (s *Server) status() (any, error) {
	if s.engine == nil {
		return nil, errors.New("engine not running")
	}
	st := s.engine.Status()
	reply := StatusReply{Status: st, State: st.State()}
	if s.shared != nil {
		snap := s.shared.Store().Snapshot()
		reply.Generation = snap.Generation
		reply.Entries = snap.Trie.Len()
	}
	return reply, nil
}

func (s *Server) reload() (any, error) {
	if s.shared == nil {
		return nil, errors.New("no dictionary configured")
	}
	report, err := s.shared.ReloadConfigured(s.ctx)
	if s.hooks.OnReload != nil {
		s.hooks.OnReload(report, err)
	}
	if err != nil {
		return nil, err
	}
	reply := ReloadReply{
		Files:      report.Files,
		Loaded:     report.Loaded,
		Entries:    report.Entries,
		Keys:       report.Keys,
		DurationMS: report.Duration.Milliseconds(),
	}
	for _, e := range report.Errors {
		reply.Failed = append(reply.Failed, e.Path)
	}
	return reply, nil
}

func (s *Server) lookup(buffer string) (any, error) {
	if buffer == "" {
		return nil, errors.New("lookup needs a pinyin argument")
	}
	if s.shared == nil {
		return nil, errors.New("no dictionary configured")
	}
	started := time.Now()
	cands := s.shared.Lookup(buffer)
	if s.hooks.OnLookup != nil {
		s.hooks.OnLookup(time.Since(started))
	}
	if len(cands) > maxLookupList {
		cands = cands[:maxLookupList]
	}
	items := make([]LookupItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, LookupItem{Word: c.Word, Tier: c.Tier, Key: c.Key, Tags: c.Tags, Fuzzy: c.Fuzzy})
	}
	return items, nil
}

func (s *Server) mode(arg string) (any, error) {
	if s.engine == nil {
		return nil, errors.New("engine not running")
	}
	if arg == "" {
		return ModeReply{Mode: s.engine.Status().Mode}, nil
	}
	var change func(*engine.Machine) types.Action
	if strings.EqualFold(arg, "toggle") {
		change = (*engine.Machine).ToggleMode
	} else {
		target, err := types.ParseMode(arg)
		if err != nil {
			return nil, err
		}
		change = func(m *engine.Machine) types.Action { return m.SetMode(target) }
	}

	done := make(chan types.InputMode, 1)
	err := s.engine.Submit(func(m *engine.Machine) types.Action {
		action := change(m)
		done <- m.Mode()
		return action
	})
	if err != nil {
		return nil, err
	}
	select {
	case mode := <-done:
		return ModeReply{Mode: mode}, nil
	case <-time.After(modeTimeout):
		return nil, errors.New("engine did not respond")
	}
}

// profile reports the active dictionary profile, or switches to the named
// one ("next" cycles). Switching goes through the engine so a running
// composition is dropped first.
func (s *Server) profile(arg string) (any, error) {
	if s.shared == nil {
		return nil, errors.New("no dictionary configured")
	}
	if arg == "" {
		return ProfileReply{Profile: s.shared.Profile(), Profiles: s.shared.Profiles()}, nil
	}
	if s.engine == nil {
		return nil, errors.New("engine not running")
	}

	done := make(chan error, 1)
	err := s.engine.Submit(func(m *engine.Machine) types.Action {
		if strings.EqualFold(arg, "next") {
			action := m.NextProfile()
			done <- nil
			return action
		}
		action, err := m.SetProfile(arg)
		done <- err
		return action
	})
	if err != nil {
		return nil, err
	}
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return ProfileReply{Profile: s.shared.Profile(), Profiles: s.shared.Profiles()}, nil
	case <-time.After(modeTimeout):
		return nil, errors.New("engine did not respond")
	}
}
