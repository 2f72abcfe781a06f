// Package app wires the daemon together: config, logging, dictionaries,
// the keyboard device, the output injector, the engine and its
// peripherals.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"pinfe/internal/config"
	"pinfe/internal/control"
	"pinfe/internal/device"
	"pinfe/internal/dict"
	"pinfe/internal/emitter"
	"pinfe/internal/engine"
	"pinfe/internal/logging"
	"pinfe/internal/metrics"
	"pinfe/internal/notify"
	"pinfe/internal/shared"
	"pinfe/internal/types"
)

// Options are the command-line overrides for a daemon run.
type Options struct {
	ConfigPath string
	DevicePath string
	SocketPath string
	Method     string
	LogLevel   string
	NoWatch    bool
	NoNotify   bool
}

type Runtime struct {
	opts       Options
	cfg        config.Config
	configPath string
	logger     *slog.Logger
	logCloser  io.Closer
	shared     *shared.Shared
	metrics    *metrics.Metrics
	notifier   *notify.Notifier
	output     emitter.Output
	engine     *engine.Engine
	server     *control.Server
	serverErr  <-chan error
	deviceFD   int
	cleanups   []func()

	// runEngine defaults to the engine's Run.
	runEngine func(context.Context) error

	engineStarted bool
}

func NewRuntime(opts Options) *Runtime {
	return &Runtime{opts: opts, deviceFD: -1}
}

// Run blocks until ctx is done, a termination signal arrives or the
// engine fails.
func (rt *Runtime) Run(ctx context.Context) error {
	defer rt.cleanup()

	if err := rt.loadConfig(); err != nil {
		return err
	}
	if err := rt.prepareLogging(); err != nil {
		return err
	}
	if err := rt.prepareDictionary(ctx); err != nil {
		return err
	}
	if err := rt.openDevice(); err != nil {
		return err
	}
	if err := rt.buildEmitter(); err != nil {
		return err
	}
	rt.prepareNotifier()
	rt.buildEngine()
	if err := rt.startControl(); err != nil {
		return err
	}
	return rt.runEventLoop(ctx)
}

// loadConfig falls back to the defaults when the file is unusable.
func (rt *Runtime) loadConfig() error {
	cfg, path, err := config.Resolve(rt.opts.ConfigPath)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pinfe: config %s: %v; using defaults\n", path, err)
		cfg = config.Default()
	}
	if rt.opts.Method != "" {
		cfg.Output.Method = rt.opts.Method
	}
	if rt.opts.SocketPath != "" {
		cfg.Daemon.Socket = rt.opts.SocketPath
	}
	if rt.opts.LogLevel != "" {
		cfg.Log.Level = rt.opts.LogLevel
	}
	if rt.opts.NoWatch {
		cfg.Daemon.Watch = false
	}
	if rt.opts.NoNotify {
		cfg.Daemon.Notify = false
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	rt.cfg = cfg
	rt.configPath = path
	return nil
}

func (rt *Runtime) prepareLogging() error {
	logger, closer, err := logging.New(logging.FromConfig(rt.cfg.Log))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	rt.logger = logger
	rt.logCloser = closer
	slog.SetDefault(logger)
	if rt.configPath != "" {
		logger.Info("config loaded", "path", rt.configPath)
	}
	return nil
}

func (rt *Runtime) prepareDictionary(ctx context.Context) error {
	sh, err := shared.New(rt.cfg, logging.Component(rt.logger, "shared"))
	if err != nil {
		return err
	}
	rt.shared = sh
	rt.metrics = metrics.New()
	sh.OnPublish(func(profile string, snap *dict.Snapshot) {
		rt.logger.Info("dictionaries published",
			"profile", profile,
			"generation", snap.Generation,
			"entries", snap.Trie.Len(),
			"files", len(snap.Sources))
	})

	report, err := sh.ReloadConfigured(ctx)
	rt.metrics.RecordReload(report, err)
	if err != nil {
		return err
	}
	if report.Entries == 0 {
		rt.logger.Warn("dictionary is empty; Chinese mode will only offer raw pinyin",
			"profile", sh.Profile(), "dict_dirs", rt.cfg.Dictionary.DictDirs)
	}
	return nil
}

func (rt *Runtime) openDevice() error {
	devicePath := strings.TrimSpace(rt.opts.DevicePath)
	if devicePath == "" {
		detected, err := device.DetectKeyboardDevice()
		if err != nil {
			return err
		}
		devicePath = detected.Path
		rt.logger.Info("using keyboard", "path", detected.Path, "name", detected.Name)
	}
	fd, err := device.Open(devicePath)
	if err != nil {
		return err
	}
	rt.deviceFD = fd
	rt.registerCleanup(rt.releaseDevice)
	return nil
}

func (rt *Runtime) buildEmitter() error {
	out, err := emitter.Open(rt.cfg.Output, logging.Component(rt.logger, "emitter"))
	if err != nil {
		return fmt.Errorf("open %s output: %w", rt.cfg.Output.Method, err)
	}
	rt.output = out
	rt.registerCleanup(func() {
		// a running engine closes its output on the way out
		if !rt.engineStarted {
			_ = out.Close()
		}
	})
	return nil
}

func (rt *Runtime) prepareNotifier() {
	if !rt.cfg.Daemon.Notify {
		return
	}
	n, err := notify.New(logging.Component(rt.logger, "notify"))
	if err != nil {
		rt.logger.Warn("desktop notifications unavailable", "err", err)
		return
	}
	rt.notifier = n
	rt.registerCleanup(func() { _ = n.Close() })
}

func (rt *Runtime) buildEngine() {
	logger := logging.Component(rt.logger, "engine")
	opts := engine.OptionsFromConfig(rt.cfg, rt.shared.Punctuation(), logger)
	machine := engine.NewMachine(rt.shared, opts)
	hooks := engine.Hooks{
		OnAction: rt.metrics.RecordAction,
		OnModeChange: func(mode types.InputMode) {
			rt.metrics.RecordModeChange(mode)
			rt.notifier.ModeChanged(mode)
		},
		OnHotkey: func(h engine.Hotkey, value string) {
			rt.metrics.RecordHotkey(h.String(), value)
			rt.notifier.Notice(hotkeyTitles[h]+": "+value, "")
		},
	}
	rt.engine = engine.NewEngine(rt.deviceFD, machine, rt.output, logger, hooks)
}

var hotkeyTitles = map[engine.Hotkey]string{
	engine.HotkeyProfile: "Dictionary",
	engine.HotkeyPreview: "Preview",
	engine.HotkeyPaste:   "Paste",
}

func (rt *Runtime) startControl() error {
	hooks := control.Hooks{
		OnReload: rt.metrics.RecordReload,
		OnLookup: rt.metrics.ObserveLookup,
	}
	srv, err := control.Start(rt.cfg.SocketPath(), rt.engine, rt.shared, hooks, logging.Component(rt.logger, "control"))
	if err != nil {
		return err
	}
	if srv != nil {
		rt.server = srv
		rt.serverErr = srv.Err()
		rt.registerCleanup(srv.Close)
	}
	return nil
}

// applyConfig installs a reloaded config and reports whether it reloaded
// the dictionaries. Output and device settings need a restart.
func (rt *Runtime) applyConfig(ctx context.Context, cfg config.Config) bool {
	if cfg.Output != rt.cfg.Output {
		rt.logger.Warn("output settings change on restart", "method", cfg.Output.Method)
	}
	reloaded, err := rt.shared.ApplyConfig(ctx, cfg)
	if reloaded {
		rt.metrics.RecordReload(rt.shared.Store().Snapshot().Report, err)
	}
	if err != nil {
		rt.logger.Warn("config not applied", "err", err)
		return reloaded
	}
	rt.cfg = cfg
	opts := engine.OptionsFromConfig(cfg, rt.shared.Punctuation(), logging.Component(rt.logger, "engine"))
	if err := rt.engine.Submit(func(m *engine.Machine) types.Action {
		m.SetOptions(opts)
		return types.Consume{}
	}); err != nil {
		rt.logger.Warn("engine options not updated", "err", err)
		return reloaded
	}
	rt.logger.Info("config applied", "reloaded_dictionaries", reloaded)
	return reloaded
}

func (rt *Runtime) runEventLoop(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	run := rt.runEngine
	if run == nil {
		run = rt.engine.Run
	}
	engineErrCh := make(chan error, 1)
	rt.engineStarted = true
	go func() {
		engineErrCh <- run(ctx)
	}()

	serverErrCh := rt.serverErr

	metricsErrCh := make(chan error, 1)
	if addr := rt.cfg.Daemon.MetricsAddr; addr != "" {
		go func() {
			metricsErrCh <- rt.metrics.Serve(ctx, addr, logging.Component(rt.logger, "metrics"))
		}()
	}

	configCh := make(chan config.Config, 1)
	if rt.cfg.Daemon.Watch && rt.configPath != "" {
		err := config.Watch(ctx, rt.configPath, logging.Component(rt.logger, "config"), func(cfg config.Config) {
			select {
			case configCh <- cfg:
			default:
				// a newer write follows
			}
		})
		if err != nil {
			rt.logger.Warn("config watch disabled", "err", err)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case err := <-engineErrCh:
			if err != nil && !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENODEV) {
				return err
			}
			return nil
		case err, ok := <-serverErrCh:
			if !ok {
				serverErrCh = nil
				continue
			}
			if err != nil {
				// the engine still uses the notifier and output that
				// cleanup closes
				cancel()
				<-engineErrCh
				return fmt.Errorf("control server: %w", err)
			}
			serverErrCh = nil
		case err := <-metricsErrCh:
			if err != nil {
				rt.logger.Warn("metrics server stopped", "err", err)
			}
		case cfg := <-configCh:
			rt.applyConfig(ctx, cfg)
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				rt.reload(ctx)
				continue
			}
			rt.logger.Info("shutting down", "signal", sig.String())
			cancel()
		}
	}
}

// reload rereads the config file and dictionaries.
func (rt *Runtime) reload(ctx context.Context) {
	cfg := rt.cfg
	if rt.configPath != "" {
		loaded, err := config.Load(rt.configPath)
		if err == nil {
			err = config.Validate(loaded)
		}
		if err != nil {
			rt.logger.Warn("config reload rejected", "path", rt.configPath, "err", err)
		} else {
			cfg = loaded
		}
	}
	if rt.applyConfig(ctx, cfg) {
		return
	}
	report, err := rt.shared.ReloadConfigured(ctx)
	rt.metrics.RecordReload(report, err)
	if err != nil {
		rt.logger.Warn("dictionary reload failed", "err", err)
	}
}

// releaseDevice closes the device, which also ends the engine's blocked read.
func (rt *Runtime) releaseDevice() {
	if rt.deviceFD >= 0 {
		unix.Close(rt.deviceFD)
		rt.deviceFD = -1
	}
}

func (rt *Runtime) registerCleanup(fn func()) {
	if fn == nil {
		return
	}
	rt.cleanups = append([]func(){fn}, rt.cleanups...)
}

func (rt *Runtime) cleanup() {
	for _, fn := range rt.cleanups {
		fn()
	}
	rt.cleanups = nil
	if rt.logCloser != nil {
		rt.logCloser.Close()
		rt.logCloser = nil
	}
}
