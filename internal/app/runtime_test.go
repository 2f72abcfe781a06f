package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/config"
	"pinfe/internal/engine"
	"pinfe/internal/metrics"
	"pinfe/internal/shared"
	"pinfe/internal/util"
)

type nopOutput struct{}

func (nopOutput) Close() error { return nil }
func (nopOutput) ForwardEvent(*util.InputEvent) error { return nil }
func (nopOutput) SendKeyState(uint16, bool) error { return nil }
func (nopOutput) TapKey(uint16) error { return nil }
func (nopOutput) SendBackspace(int) error { return nil }
func (nopOutput) SendText(string) error { return nil }

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestRuntime(t *testing.T, configPath string) *Runtime {
	t.Helper()
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		require.NoError(t, err)
		cfg = loaded
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sh, err := shared.New(cfg, logger)
	require.NoError(t, err)
	_, err = sh.ReloadConfigured(context.Background())
	require.NoError(t, err)

	machine := engine.NewMachine(sh, engine.OptionsFromConfig(cfg, sh.Punctuation(), logger))
	return &Runtime{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		shared:     sh,
		metrics:    metrics.New(),
		engine:     engine.NewEngine(-1, machine, nopOutput{}, logger, engine.Hooks{}),
		deviceFD:   -1,
	}
}

func TestReloadLoadsDictionariesOnce(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	writeFile(t, filepath.Join(dirA, "a.json"), `{"zhi": ["之"]}`)
	writeFile(t, filepath.Join(dirB, "b.json"), `{"zhi": ["知"]}`)
	path := filepath.Join(root, "config.toml")
	writeFile(t, path, "[dictionary]\ndict_dirs = [\""+dirA+"\"]\n")

	rt := newTestRuntime(t, path)
	ok := rt.metrics.Reloads.WithLabelValues("ok")

	// unchanged sources: the reload comes from the explicit request
	rt.reload(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(ok))

	// changed sources: applying the config already reloads
	writeFile(t, path, "[dictionary]\ndict_dirs = [\""+dirB+"\"]\n")
	rt.reload(context.Background())
	assert.Equal(t, 2.0, testutil.ToFloat64(ok))
	assert.Equal(t, "知", rt.shared.Lookup("zhi")[0].Word)
}

func TestServerFailureWaitsForEngine(t *testing.T) {
	rt := newTestRuntime(t, "")
	serverErr := make(chan error, 1)
	serverErr <- errors.New("accept failed")
	rt.serverErr = serverErr

	var stopped atomic.Bool
	rt.runEngine = func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		stopped.Store(true)
		return nil
	}

	err := rt.runEventLoop(context.Background())
	require.ErrorContains(t, err, "control server")
	assert.True(t, stopped.Load())
}

func TestEngineExitEndsLoop(t *testing.T) {
	rt := newTestRuntime(t, "")
	rt.runEngine = func(context.Context) error { return nil }
	assert.NoError(t, rt.runEventLoop(context.Background()))

	rt.runEngine = func(context.Context) error { return errors.New("read input event: EIO") }
	assert.Error(t, rt.runEventLoop(context.Background()))
}
