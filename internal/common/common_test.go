package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv(socketEnv, "/tmp/explicit.sock")
	assert.Equal(t, "/tmp/explicit.sock", DefaultSocketPath())

	t.Setenv(socketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/pinfe.sock", DefaultSocketPath())
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv(configEnv, "/etc/pinfe.toml")
	assert.Equal(t, "/etc/pinfe.toml", DefaultConfigPath())

	t.Setenv(configEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/home/me/.config")
	assert.Equal(t, "/home/me/.config/pinfe/config.ini", DefaultConfigPath())
}

func TestDefaultDictDirs(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, []string{"/usr/share/pinfe/dict", "/data/pinfe/dict"}, DefaultDictDirs())
}

func TestEnsureSocketDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureSocketDir(filepath.Join(dir, "pinfe.sock")))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureSocketDir("pinfe.sock"))
}
