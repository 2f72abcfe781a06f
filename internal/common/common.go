package common

import (
	"os"
	"path/filepath"
)

const (
	socketEnv = "PINFE_SOCKET"
	configEnv = "PINFE_CONFIG"
	appName   = "pinfe"
)

// DefaultSocketPath returns the default unix domain socket path used by the pinfe daemon.
func DefaultSocketPath() string {
	if env := os.Getenv(socketEnv); env != "" {
		return env
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, appName+".sock")
	}
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return filepath.Join(stateDir, appName, appName+".sock")
	}
	if configDir, err := os.UserConfigDir(); err == nil && configDir != "" {
		return filepath.Join(configDir, appName, appName+".sock")
	}
	return filepath.Join(os.TempDir(), appName+".sock")
}

// DefaultConfigPath is $PINFE_CONFIG, else $XDG_CONFIG_HOME/pinfe/config.ini.
func DefaultConfigPath() string {
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	if configDir, err := os.UserConfigDir(); err == nil && configDir != "" {
		return filepath.Join(configDir, appName, "config.ini")
	}
	return filepath.Join(".", "config.ini")
}

// DefaultDictDirs lists the system dictionary directory followed by the
// user's data directory.
func DefaultDictDirs() []string {
	dirs := []string{filepath.Join("/usr/share", appName, "dict")}
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return append(dirs, filepath.Join(dataDir, appName, "dict"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "share", appName, "dict"))
	}
	return dirs
}

// EnsureSocketDir ensures that the directory containing the unix socket exists.
func EnsureSocketDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" || dir == string(filepath.Separator) {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
