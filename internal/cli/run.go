package cli

import (
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"pinfe/internal/app"
)

const daemonEnv = "PINFE_DAEMONIZED"

func newRunCommand() *cobra.Command {
	var (
		opts      app.Options
		daemonize bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Grab the keyboard and start composing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spawned, err := daemonizeIfNeeded(daemonize)
			if err != nil {
				return err
			}
			if spawned {
				return nil
			}
			return app.NewRuntime(opts).Run(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/pinfe/config.ini)")
	flags.StringVarP(&opts.DevicePath, "device", "d", "", "evdev keyboard node (default: autodetect)")
	flags.StringVar(&opts.SocketPath, "socket", "", "control socket path")
	flags.StringVar(&opts.Method, "method", "", "output method: uinput, x11 or clipboard")
	flags.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&opts.NoWatch, "no-watch", false, "do not reload the config file on change")
	flags.BoolVar(&opts.NoNotify, "no-notify", false, "do not post mode notifications")
	flags.BoolVar(&daemonize, "daemon", false, "detach from the terminal")
	return cmd
}

// daemonizeIfNeeded re-executes the binary in a new session. It reports
// true in the parent, which should exit.
func daemonizeIfNeeded(enabled bool) (bool, error) {
	if !enabled {
		return false, nil
	}
	if os.Getenv(daemonEnv) == "1" {
		return false, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return false, err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer devNull.Close()

	attrs := &os.ProcAttr{
		Files: []*os.File{devNull, devNull, devNull},
		Env:   append(os.Environ(), daemonEnv+"=1"),
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	proc, err := os.StartProcess(exe, os.Args, attrs)
	if err != nil {
		return false, err
	}
	if err := proc.Release(); err != nil {
		return false, err
	}
	return true, nil
}
