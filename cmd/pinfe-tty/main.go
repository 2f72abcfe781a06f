// Command pinfe-tty composes pinyin inside a terminal, without grabbing an
// input device. Ctrl+Space toggles the mode; Ctrl+C quits.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/eiannone/keyboard"
	"github.com/spf13/cobra"

	"pinfe/internal/config"
	"pinfe/internal/engine"
	"pinfe/internal/logging"
	"pinfe/internal/shared"
	"pinfe/internal/terminal"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pinfe-tty: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		configPath string
		preview    string
		logFile    string
	)
	cmd := &cobra.Command{
		Use:           "pinfe-tty",
		Short:         "Compose pinyin in the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			cfg.Input.Preview = preview
			// the raw terminal owns stderr, so logs only go to a file
			cfg.Log.File = logFile
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logCfg := logging.FromConfig(cfg.Log)
			w, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
			if err != nil {
				return err
			}
			defer w.Close()
			logger, closer, err := logging.NewWithWriter(logCfg, w)
			if err != nil {
				return err
			}
			defer closer.Close()

			sh, err := shared.New(cfg, logging.Component(logger, "shared"))
			if err != nil {
				return err
			}
			report, err := sh.ReloadConfigured(cmd.Context())
			if err != nil {
				return err
			}
			if report.Entries == 0 {
				fmt.Fprintln(os.Stderr, "pinfe-tty: no dictionary entries loaded; check dict_dirs")
			}

			machine := engine.NewMachine(sh, engine.OptionsFromConfig(cfg, sh.Punctuation(), logging.Component(logger, "engine")))
			return loop(terminal.NewSession(machine, terminal.NewScreen(os.Stdout), logger))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file")
	cmd.Flags().StringVar(&preview, "preview", config.PreviewNone, "inline preview: none, pinyin or hanzi")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}

func loop(session *terminal.Session) error {
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer keyboard.Close()

	fmt.Print("Ctrl+Space toggles Chinese/English, Ctrl+C quits.\r\n")
	if err := session.Redraw(); err != nil {
		return err
	}
	for {
		ch, key, err := keyboard.GetKey()
		if err != nil {
			// unrecognised escape sequences are reported as errors
			if key == keyboard.KeyEsc {
				continue
			}
			return err
		}
		if err := session.Key(ch, key); err != nil {
			if errors.Is(err, terminal.ErrQuit) {
				fmt.Print("\r\n")
				return nil
			}
			return err
		}
	}
}
