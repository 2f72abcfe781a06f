package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pinfe/internal/config"
)

func newCheckConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config [path]",
		Short: "Validate a config file and show the dictionaries it resolves to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			cfg, resolved, err := config.Resolve(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("%s: %w", displayPath(resolved), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", displayPath(resolved))
			fmt.Fprintf(out, "mode: %s, page size %d, preview %s, fuzzy %t\n",
				cfg.Mode(), cfg.Input.PageSize, cfg.Input.Preview, cfg.Input.Fuzzy)
			fmt.Fprintf(out, "output: %s (paste %s)\n", cfg.Output.Method, cfg.Output.Paste)
			fmt.Fprintf(out, "socket: %s\n", cfg.SocketPath())
			profiles, err := cfg.Profiles()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				name := p.Name
				if name == cfg.ActiveProfile() {
					name += " (active)"
				}
				sources := p.Sources(cfg.Dictionary.EnableLevel3)
				if len(sources) == 0 {
					fmt.Fprintf(out, "dictionaries %s: none found\n", name)
					continue
				}
				fmt.Fprintf(out, "dictionaries %s:\n", name)
				for _, src := range sources {
					fmt.Fprintf(out, "  tier %d  %s\n", src.Tier, src.Path)
				}
			}
			return nil
		},
	}
}

func displayPath(path string) string {
	if path == "" {
		return "(built-in defaults)"
	}
	return path
}
