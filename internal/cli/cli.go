// Package cli is the pinfe command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Output goes to cmd.OutOrStdout
// so tests can capture it.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pinfe",
		Short: "Pinyin input method for the Linux input layer",
		Long: `pinfe grabs a keyboard through evdev, composes pinyin into Chinese
characters and injects the result through uinput, XTEST or the clipboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCommand(),
		newLookupCommand(),
		newDevicesCommand(),
		newCtlCommand(),
		newCheckConfigCommand(),
	)
	return root
}

// Execute runs the tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
