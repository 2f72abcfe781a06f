package cli

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"pinfe/internal/device"
)

func newDevicesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List keyboards pinfe can grab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keyboards, err := device.ListKeyboardDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(keyboards)
			}
			if len(keyboards) == 0 {
				fmt.Fprintln(out, "no keyboards found (is the user in the input group?)")
				return nil
			}
			for _, kb := range keyboards {
				fmt.Fprintf(out, "%s\t%s\n", kb.Path, kb.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
