package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pinfe/internal/config"
	"pinfe/internal/control"
)

func newCtlCommand() *cobra.Command {
	var (
		socket     string
		configPath string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ctl <status|reload|ping|lookup PINYIN|mode [chinese|english|toggle]|profile [NAME|next]>",
		Short: "Send a request to the running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := socket
			if path == "" {
				cfg, _, err := config.Resolve(configPath)
				if err != nil {
					return err
				}
				path = cfg.SocketPath()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			reply, err := control.Request(ctx, path, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "control socket path (default from config)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file used to find the socket")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
