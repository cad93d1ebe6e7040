package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the daemon is answering",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		conn, err := connect(ctx, nil)
		if err != nil {
			return err
		}

		defer conn.Close()

		start := time.Now()
		if err := conn.Ping(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Ok from %s in %s\n", conf.Host, elapsed(start))
		return nil
	},
}
