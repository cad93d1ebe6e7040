package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/goxlr/client"
	"github.com/luma/goxlr/storage"
)

var WatchCmd = &cobra.Command{
	Use:   "watch [pointer]",
	Short: "Print status changes as they happen",
	Long: `Keep a copy of the daemon status and print every change to it, optionally
only those under a JSON pointer

Usage
	goxlr watch
	goxlr watch /mixers/S201/levels

`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefix storage.Pointer
		if len(args) == 1 {
			var err error
			if prefix, err = storage.ParsePointer(args[0]); err != nil {
				return err
			}
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		conn, err := connect(ctx, nil)
		if err != nil {
			return err
		}

		defer conn.Close()

		store := storage.NewInmemoryStore()
		defer store.Close()

		mirror := client.NewMirror(conn, store, log.Named("mirror"))
		updates := store.ListenToUpdates()

		mirrorErr := make(chan error, 1)
		go func() {
			mirrorErr <- mirror.Run(ctx)
		}()

		out := cmd.OutOrStdout()

		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return nil
				}

				path, err := storage.ParsePointer(update.Path)
				if err != nil || !path.HasPrefix(prefix) {
					continue
				}

				if update.Value == nil {
					fmt.Fprintf(out, "%s %s\n", update.Op, update.Path)
				} else {
					fmt.Fprintf(out, "%s %s %s\n", update.Op, update.Path, update.Value)
				}

			case err := <-mirrorErr:
				if ctx.Err() != nil {
					return nil
				}

				if errors.Is(err, client.ErrConnectionClosed) {
					log.Warn("Daemon went away", zap.Error(err))
				}

				return err
			}
		}
	},
}
