package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/luma/goxlr/storage"
)

var StatusCmd = &cobra.Command{
	Use:   "status [pointer]",
	Short: "Print the daemon status",
	Long: `Print the daemon status, or the part of it at a JSON pointer

Usage
	goxlr status
	goxlr status /mixers/S201/levels/volumes

`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pointer storage.Pointer
		if len(args) == 1 {
			var err error
			if pointer, err = storage.ParsePointer(args[0]); err != nil {
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

		status, err := conn.GetStatus(ctx)
		if err != nil {
			return err
		}

		value := gjson.ParseBytes(status)
		if !pointer.IsRoot() {
			value = value.Get(pointer.Path())
			if !value.Exists() {
				return fmt.Errorf("%s: %w", pointer, storage.ErrNotFound)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), value.Get("@pretty").String())
		return nil
	},
}
