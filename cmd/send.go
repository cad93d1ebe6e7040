package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/luma/goxlr/protocol"
)

var (
	// Send a device command to this mixer
	serial string

	// Send a device command to the first mixer, or check --serial exists
	mixerCommand bool

	// Send a daemon command
	daemonCommand bool
)

var ErrInvalidPayload = errors.New("The payload must be valid JSON")

func init() {
	flags := SendCmd.Flags()

	flags.StringVarP(&serial, "serial", "s", "", "Wrap the payload as a command for the mixer with this serial")
	flags.BoolVarP(&mixerCommand, "mixer", "m", false, "Wrap the payload as a command for the first mixer, or check that --serial exists")
	flags.BoolVarP(&daemonCommand, "daemon", "d", false, "Wrap the payload as a daemon command")
}

var SendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Send a request and print the reply",
	Long: `Send a request and print the reply

The payload is JSON and is sent as the request's data, unless --serial,
--mixer or --daemon is given.

Usage
	goxlr send '"GetStatus"'
	goxlr send --daemon '"OpenUi"'
	goxlr send --serial S201 '{"SetVolume":["Mic",200]}'
	goxlr send --mixer '{"SetVolume":["Mic",200]}'

`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !gjson.Valid(args[0]) {
			return ErrInvalidPayload
		}

		payload := json.RawMessage(args[0])

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		conn, err := connect(ctx, nil)
		if err != nil {
			return err
		}

		defer conn.Close()

		var frame *protocol.Frame

		switch {
		case mixerCommand:
			var selected string
			if selected, err = conn.SelectMixer(ctx, serial); err == nil {
				frame, err = conn.Command(ctx, selected, payload)
			}
		case serial != "":
			frame, err = conn.Command(ctx, serial, payload)
		case daemonCommand:
			frame, err = conn.Daemon(ctx, payload)
		default:
			frame, err = conn.Send(ctx, payload)
		}

		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), gjson.ParseBytes(frame.Data).Get("@pretty").String())
		return nil
	},
}
