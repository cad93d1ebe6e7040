package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/goxlr/cmd/gen"
	"github.com/luma/goxlr/internal/env"
)

var (
	// Loaded from the environment, then overridden by flags
	conf *env.Config

	log *zap.Logger

	// Flags shared by every command
	host      string
	port      int
	keepalive time.Duration
	timeout   time.Duration
	logLevel  string
	trace     bool
)

var RootCmd = &cobra.Command{
	Use:   "goxlr",
	Short: "Talk to the GoXLR Utility daemon",
	Long: `Talk to the GoXLR Utility daemon over its websocket API.

Settings are read from GOXLR_* environment variables and .env.local, flags
take precedence over both.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}

		flags := cmd.Flags()

		if flags.Changed("host") {
			conf.Host = host
		}

		if flags.Changed("port") {
			conf.Port = port
		}

		if flags.Changed("keepalive") {
			conf.KeepaliveInterval = keepalive
		}

		if flags.Changed("timeout") {
			conf.RequestTimeout = timeout
		}

		if flags.Changed("log-level") {
			conf.LogLevel = logLevel
		}

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&host, "host", "H", "localhost", "The host the daemon is running on")
	flags.IntVarP(&port, "port", "p", 14564, "The port the daemon is listening on")
	flags.DurationVar(&keepalive, "keepalive", 5*time.Second, "How often to ping the daemon, 0 or less disables it")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for each reply")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.BoolVar(&trace, "trace", false, "Log every frame, needs --log-level debug")

	RootCmd.AddCommand(
		PingCmd,
		StatusCmd,
		SendCmd,
		WatchCmd,
		BridgeCmd,
		VersionCmd,
		gen.RootCmd,
	)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
