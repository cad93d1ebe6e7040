package cmd

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luma/goxlr/bridge"
	"github.com/luma/goxlr/client"
	"github.com/luma/goxlr/storage"
)

var (
	// The host to listen for http requests on
	httpHost string

	// The port to listen for http requests on
	httpPort int

	// How many listeners share the port
	numListeners int
)

func init() {
	flags := BridgeCmd.Flags()

	flags.StringVar(&httpHost, "http-host", bridge.DefaultHost, "The host to listen for HTTP requests on")
	flags.IntVar(&httpPort, "http-port", bridge.DefaultPort, "The port to listen for HTTP requests on")
	flags.IntVar(&numListeners, "listeners", 0, "How many listeners to run, defaults to one per CPU")
}

var BridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the daemon's API over plain HTTP",
	Long: `Serve the daemon's API over plain HTTP

Routes
	GET  /health
	GET  /ping
	GET  /status
	GET  /status/*pointer
	GET  /updates           server sent events for every status change
	POST /command           {"serial": "S201", "command": {...}} or {"daemon": ...}
	GET  /metrics

Usage
	goxlr bridge --http-port 14565

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signalContext(cmd.Context())
		defer signalStop()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		flags := cmd.Flags()
		if flags.Changed("http-host") {
			conf.BridgeHost = httpHost
		}

		if flags.Changed("http-port") {
			conf.BridgePort = httpPort
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		conn, err := connect(ctx, registry)
		if err != nil {
			return err
		}

		defer conn.Close()

		store := storage.NewInmemoryStore()
		defer store.Close()

		mirror := client.NewMirror(conn, store, log.Named("mirror"))
		if err := mirror.Sync(ctx); err != nil {
			return err
		}

		server := bridge.NewServer(bridge.Options{
			Host:         conf.BridgeHost,
			Port:         conf.BridgePort,
			NumListeners: numListeners,
			Daemon:       conn,
			Status:       store,
			Gatherer:     registry,
			DebugHTTP:    conf.DebugHTTP,
			Log:          log.Named("bridge"),
		})

		if err := server.Start(); err != nil {
			return err
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.Stringer("addr", server.Addr()))

		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			err := mirror.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		})

		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				// Interrupted, or the mirror stopped
			case <-conn.Done():
				return conn.Err()
			}

			return nil
		})

		if err = group.Wait(); err != nil {
			log.Error("Lost connection to the daemon", zap.Error(err))
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Error("Http server forced to shutdown", zap.Error(serr))
		}

		log.Info("Exiting")
		return err
	},
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
