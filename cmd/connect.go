package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luma/goxlr/client"
)

func clientOptions(registerer prometheus.Registerer) client.Options {
	interval := conf.KeepaliveInterval
	if interval <= 0 {
		interval = -1
	}

	return client.Options{
		Host:              conf.Host,
		Port:              conf.Port,
		KeepaliveInterval: interval,
		RequestTimeout:    conf.RequestTimeout,
		WriteTimeout:      conf.WriteTimeout,
		PushBuffer:        conf.PushBuffer,
		Registerer:        registerer,
		Trace:             trace,
		Log:               log.Named("client"),
	}
}

// connect opens a connection to the daemon, giving up after the request
// timeout.
func connect(ctx context.Context, registerer prometheus.Registerer) (*client.Conn, error) {
	conn := client.New(clientOptions(registerer))

	dialCtx := ctx
	if conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, conf.RequestTimeout)
		defer cancel()
	}

	if err := conn.Connect(dialCtx); err != nil {
		return nil, err
	}

	return conn, nil
}

// signalContext is cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
