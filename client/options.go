package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luma/goxlr/transport"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 14564
)

type Options struct {
	// Host the daemon is running on
	Host string

	// Port the daemon is listening on
	Port int

	// KeepaliveInterval is how often we ping the daemon. Zero uses
	// DefaultKeepaliveInterval, a negative value disables keepalives.
	KeepaliveInterval time.Duration

	// RequestTimeout is applied to Send when the caller's context has no
	// deadline of its own. Zero means wait forever.
	RequestTimeout time.Duration

	// WriteTimeout bounds a single write to the daemon. A write that times out
	// closes the connection. Zero uses transport.DefaultWriteTimeout, a
	// negative value disables it. Ignored when Dialer is set.
	WriteTimeout time.Duration

	// PushBuffer is how many patch batches are held for ReceivePush
	PushBuffer int

	// MaxParked is how many unclaimed replies are held before the oldest is dropped
	MaxParked int

	// Dialer opens the socket. Defaults to a websocket dialer.
	Dialer transport.Dialer

	// Registerer is where the connection's metrics are registered. Nil leaves
	// them unregistered.
	Registerer prometheus.Registerer

	// Trace will dump frames to the debug log. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

// URL is the websocket URL these options point at.
func (o Options) URL() string {
	host := o.Host
	if host == "" {
		host = DefaultHost
	}

	port := o.Port
	if port == 0 {
		port = DefaultPort
	}

	return transport.URL(host, port)
}
