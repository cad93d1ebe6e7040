package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luma/goxlr/storage"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 14565
)

type Options struct {
	Host string
	Port int

	// NumListeners is how many SO_REUSEPORT listeners share the port. Zero
	// means one per CPU.
	NumListeners int

	// Daemon answers the requests that need a round trip to the daemon
	Daemon Daemon

	// Status is a mirror of the daemon status. When it's set status reads are
	// served from it and its updates are streamed on /updates.
	Status storage.Store

	// Gatherer backs /metrics, it defaults to the global Prometheus registry
	Gatherer prometheus.Gatherer

	// DebugHTTP puts gin into debug mode
	DebugHTTP bool

	Log *zap.Logger
}
