package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second

	// DefaultReadLimit bounds a single inbound message. Status snapshots for
	// several mixers can be large so this is generous.
	DefaultReadLimit = 16 << 20
)

type Options struct {
	// HandshakeTimeout bounds the websocket upgrade
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single write. Zero uses DefaultWriteTimeout, a
	// negative value disables the deadline
	WriteTimeout time.Duration

	// ReadLimit is the largest message we are willing to read
	ReadLimit int64

	// Trace will dump frames to the debug log. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}
