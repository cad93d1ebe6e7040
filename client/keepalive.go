package client

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultKeepaliveInterval matches what the daemon's own UI uses.
const DefaultKeepaliveInterval = 5 * time.Second

// Keepalive pings the daemon on a fixed interval, regardless of what else is
// happening on the connection. It never waits for the ack, those are dropped by
// the read loop.
type Keepalive struct {
	interval time.Duration
	ping     func() error

	started  int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	log *zap.Logger
}

// NewKeepalive returns a Keepalive that calls ping every interval. An interval
// of zero or less disables it.
func NewKeepalive(interval time.Duration, ping func() error, log *zap.Logger) *Keepalive {
	if log == nil {
		log = zap.NewNop()
	}

	return &Keepalive{
		interval: interval,
		ping:     ping,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (k *Keepalive) Start() {
	if !atomic.CompareAndSwapInt32(&k.started, 0, 1) {
		return
	}

	if k.interval <= 0 {
		k.log.Info("Keepalive disabled")
		close(k.done)
		return
	}

	go k.run()
}

// Stop stops the ticker and waits for an in progress ping to finish.
func (k *Keepalive) Stop() {
	k.stopOnce.Do(func() {
		close(k.stop)
	})

	if atomic.LoadInt32(&k.started) == 1 {
		<-k.done
	}
}

// Done is closed once the keepalive has stopped, either because Stop was
// called or because a ping failed.
func (k *Keepalive) Done() <-chan struct{} {
	return k.done
}

func (k *Keepalive) run() {
	defer close(k.done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return

		case <-ticker.C:
			if err := k.ping(); err != nil {
				// The read loop owns reporting connection failures
				k.log.Debug("Keepalive failed, stopping", zap.Error(err))
				return
			}
		}
	}
}
