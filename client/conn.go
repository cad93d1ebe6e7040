package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/goxlr/protocol"
	"github.com/luma/goxlr/transport"
)

// Conn is a single connection to the daemon.
//
// Any number of goroutines may call Send at the same time. Replies are matched
// back to their caller by identifier, so they can arrive in any order. Patches
// the daemon pushes on its own are read with ReceivePush or Pushes.
//
// A Conn is used once: after it closes, make a new one.
type Conn struct {
	url     string
	session string
	opts    Options

	stateMu        sync.Mutex
	state          State
	closeRequested bool
	closeErr       error
	writeErr       error

	sock    transport.Socket
	writeMu sync.Mutex
	dialer  transport.Dialer

	idMu   sync.Mutex
	lastID protocol.ID

	registry  *Registry
	pushes    *PushQueue
	keepalive *Keepalive

	done chan struct{}

	metrics *Metrics
	log     *zap.Logger
}

func New(options Options) *Conn {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.KeepaliveInterval == 0 {
		options.KeepaliveInterval = DefaultKeepaliveInterval
	}

	if options.Dialer == nil {
		options.Dialer = transport.NewWebSocketDialer(transport.Options{
			WriteTimeout: options.WriteTimeout,
			Trace:        options.Trace,
			Log:          options.Log.Named("socket"),
		})
	}

	url := options.URL()
	session := uuid.NewString()
	log := options.Log.With(zap.String("url", url), zap.String("session", session))
	metrics := NewMetrics(options.Registerer)

	c := &Conn{
		url:      url,
		session:  session,
		opts:     options,
		state:    Disconnected,
		dialer:   options.Dialer,
		registry: NewRegistry(options.MaxParked, log.Named("registry")),
		pushes:   NewPushQueue(options.PushBuffer, metrics.PushesDropped.Inc),
		done:     make(chan struct{}),
		metrics:  metrics,
		log:      log,
	}

	c.keepalive = NewKeepalive(options.KeepaliveInterval, c.ping, log.Named("keepalive"))

	return c
}

// Connect opens the socket and starts the read loop and keepalive. If it fails
// the Conn is left Disconnected and Connect can be called again.
func (c *Conn) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state != Disconnected {
		state := c.state
		c.stateMu.Unlock()
		return &StateError{Op: "connect", State: state}
	}

	c.state = Connecting
	c.stateMu.Unlock()

	c.log.Info("Connecting")

	sock, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setState(Disconnected)
		c.log.Warn("Failed to connect", zap.Error(err))
		return &ConnectionError{URL: c.url, Err: err}
	}

	c.stateMu.Lock()
	c.sock = sock
	c.state = Open
	c.stateMu.Unlock()

	go c.readLoop()
	c.keepalive.Start()

	c.log.Info("Connected")

	return nil
}

// Send sends payload to the daemon and waits for the reply.
//
// Successful replies, including KindOk, are returned as is. An error reply is
// returned as a *DaemonError and a reply we couldn't decode as a
// *ProtocolError. If the connection closes first the error is a
// *ConnectionClosedError, and if ctx (or Options.RequestTimeout) expires it's a
// *TimeoutError. If ctx expires before the daemon has taken the request off the
// socket, the connection is closed too.
func (c *Conn) Send(ctx context.Context, payload interface{}) (*protocol.Frame, error) {
	if state := c.State(); state != Open {
		return nil, &StateError{Op: "send", State: state}
	}

	w, err := c.allocate()
	if err != nil {
		return nil, err
	}

	id := w.ID()

	data, err := protocol.Encode(id, payload)
	if err != nil {
		c.registry.Cancel(id)
		return nil, err
	}

	c.metrics.Pending.Inc()
	defer c.metrics.Pending.Dec()

	if c.opts.RequestTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
			defer cancel()
		}
	}

	if err := c.writeContext(ctx, data); err != nil {
		c.registry.Cancel(id)

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.metrics.request(outcomeTimeout)
			return nil, &TimeoutError{ID: id}

		case errors.Is(err, context.Canceled):
			c.metrics.request(outcomeCancelled)
			return nil, err

		default:
			c.metrics.request(outcomeClosed)
			return nil, &ConnectionClosedError{Err: err}
		}
	}

	frame, err := w.Wait(ctx)
	if err != nil {
		c.metrics.request(outcomeFor(err))
		return nil, err
	}

	switch frame.Kind {
	case protocol.KindError:
		c.metrics.request(outcomeDaemonError)
		return nil, &DaemonError{ID: id, Message: frame.Message}

	case protocol.KindInvalid:
		c.metrics.request(outcomeProtocol)
		return nil, &ProtocolError{ID: id, Err: frame.Err}

	default:
		c.metrics.request(outcomeOk)
		return frame, nil
	}
}

// ReceivePush waits for the next batch of patches pushed by the daemon.
func (c *Conn) ReceivePush(ctx context.Context) ([]protocol.PatchOp, error) {
	return c.pushes.Receive(ctx)
}

// Pushes exposes pushed patches as a channel, it's closed when the Conn closes.
func (c *Conn) Pushes() <-chan []protocol.PatchOp {
	return c.pushes.C()
}

// DroppedPushes is how many patch batches were lost because nobody read them
// in time.
func (c *Conn) DroppedPushes() uint64 {
	return c.pushes.Dropped()
}

// Close closes the connection. Requests still waiting for a reply fail with a
// ConnectionClosedError. Close blocks until the read loop has exited.
func (c *Conn) Close() error {
	c.stateMu.Lock()

	switch c.state {
	case Disconnected:
		c.state = Closed
		c.stateMu.Unlock()

		c.registry.AbortAll(&ConnectionClosedError{})
		c.pushes.Close()
		close(c.done)
		return nil

	case Connecting:
		c.stateMu.Unlock()
		return &StateError{Op: "close", State: Connecting}

	case Closing, Closed:
		c.stateMu.Unlock()
		<-c.done
		return nil
	}

	c.closeRequested = true
	sock := c.sock
	c.stateMu.Unlock()

	c.log.Info("Closing")

	// The read loop notices the socket going away and tears everything down
	if err := sock.Close(); err != nil {
		c.log.Debug("Socket did not close cleanly", zap.Error(err))
	}

	<-c.done

	return nil
}

// Session identifies this connection in the logs.
func (c *Conn) Session() string {
	return c.session
}

// Metrics exposes the connection's Prometheus metrics.
func (c *Conn) Metrics() *Metrics {
	return c.metrics
}

func (c *Conn) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	return c.state
}

// Done is closed once the connection is Closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err is why the connection closed. It's nil while the connection is open and
// after Close.
func (c *Conn) Err() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	return c.closeErr
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	var cause error

	for {
		data, err := c.sock.ReadMessage()
		if err != nil {
			cause = err
			break
		}

		if err := c.dispatch(data, log); err != nil {
			log.Error("Daemon and client are out of sync, closing", zap.Error(err))
			cause = err
			break
		}
	}

	c.teardown(cause, log)
}

// dispatch routes a single inbound frame. It only returns an error when the
// connection can't continue.
func (c *Conn) dispatch(data []byte, log *zap.Logger) error {
	frame, err := protocol.Decode(data)
	if err != nil {
		// A reply we can't read is the caller's problem, as long as there is
		// one. Anything else means we've lost track of the conversation.
		if frame == nil || frame.ID.Reserved() || !c.registry.Waiting(frame.ID) {
			protoErr := &ProtocolError{Err: err}
			if frame != nil {
				protoErr.ID = frame.ID
			}

			return protoErr
		}
	}

	class := frame.ID.Class()
	c.metrics.frame(class)

	switch class {
	case protocol.ClassKeepalive:
		c.registry.Deliver(frame)

	case protocol.ClassNotification:
		if frame.Kind != protocol.KindPatch {
			log.Warn("Ignoring notification that isn't a patch", zap.String("kind", string(frame.Kind)))
			return nil
		}

		if c.pushes.Push(frame.Patch) {
			log.Debug("Patch buffer is full, dropped the oldest batch",
				zap.Uint64("dropped", c.pushes.Dropped()))
		}

	default:
		if disposition := c.registry.Deliver(frame); disposition != Delivered {
			log.Debug("Reply arrived with nobody waiting",
				zap.Stringer("id", frame.ID),
				zap.Stringer("disposition", disposition))
		}
	}

	return nil
}

func (c *Conn) teardown(cause error, log *zap.Logger) {
	c.stateMu.Lock()
	c.state = Closing
	requested := c.closeRequested
	if c.writeErr != nil {
		cause = c.writeErr
	}
	c.stateMu.Unlock()

	closedErr := &ConnectionClosedError{}
	if !requested {
		closedErr.Err = cause
		log.Warn("Lost connection to the daemon", zap.Error(cause))
	}

	err := c.sock.Close()
	c.registry.AbortAll(closedErr)
	c.keepalive.Stop()
	c.pushes.Close()

	if err != nil && !requested {
		log.Debug("Socket did not close cleanly", zap.Error(multierr.Append(cause, err)))
	}

	c.stateMu.Lock()
	c.state = Closed
	if !requested {
		c.closeErr = closedErr
	}
	c.stateMu.Unlock()

	close(c.done)

	log.Info("Connection closed")
}

// allocate picks the next free request id and registers it.
func (c *Conn) allocate() (*Waiter, error) {
	c.idMu.Lock()
	defer c.idMu.Unlock()

	for {
		c.lastID++
		if c.lastID.Reserved() {
			// Wrap around instead of overflowing, skipping the keepalive id
			c.lastID = 1
		}

		w, err := c.registry.Register(c.lastID)
		if err == nil {
			return w, nil
		}

		var dup *DuplicateIdentifierError
		if !errors.As(err, &dup) {
			return nil, err
		}
	}
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.sock.WriteMessage(data); err != nil {
		c.abandon(err)
		return err
	}

	return nil
}

// writeContext is write, except it stops waiting when ctx ends. A frame that
// was only partly written leaves the socket unusable, so the connection is
// closed in that case as well.
func (c *Conn) writeContext(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	written := make(chan error, 1)
	go func() {
		written <- c.write(data)
	}()

	select {
	case err := <-written:
		return err

	case <-ctx.Done():
		select {
		case err := <-written:
			if err != nil {
				return err
			}
		default:
			c.abandon(ctx.Err())
		}

		return ctx.Err()
	}
}

// abandon closes the socket after a failed or stalled write. The read loop
// sees it go and tears the connection down.
func (c *Conn) abandon(cause error) {
	c.stateMu.Lock()
	if c.state != Open || c.writeErr != nil {
		c.stateMu.Unlock()
		return
	}

	c.writeErr = cause
	sock := c.sock
	c.stateMu.Unlock()

	c.log.Warn("Write to the daemon failed, closing", zap.Error(cause))

	if err := sock.Close(); err != nil {
		c.log.Debug("Socket did not close cleanly", zap.Error(err))
	}
}

func (c *Conn) ping() error {
	data, err := protocol.Encode(protocol.KeepaliveID, protocol.Ping)
	if err != nil {
		return err
	}

	if err := c.write(data); err != nil {
		return err
	}

	c.metrics.Keepalives.Inc()
	return nil
}

func (c *Conn) setState(state State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.state = state
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrConnectionClosed):
		return outcomeClosed
	default:
		return outcomeCancelled
	}
}
