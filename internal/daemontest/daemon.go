// Package daemontest provides a scriptable stand in for the GoXLR Utility
// daemon. Tests read the requests a client sends and decide, frame by frame,
// what the daemon says back.
package daemontest

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luma/goxlr/protocol"
	"github.com/luma/goxlr/transport"
)

var (
	ErrNotConnected = errors.New("No client is connected")
	ErrTimeout      = errors.New("Timed out waiting for the client")
)

type Options struct {
	// IgnoreKeepalives stops the daemon from acking keepalive pings
	IgnoreKeepalives bool

	Log *zap.Logger
}

type Daemon struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	sock    *transport.WebSocket
	writeMu sync.Mutex

	connected  chan struct{}
	requests   chan *protocol.Frame
	keepalives int64

	ignoreKeepalives bool
	log              *zap.Logger
}

func New(options Options) *Daemon {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	d := &Daemon{
		connected:        make(chan struct{}, 16),
		requests:         make(chan *protocol.Frame, 128),
		ignoreKeepalives: options.IgnoreKeepalives,
		log:              options.Log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(transport.Path, d.serve)
	d.server = httptest.NewServer(mux)

	return d
}

func (d *Daemon) Host() string {
	return d.server.Listener.Addr().(*net.TCPAddr).IP.String()
}

func (d *Daemon) Port() int {
	return d.server.Listener.Addr().(*net.TCPAddr).Port
}

func (d *Daemon) URL() string {
	return transport.URL(d.Host(), d.Port())
}

// Keepalives is how many keepalive pings the daemon has seen.
func (d *Daemon) Keepalives() int {
	return int(atomic.LoadInt64(&d.keepalives))
}

// WaitForConnection blocks until a client has connected.
func (d *Daemon) WaitForConnection(timeout time.Duration) error {
	select {
	case <-d.connected:
		return nil
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// NextRequest returns the next non keepalive frame the client sent.
func (d *Daemon) NextRequest(timeout time.Duration) (*protocol.Frame, error) {
	select {
	case frame := <-d.requests:
		return frame, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// Send writes raw to the connected client.
func (d *Daemon) Send(raw []byte) error {
	d.mu.Lock()
	sock := d.sock
	d.mu.Unlock()

	if sock == nil {
		return ErrNotConnected
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	return sock.WriteMessage(raw)
}

func (d *Daemon) Reply(id protocol.ID, payload interface{}) error {
	return d.encodeAndSend(protocol.Encode(id, payload))
}

func (d *Daemon) ReplyOk(id protocol.ID) error {
	return d.encodeAndSend(protocol.EncodeOk(id))
}

func (d *Daemon) ReplyError(id protocol.ID, message string) error {
	return d.encodeAndSend(protocol.EncodeError(id, message))
}

func (d *Daemon) ReplyStatus(id protocol.ID, status json.RawMessage) error {
	return d.encodeAndSend(protocol.EncodeStatus(id, status))
}

// Push sends an unsolicited patch.
func (d *Daemon) Push(ops ...protocol.PatchOp) error {
	return d.encodeAndSend(protocol.EncodePatch(protocol.NotificationID, ops))
}

// Disconnect drops the current client.
func (d *Daemon) Disconnect() error {
	d.mu.Lock()
	sock := d.sock
	d.sock = nil
	d.mu.Unlock()

	if sock == nil {
		return ErrNotConnected
	}

	return sock.Close()
}

func (d *Daemon) Close() {
	_ = d.Disconnect()
	d.server.Close()
}

func (d *Daemon) encodeAndSend(raw []byte, err error) error {
	if err != nil {
		return err
	}

	return d.Send(raw)
}

func (d *Daemon) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Warn("Failed to upgrade", zap.Error(err))
		return
	}

	sock := transport.NewWebSocket(conn, d.log)

	d.mu.Lock()
	d.sock = sock
	d.mu.Unlock()

	d.connected <- struct{}{}

	defer sock.Close()

	for {
		data, err := sock.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			d.log.Warn("Client sent a malformed frame", zap.ByteString("frame", data), zap.Error(err))
			continue
		}

		if frame.ID == protocol.KeepaliveID {
			atomic.AddInt64(&d.keepalives, 1)

			if !d.ignoreKeepalives {
				if err := d.ReplyOk(protocol.KeepaliveID); err != nil {
					d.log.Debug("Failed to ack keepalive", zap.Error(err))
				}
			}

			continue
		}

		d.requests <- frame
	}
}
