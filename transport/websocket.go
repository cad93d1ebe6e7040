package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// closeGracePeriod is how long we wait to tell the daemon we're leaving.
const closeGracePeriod = time.Second

// WebSocketDialer dials the daemon with gorilla/websocket.
type WebSocketDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readLimit        int64
	trace            bool

	log *zap.Logger
}

func NewWebSocketDialer(options Options) *WebSocketDialer {
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if options.WriteTimeout == 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}

	if options.ReadLimit <= 0 {
		options.ReadLimit = DefaultReadLimit
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &WebSocketDialer{
		handshakeTimeout: options.HandshakeTimeout,
		writeTimeout:     options.WriteTimeout,
		readLimit:        options.ReadLimit,
		trace:            options.Trace,
		log:              options.Log,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("Failed to dial %s (status: %s): %w", url, resp.Status, err)
		}

		return nil, fmt.Errorf("Failed to dial %s: %w", url, err)
	}

	conn.SetReadLimit(d.readLimit)

	return &WebSocket{
		conn:         conn,
		writeTimeout: d.writeTimeout,
		trace:        d.trace,
		log:          d.log.With(zap.String("url", url)),
	}, nil
}

// WriteTimeout is the deadline applied to every write on sockets this dialer
// opens.
func (d *WebSocketDialer) WriteTimeout() time.Duration {
	return d.writeTimeout
}

// WebSocket is a Socket backed by a gorilla websocket connection.
type WebSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error

	trace bool
	log   *zap.Logger
}

// NewWebSocket wraps an already established connection, e.g. one accepted by
// an upgrader.
func NewWebSocket(conn *websocket.Conn, log *zap.Logger) *WebSocket {
	if log == nil {
		log = zap.NewNop()
	}

	return &WebSocket{conn: conn, log: log}
}

func (w *WebSocket) ReadMessage() ([]byte, error) {
	// gorilla only hands us text and binary messages, control frames are
	// handled internally.
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	if w.trace {
		w.log.Debug("READ", zap.ByteString("frame", data))
	}

	return data, nil
}

func (w *WebSocket) WriteMessage(data []byte) error {
	if w.trace {
		w.log.Debug("WRITE", zap.ByteString("frame", data))
	}

	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close says goodbye to the daemon, if it's still listening, and closes the
// underlying connection.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
			w.log.Debug("Failed to send close message", zap.Error(err))
		}

		w.closeErr = w.conn.Close()
	})

	return w.closeErr
}

var _ Socket = (*WebSocket)(nil)
var _ Dialer = (*WebSocketDialer)(nil)
