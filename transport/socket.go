package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Path is where the daemon serves its websocket.
const Path = "/api/websocket"

// Socket is a message oriented connection to the daemon.
//
// ReadMessage may be called from one goroutine while WriteMessage is called
// from another, but callers must serialise their own writes. Close is safe to
// call at any time, from any goroutine, and more than once.
type Socket interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens Sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// URL builds the websocket URL for the daemon at host:port.
func URL(host string, port int) string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), Path)
}
