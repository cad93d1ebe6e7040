package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luma/goxlr/protocol"
)

// Ping asks the daemon to reply with Ok.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, protocol.Ping)
	return err
}

// GetStatus fetches the full daemon status snapshot.
func (c *Conn) GetStatus(ctx context.Context) (json.RawMessage, error) {
	frame, err := c.Send(ctx, protocol.GetStatus)
	if err != nil {
		return nil, err
	}

	if frame.Kind != protocol.KindStatus {
		return nil, &ProtocolError{
			ID:  frame.ID,
			Err: fmt.Errorf("Expected a Status reply, got %s", frame.Kind),
		}
	}

	return frame.Data, nil
}

// Daemon sends a command to the daemon itself, e.g. "OpenUi".
func (c *Conn) Daemon(ctx context.Context, command interface{}) (*protocol.Frame, error) {
	return c.Send(ctx, protocol.NewDaemonCommand(command))
}

// Command sends a command to the device with the given serial number.
func (c *Conn) Command(ctx context.Context, serial string, command interface{}) (*protocol.Frame, error) {
	return c.Send(ctx, protocol.NewDeviceCommand(serial, command))
}
