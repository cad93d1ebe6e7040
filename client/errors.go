package client

import (
	"errors"
	"fmt"

	"github.com/luma/goxlr/protocol"
)

var (
	ErrConnectionClosed    = errors.New("Connection closed")
	ErrTimeout             = errors.New("Timed out waiting for a reply")
	ErrNotOpen             = errors.New("Connection is not open")
	ErrDuplicateIdentifier = errors.New("Identifier is already pending")
	ErrReservedIdentifier  = errors.New("Identifier is reserved")
	ErrDaemon              = errors.New("Daemon returned an error")
	ErrProtocol            = errors.New("Daemon broke protocol")
)

// ConnectionError means we could not reach the daemon at all. It's safe to
// retry.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError means the daemon sent something that isn't a frame, or a reply
// we could not make sense of.
type ProtocolError struct {
	ID  protocol.ID
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("Protocol error on %s: %v", e.ID, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// DaemonError is an error the daemon reported for one specific request.
type DaemonError struct {
	ID      protocol.ID
	Message string
}

func (e *DaemonError) Error() string {
	return e.Message
}

func (e *DaemonError) Is(target error) bool {
	return target == ErrDaemon
}

// TimeoutError means the caller's deadline passed before the reply arrived.
type TimeoutError struct {
	ID protocol.ID
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timed out waiting for a reply to %s", e.ID)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ConnectionClosedError is handed to every request still waiting when the
// connection goes away. Err is why it went away, it's nil if we closed it.
type ConnectionClosedError struct {
	Err error
}

func (e *ConnectionClosedError) Error() string {
	if e.Err == nil {
		return ErrConnectionClosed.Error()
	}

	return fmt.Sprintf("%v: %v", ErrConnectionClosed, e.Err)
}

func (e *ConnectionClosedError) Unwrap() error {
	return e.Err
}

func (e *ConnectionClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// StateError is returned when an operation is attempted in the wrong
// connection state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("Cannot %s while %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrNotOpen
}

// DuplicateIdentifierError means an identifier is already waiting for, or
// holding, a reply.
type DuplicateIdentifierError struct {
	ID     protocol.ID
	Parked bool
}

func (e *DuplicateIdentifierError) Error() string {
	if e.Parked {
		return fmt.Sprintf("Identifier %s has an unclaimed reply", e.ID)
	}

	return fmt.Sprintf("Identifier %s is already pending", e.ID)
}

func (e *DuplicateIdentifierError) Is(target error) bool {
	return target == ErrDuplicateIdentifier
}
