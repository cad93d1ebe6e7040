package protocol

import (
	"math"
	"strconv"
)

// ID correlates a request with its reply. IDs are only meaningful for the
// lifetime of a single connection.
type ID uint64

const (
	// KeepaliveID is used for keepalive pings and their acks.
	KeepaliveID ID = 0

	// NotificationID is used for patches pushed by the daemon.
	NotificationID ID = math.MaxUint64
)

// IDClass says which of the three identifier spaces an ID belongs to.
type IDClass int

const (
	ClassRequest IDClass = iota
	ClassKeepalive
	ClassNotification
)

func (c IDClass) String() string {
	switch c {
	case ClassKeepalive:
		return "keepalive"
	case ClassNotification:
		return "notification"
	default:
		return "request"
	}
}

// Class resolves which identifier space id belongs to.
func (id ID) Class() IDClass {
	switch id {
	case KeepaliveID:
		return ClassKeepalive
	case NotificationID:
		return ClassNotification
	default:
		return ClassRequest
	}
}

// Reserved returns true if id can never be allocated to a request.
func (id ID) Reserved() bool {
	return id.Class() != ClassRequest
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
