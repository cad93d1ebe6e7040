package storage

import (
	"context"

	"github.com/luma/goxlr/protocol"
)

// Store holds a copy of the daemon's status and keeps it current by applying
// the patches the daemon pushes.
type Store interface {
	// Get returns the raw JSON at the JSON pointer path. The empty path is the
	// whole document.
	Get(ctx context.Context, path string) ([]byte, error)

	// Apply applies a batch of patch operations. Either every operation is
	// applied or none are.
	Apply(ctx context.Context, ops []protocol.PatchOp) error

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}

// Update describes one applied patch operation. Value is the new raw JSON at
// Path, it's nil when the operation removed Path.
type Update struct {
	Op    protocol.Op
	Path  string
	Value []byte
}
