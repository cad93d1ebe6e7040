package client

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/luma/goxlr/protocol"
	"github.com/luma/goxlr/storage"
)

// StatusSource is the part of Conn a Mirror needs.
type StatusSource interface {
	GetStatus(ctx context.Context) (json.RawMessage, error)
	ReceivePush(ctx context.Context) ([]protocol.PatchOp, error)
	DroppedPushes() uint64
}

// Mirror keeps a Store in step with the daemon's status.
//
// It starts from a full snapshot and then applies every patch the daemon
// pushes. Patches are best effort, so whenever one is lost or doesn't apply
// cleanly the Mirror fetches a fresh snapshot instead.
type Mirror struct {
	source StatusSource
	store  storage.Store

	log *zap.Logger
}

func NewMirror(source StatusSource, store storage.Store, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}

	return &Mirror{
		source: source,
		store:  store,
		log:    log,
	}
}

// Sync replaces the store's contents with a fresh snapshot.
func (m *Mirror) Sync(ctx context.Context) error {
	status, err := m.source.GetStatus(ctx)
	if err != nil {
		return err
	}

	return m.store.Restore(status)
}

// Run syncs and then applies patches until ctx is cancelled or the connection
// closes.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}

	dropped := m.source.DroppedPushes()

	for {
		ops, err := m.source.ReceivePush(ctx)
		if err != nil {
			return err
		}

		if current := m.source.DroppedPushes(); current != dropped {
			m.log.Warn("Missed patches, fetching the full status",
				zap.Uint64("dropped", current-dropped))

			dropped = current
			if err := m.Sync(ctx); err != nil {
				return err
			}

			continue
		}

		if err := m.store.Apply(ctx, ops); err != nil {
			m.log.Warn("Patch did not apply, fetching the full status", zap.Error(err))

			if err := m.Sync(ctx); err != nil {
				return err
			}
		}
	}
}
