package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/luma/goxlr/protocol"
)

// DefaultPushBuffer is how many patch batches we hold for a slow consumer
// before dropping the oldest.
const DefaultPushBuffer = 64

// PushQueue buffers patches pushed by the daemon until someone reads them.
//
// Patches are best effort: when the buffer is full the oldest batch is dropped
// and counted. A consumer that sees Dropped move should fetch the full status
// again.
type PushQueue struct {
	ch chan []protocol.PatchOp

	dropped uint64
	onDrop  func()

	closeOnce sync.Once
}

func NewPushQueue(size int, onDrop func()) *PushQueue {
	if size < 1 {
		size = DefaultPushBuffer
	}

	if onDrop == nil {
		onDrop = func() {}
	}

	return &PushQueue{
		ch:     make(chan []protocol.PatchOp, size),
		onDrop: onDrop,
	}
}

// Push queues a batch, dropping the oldest queued batch if there's no room.
// It returns true if something was dropped.
//
// Push must only be called from one goroutine, and never after Close.
func (q *PushQueue) Push(batch []protocol.PatchOp) (dropped bool) {
	select {
	case q.ch <- batch:
		return false
	default:
	}

	select {
	case <-q.ch:
		q.drop()
		dropped = true
	default:
		// A reader got there first, there's room now
	}

	select {
	case q.ch <- batch:
	default:
		// Can't happen while there's only one producer but never block the
		// read loop on it.
		q.drop()
		dropped = true
	}

	return dropped
}

// Receive returns the next batch. Once the queue is closed and drained it
// returns a ConnectionClosedError.
func (q *PushQueue) Receive(ctx context.Context) ([]protocol.PatchOp, error) {
	select {
	case batch, ok := <-q.ch:
		if !ok {
			return nil, &ConnectionClosedError{}
		}

		return batch, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// C exposes the queue as a channel. It's closed when the connection closes.
func (q *PushQueue) C() <-chan []protocol.PatchOp {
	return q.ch
}

// Dropped is how many batches have been thrown away so far.
func (q *PushQueue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

// Len is how many batches are waiting to be read.
func (q *PushQueue) Len() int {
	return len(q.ch)
}

func (q *PushQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

func (q *PushQueue) drop() {
	atomic.AddUint64(&q.dropped, 1)
	q.onDrop()
}
