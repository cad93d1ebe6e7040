package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/goxlr/protocol"
)

// DefaultMaxParked bounds how many unclaimed replies a Registry holds on to.
const DefaultMaxParked = 64

// Disposition is what Deliver did with a frame.
type Disposition int

const (
	// Delivered means the frame woke a waiter.
	Delivered Disposition = iota

	// Parked means nobody was waiting, the frame is held for a later Claim.
	Parked

	// Discarded means the frame was dropped. Frames on reserved ids and
	// frames that arrive after AbortAll end up here.
	Discarded
)

func (d Disposition) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Parked:
		return "parked"
	default:
		return "discarded"
	}
}

// Waiter is a single caller's claim on the reply for one identifier.
type Waiter struct {
	id       protocol.ID
	registry *Registry

	// frame has room for exactly one reply so Deliver never blocks.
	frame     chan *protocol.Frame
	claimed   bool
	delivered bool
}

func (w *Waiter) ID() protocol.ID {
	return w.id
}

// Wait blocks until the reply for this waiter's identifier arrives. See
// Registry.Claim.
func (w *Waiter) Wait(ctx context.Context) (*protocol.Frame, error) {
	return w.registry.Claim(ctx, w.id)
}

// Registry matches inbound replies to the callers waiting for them.
//
// Replies may arrive before or after their caller starts waiting, and in any
// order relative to each other. A reply nobody is waiting for yet is parked
// until it is claimed.
type Registry struct {
	mu        sync.Mutex
	waiters   map[protocol.ID]*Waiter
	parked    map[protocol.ID]*protocol.Frame
	parkOrder []protocol.ID
	maxParked int

	// aborted is closed by AbortAll, which wakes every waiter at once.
	aborted  chan struct{}
	abortErr error

	log *zap.Logger
}

func NewRegistry(maxParked int, log *zap.Logger) *Registry {
	if maxParked < 1 {
		maxParked = DefaultMaxParked
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Registry{
		waiters:   make(map[protocol.ID]*Waiter),
		parked:    make(map[protocol.ID]*protocol.Frame),
		maxParked: maxParked,
		aborted:   make(chan struct{}),
		log:       log,
	}
}

// Register reserves id for a new request.
func (r *Registry) Register(id protocol.ID) (*Waiter, error) {
	if id.Reserved() {
		return nil, fmt.Errorf("Cannot register %s: %w", id, ErrReservedIdentifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.abortErr != nil {
		return nil, r.abortErr
	}

	if _, ok := r.waiters[id]; ok {
		return nil, &DuplicateIdentifierError{ID: id}
	}

	if _, ok := r.parked[id]; ok {
		return nil, &DuplicateIdentifierError{ID: id, Parked: true}
	}

	return r.addWaiter(id), nil
}

// Claim returns the reply for id, waiting for it if it hasn't arrived yet.
//
// A parked reply is handed over straight away and forgotten, so each reply is
// claimed at most once. If ctx expires first the registration is removed, a
// reply that turns up later is parked for whoever claims id next, and Claim
// returns a TimeoutError. If the registry is aborted Claim returns the abort
// error.
func (r *Registry) Claim(ctx context.Context, id protocol.ID) (*protocol.Frame, error) {
	if id.Reserved() {
		return nil, fmt.Errorf("Cannot claim %s: %w", id, ErrReservedIdentifier)
	}

	r.mu.Lock()

	if r.abortErr != nil {
		err := r.abortErr
		r.mu.Unlock()
		return nil, err
	}

	if frame, ok := r.parked[id]; ok {
		r.unpark(id)
		delete(r.waiters, id)
		r.mu.Unlock()
		return frame, nil
	}

	w, ok := r.waiters[id]
	if !ok {
		w = r.addWaiter(id)
	}

	if w.claimed {
		r.mu.Unlock()
		return nil, &DuplicateIdentifierError{ID: id}
	}

	w.claimed = true
	aborted := r.aborted
	r.mu.Unlock()

	select {
	case frame := <-w.frame:
		r.remove(w)
		return frame, nil

	case <-aborted:
		// A reply that beat the abort still wins
		select {
		case frame := <-w.frame:
			return frame, nil
		default:
		}

		return nil, r.err()

	case <-ctx.Done():
		r.remove(w)

		// Deliver may have handed us the frame just before we unregistered
		select {
		case frame := <-w.frame:
			return frame, nil
		default:
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{ID: id}
		}

		return nil, ctx.Err()
	}
}

// Deliver routes an inbound frame to whoever is waiting for it, or parks it.
//
// Frames on reserved identifiers are never parked and never reach a waiter.
func (r *Registry) Deliver(frame *protocol.Frame) Disposition {
	if frame.ID.Reserved() {
		return Discarded
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.abortErr != nil {
		return Discarded
	}

	if w, ok := r.waiters[frame.ID]; ok {
		if w.delivered {
			r.log.Warn("Dropping duplicate reply", zap.Stringer("id", frame.ID))
			return Discarded
		}

		// The waiter stays registered until it picks the frame up, so a
		// Claim that hasn't started yet still finds it.
		w.delivered = true
		w.frame <- frame
		return Delivered
	}

	if _, ok := r.parked[frame.ID]; ok {
		// A well behaved daemon never does this. Keep the newest.
		r.log.Warn("Replacing unclaimed reply", zap.Stringer("id", frame.ID))
		r.parked[frame.ID] = frame
		return Parked
	}

	if len(r.parked) >= r.maxParked {
		oldest := r.parkOrder[0]
		r.unpark(oldest)
		r.log.Warn("Too many unclaimed replies, dropping the oldest",
			zap.Stringer("id", oldest),
			zap.Int("maxParked", r.maxParked))
	}

	r.parked[frame.ID] = frame
	r.parkOrder = append(r.parkOrder, frame.ID)

	return Parked
}

// Cancel forgets id, whether it's waiting or holding a parked reply.
func (r *Registry) Cancel(id protocol.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.waiters, id)
	if _, ok := r.parked[id]; ok {
		r.unpark(id)
	}
}

// AbortAll resolves every outstanding waiter with err and drops all parked
// replies. Every later Register or Claim also fails with err. Only the first
// call has any effect.
func (r *Registry) AbortAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.abortErr != nil {
		return
	}

	if err == nil {
		err = &ConnectionClosedError{}
	}

	r.abortErr = err
	r.waiters = make(map[protocol.ID]*Waiter)
	r.parked = make(map[protocol.ID]*protocol.Frame)
	r.parkOrder = nil

	close(r.aborted)
}

// Waiting returns true if a caller is registered for id.
func (r *Registry) Waiting(id protocol.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.waiters[id]
	return ok
}

// Len returns how many callers are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.waiters)
}

// ParkedLen returns how many replies are parked.
func (r *Registry) ParkedLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.parked)
}

func (r *Registry) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.abortErr
}

func (r *Registry) remove(w *Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiters[w.id] == w {
		delete(r.waiters, w.id)
	}
}

// addWaiter must be called with mu held.
func (r *Registry) addWaiter(id protocol.ID) *Waiter {
	w := &Waiter{
		id:       id,
		registry: r,
		frame:    make(chan *protocol.Frame, 1),
	}

	r.waiters[id] = w
	return w
}

// unpark must be called with mu held.
func (r *Registry) unpark(id protocol.ID) {
	delete(r.parked, id)

	for i, parked := range r.parkOrder {
		if parked == id {
			r.parkOrder = append(r.parkOrder[:i], r.parkOrder[i+1:]...)
			return
		}
	}
}
