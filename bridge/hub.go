package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/luma/goxlr/storage"
)

// SubscriberBufferSize is how many updates a slow /updates client can fall
// behind by before it starts missing them.
const SubscriberBufferSize = 255

// hub fans store updates out to every /updates subscriber.
type hub struct {
	mu     sync.Mutex
	subs   map[chan *storage.Update]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{
		subs: make(map[chan *storage.Update]struct{}),
	}
}

func (h *hub) subscribe() chan *storage.Update {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := make(chan *storage.Update, SubscriberBufferSize)
	if h.closed {
		close(sub)
		return sub
	}

	h.subs[sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(sub chan *storage.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub)
	}
}

// run forwards updates until the channel closes. It never blocks on a
// subscriber, a full subscriber misses the update.
func (h *hub) run(updates <-chan *storage.Update, onErr func(error)) {
	for update := range updates {
		if err := h.write(update); err != nil {
			onErr(err)
		}
	}

	h.close()
}

func (h *hub) write(update *storage.Update) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub <- update:
		default:
			err = multierr.Append(err, fmt.Errorf("Subscriber is full, dropped update to %s", update.Path))
		}
	}

	return err
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub)
	}
}
