package realtime

import (
	"context"
	"sync"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

type Handler func(ev model.Event)

// Channel is a broadcast scope for ephemeral events (typing, presence).
// Subscribe returns an unsubscribe func; every subscribe site must have a
// matching teardown site.
type Channel interface {
	Broadcast(ctx context.Context, ev model.Event) error
	Subscribe(scope string, h Handler) (func(), error)
}

// LocalChannel fans events out to in-process subscribers. Delivery is
// synchronous in the broadcaster's goroutine, so handlers must not broadcast
// while holding locks they also take in handlers.
type LocalChannel struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subs: make(map[string]map[int]Handler)}
}

func (c *LocalChannel) Broadcast(ctx context.Context, ev model.Event) error {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[ev.Scope]))
	for _, h := range c.subs[ev.Scope] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (c *LocalChannel) Subscribe(scope string, h Handler) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[scope] == nil {
		c.subs[scope] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.subs[scope][id] = h

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if handlers, ok := c.subs[scope]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(c.subs, scope)
			}
		}
	}, nil
}
