package events

import (
	"sync"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

// Bus is the typed in-process channel between UI surfaces: a notification can
// instruct the floating widget to open a conversation without either side
// knowing about the other. Both subscribe topics return an unsubscribe func.
type Bus struct {
	mu         sync.RWMutex
	nextID     int
	newMessage map[int]func(model.Message)
	openChat   map[int]func(peerID string)
}

func NewBus() *Bus {
	return &Bus{
		newMessage: make(map[int]func(model.Message)),
		openChat:   make(map[int]func(string)),
	}
}

func (b *Bus) SubscribeNewMessage(fn func(model.Message)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.newMessage[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.newMessage, id)
		b.mu.Unlock()
	}
}

func (b *Bus) SubscribeOpenChat(fn func(peerID string)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.openChat[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.openChat, id)
		b.mu.Unlock()
	}
}

func (b *Bus) PublishNewMessage(m model.Message) {
	b.mu.RLock()
	handlers := make([]func(model.Message), 0, len(b.newMessage))
	for _, fn := range b.newMessage {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(m)
	}
}

func (b *Bus) PublishOpenChat(peerID string) {
	b.mu.RLock()
	handlers := make([]func(string), 0, len(b.openChat))
	for _, fn := range b.openChat {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(peerID)
	}
}
