package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

func TestNewMessageFanOut(t *testing.T) {
	bus := NewBus()

	var got []int64
	bus.SubscribeNewMessage(func(m model.Message) { got = append(got, m.ID) })
	bus.SubscribeNewMessage(func(m model.Message) { got = append(got, m.ID) })

	bus.PublishNewMessage(model.Message{ID: 7})
	assert.Equal(t, []int64{7, 7}, got)
}

func TestOpenChat(t *testing.T) {
	bus := NewBus()

	var peer string
	bus.SubscribeOpenChat(func(p string) { peer = p })

	bus.PublishOpenChat("bob")
	assert.Equal(t, "bob", peer)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.SubscribeNewMessage(func(model.Message) { calls++ })

	bus.PublishNewMessage(model.Message{ID: 1})
	unsub()
	bus.PublishNewMessage(model.Message{ID: 2})

	assert.Equal(t, 1, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.PublishNewMessage(model.Message{ID: 1})
		bus.PublishOpenChat("bob")
	})
}
