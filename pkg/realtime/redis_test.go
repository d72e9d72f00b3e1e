package realtime

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

// No connection is opened here; forward only decodes and dispatches.
func newTestRedisChannel() *RedisChannel {
	return NewRedisChannel(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
}

func TestRedisChannelForwardsDecodedEvents(t *testing.T) {
	c := newTestRedisChannel()

	var got []model.Event
	c.forward("dm:alice:bob", func(ev model.Event) { got = append(got, ev) },
		[]byte(`{"type":"typing","scope":"dm:alice:bob","from":"bob","is_typing":true}`))

	require.Len(t, got, 1)
	assert.Equal(t, model.EventTyping, got[0].Type)
	assert.Equal(t, "bob", got[0].From)
	assert.True(t, got[0].IsTyping)
}

func TestRedisChannelDropsMalformedPayloads(t *testing.T) {
	c := newTestRedisChannel()

	var got []model.Event
	c.forward("dm:alice:bob", func(ev model.Event) { got = append(got, ev) },
		[]byte(`{"type":`))

	assert.Empty(t, got)
}
