package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

// RedisChannel carries scope events over Redis pub/sub so typing and presence
// signals reach subscribers on other processes.
type RedisChannel struct {
	rdb *redis.Client
}

func NewRedisChannel(rdb *redis.Client) *RedisChannel {
	return &RedisChannel{rdb: rdb}
}

func (c *RedisChannel) Broadcast(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, "scope:"+ev.Scope, payload).Err()
}

func (c *RedisChannel) Subscribe(scope string, h Handler) (func(), error) {
	sub := c.rdb.Subscribe(context.Background(), "scope:"+scope)
	if _, err := sub.Receive(context.Background()); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		for m := range sub.Channel() {
			c.forward(scope, h, []byte(m.Payload))
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			log.Printf("Failed to close subscription for %s: %v", scope, err)
		}
	}, nil
}

// forward decodes one pub/sub payload and hands it to the subscriber.
// Malformed payloads are dropped.
func (c *RedisChannel) forward(scope string, h Handler, payload []byte) {
	var ev model.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("Dropping malformed scope event on %s: %v", scope, err)
		return
	}
	h(ev)
}
