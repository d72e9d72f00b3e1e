package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

type Consumer struct {
	reader *kafka.Reader
	store  *store.ScyllaStore
}

func NewConsumer(brokers []string, topic string, groupID string, st *store.ScyllaStore) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: r, store: st}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			log.Printf("Error reading event: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Failed to unmarshal event: %v", err)
			continue
		}

		switch ev.Type {
		case model.EventMessage:
			if ev.Message == nil {
				log.Printf("Message event without payload, skipping")
				continue
			}
			if err := c.store.Insert(ctx, *ev.Message); err != nil {
				log.Printf("Failed to save message %d: %v", ev.Message.ID, err)
			} else {
				log.Printf("Message saved: %d", ev.Message.ID)
			}

		case model.EventReadReceipt:
			if len(ev.MessageIDs) == 0 {
				continue
			}
			if err := c.store.MarkRead(ctx, ev.From, ev.MessageIDs); err != nil {
				log.Printf("Failed to mark %d messages read for %s: %v", len(ev.MessageIDs), ev.From, err)
			}

		default:
			// Typing and presence are ephemeral; never persisted.
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
