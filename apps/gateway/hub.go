package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
	"github.com/cohort-labs/messaging-core/pkg/snowflake"
)

const presenceTTL = 30 * time.Second // one missed heartbeat cycle

// fanoutRetryWait paces fanout retries after a consumer read error.
var fanoutRetryWait = 1 * time.Second

// eventReader is the slice of kafka.Reader the fanout loop uses.
type eventReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Hub struct {
	clients     map[string]map[*Client]bool // scope -> clients
	userClients map[string]map[*Client]bool // user_id -> clients (global tracking)
	broadcast   chan model.Event
	register    chan *Client
	unregister  chan *Client
	mu          sync.RWMutex
	producer    *kafka.Writer
	redis       *redis.Client
	snowflake   *snowflake.Node
}

func NewHub(kafkaBrokers []string, topic string, redisAddr string) *Hub {
	producer := &kafka.Writer{
		Addr:     kafka.TCP(kafkaBrokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Consumer for fanout. Unique group per instance so every gateway sees
	// every event.
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		Topic:       topic,
		GroupID:     "gateway-group-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})

	// Node ID should be unique per instance in production (env var or
	// service discovery).
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	h := &Hub{
		broadcast:   make(chan model.Event),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[string]map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		producer:    producer,
		redis:       rdb,
		snowflake:   node,
	}

	go h.fanout(consumer)
	return h
}

// fanout routes events read back from Kafka to connected clients. DM scopes
// route to both participants globally so a widget hears about conversations
// it has not joined yet.
func (h *Hub) fanout(consumer eventReader) {
	defer consumer.Close()
	for {
		m, err := consumer.ReadMessage(context.Background())
		if err != nil {
			log.Printf("Gateway fanout error: %v. Retrying in %v...", err, fanoutRetryWait)
			time.Sleep(fanoutRetryWait)
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Failed to unmarshal event from Kafka: %v", err)
			continue
		}

		// Full lock: deliver evicts slow clients from the maps.
		h.mu.Lock()
		if u1, u2, ok := realtime.ScopeMembers(ev.Scope); ok {
			for _, userID := range []string{u1, u2} {
				h.deliver(h.userClients[userID], m.Value)
			}
		} else {
			h.deliver(h.clients[ev.Scope], m.Value)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) deliver(clients map[*Client]bool, payload []byte) {
	for client := range clients {
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) Run() {
	defer h.producer.Close()
	defer h.redis.Close()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Scope] == nil {
				h.clients[client.Scope] = make(map[*Client]bool)
			}
			h.clients[client.Scope][client] = true

			if h.userClients[client.ID] == nil {
				h.userClients[client.ID] = make(map[*Client]bool)
			}
			h.userClients[client.ID][client] = true
			h.mu.Unlock()

			h.touchPresence(client)
			log.Printf("Client registered: %s in scope %s", client.ID, client.Scope)

			onlineAt := time.Now().UTC()
			go func() {
				h.broadcast <- model.Event{
					Type:     model.EventPresence,
					Scope:    client.Scope,
					From:     client.ID,
					Content:  model.PresenceJoin,
					OnlineAt: &onlineAt,
				}
			}()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Scope]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.Scope)
					}

					ctx := context.Background()
					if err := h.redis.SRem(ctx, "scope:"+client.Scope+":users", client.ID).Err(); err != nil {
						log.Printf("Failed to delete presence for %s: %v", client.ID, err)
					}
					log.Printf("Client unregistered: %s from scope %s", client.ID, client.Scope)

					go func() {
						h.broadcast <- model.Event{
							Type:    model.EventPresence,
							Scope:   client.Scope,
							From:    client.ID,
							Content: model.PresenceLeave,
						}
					}()
				}
			}

			if clients, ok := h.userClients[client.ID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.userClients, client.ID)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now().UTC()
			}

			// Durable messages get their identity here, before anything
			// downstream sees them.
			if ev.Type == model.EventMessage {
				receiver := ""
				if u1, u2, ok := realtime.ScopeMembers(ev.Scope); ok {
					receiver = u1
					if receiver == ev.From {
						receiver = u2
					}
				}
				ev.Message = &model.Message{
					ID:         h.snowflake.Generate(),
					SenderID:   ev.From,
					ReceiverID: receiver,
					Content:    ev.Content,
					SentAt:     ev.Timestamp,
				}
			}

			jsonEv, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				continue
			}

			err = h.producer.WriteMessages(context.Background(),
				kafka.Message{
					Value: jsonEv,
					Time:  time.Now(),
				},
			)
			if err != nil {
				log.Printf("Failed to write event to Kafka: %v", err)
			}
		}
	}
}

// touchPresence records the client in the scope roster and refreshes the
// per-user liveness key. The key expires after one missed heartbeat.
func (h *Hub) touchPresence(client *Client) {
	ctx := context.Background()
	if err := h.redis.SAdd(ctx, "scope:"+client.Scope+":users", client.ID).Err(); err != nil {
		log.Printf("Failed to set presence for %s: %v", client.ID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.redis.Set(ctx, "presence:user:"+client.ID, now, presenceTTL).Err(); err != nil {
		log.Printf("Failed to refresh liveness for %s: %v", client.ID, err)
	}
}

// sendSync answers a sync_request with the authoritative roster snapshot,
// written directly to the requesting client.
func (h *Hub) sendSync(client *Client) {
	ctx := context.Background()
	users, err := h.redis.SMembers(ctx, "scope:"+client.Scope+":users").Result()
	if err != nil {
		log.Printf("Failed to fetch roster for %s: %v", client.Scope, err)
		return
	}

	roster := make([]model.PresencePayload, 0, len(users))
	for _, userID := range users {
		raw, err := h.redis.Get(ctx, "presence:user:"+userID).Result()
		if err != nil {
			continue // liveness key expired: not online
		}
		onlineAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		roster = append(roster, model.PresencePayload{UserID: userID, OnlineAt: onlineAt})
	}

	ev := model.Event{
		Type:      model.EventPresence,
		Scope:     client.Scope,
		Content:   model.PresenceSync,
		Roster:    roster,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal sync event: %v", err)
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}
