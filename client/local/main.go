package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cohort-labs/messaging-core/pkg/events"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/notify"
	"github.com/cohort-labs/messaging-core/pkg/presence"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
	"github.com/cohort-labs/messaging-core/pkg/store"
	"github.com/cohort-labs/messaging-core/pkg/surface"
)

// Runs the surface stack peer to peer over Redis pub/sub: typing, presence
// and message events cross processes without the gateway or Kafka. Start one
// instance per terminal with swapped -user/-peer flags.
func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	userID := flag.String("user", "user1", "user id")
	peerID := flag.String("peer", "user2", "user id to chat with")
	flag.Parse()

	ctx := context.Background()
	scope := realtime.Scope(*userID, *peerID)

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer rdb.Close()
	ch := realtime.NewRedisChannel(rdb)

	mem := store.NewMemoryStore()
	dir := store.NewMemoryDirectory(
		store.Profile{UserID: *userID, DisplayName: *userID},
		store.Profile{UserID: *peerID, DisplayName: *peerID},
	)
	bus := events.NewBus()

	// Local sends go out over the scope; each process keeps its own copy.
	mem.OnSend(func(m model.Message) {
		ev := model.Event{
			Type:      model.EventMessage,
			Scope:     scope,
			From:      m.SenderID,
			Message:   &m,
			Timestamp: m.SentAt,
		}
		if err := ch.Broadcast(ctx, ev); err != nil {
			log.Printf("Broadcast failed for %d: %v", m.ID, err)
		}
		bus.PublishNewMessage(m)
	})

	// Inbound messages from the peer's process land in the local store before
	// the surfaces hear about them.
	unsub, err := ch.Subscribe(scope, func(ev model.Event) {
		if ev.Type != model.EventMessage || ev.Message == nil || ev.Message.SenderID == *userID {
			return
		}
		mem.Seed(*ev.Message)
		fmt.Printf("\r%s: %s\n> ", ev.Message.SenderID, ev.Message.Content)
		bus.PublishNewMessage(*ev.Message)
	})
	if err != nil {
		log.Fatalf("Subscribe failed for %s: %v", scope, err)
	}
	defer unsub()

	tracker := presence.NewTracker(presence.DefaultConfig(*userID, scope), ch)
	if err := tracker.Subscribe(ctx); err == nil {
		defer tracker.Close()
	}

	// Starting the client counts as the priming gesture for the chime.
	sound := notify.SharedSound()
	sound.Prime()

	dispatcher := notify.NewDispatcher(*userID, dir, bus, func(n notify.Notification) {
		fmt.Printf("\r[%s] %s\n> ", n.Title, n.Body)
	})
	dispatcher.Start()
	defer dispatcher.Close()

	ctrl := surface.NewController(
		surface.Config{Kind: surface.KindWidget, UserID: *userID, Roster: []string{*peerID}},
		surface.Deps{Store: mem, Dir: dir, Channel: ch, Bus: bus, Presence: tracker},
	)
	ctrl.OnPeerTyping(func(peer string, isTyping bool) {
		if isTyping {
			fmt.Printf("\r%s is typing...\n> ", peer)
		}
	})
	defer dispatcher.RegisterView(ctrl)()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("Surface start failed: %v", err)
	}
	if err := ctrl.Open(ctx, *peerID); err != nil {
		log.Fatalf("Open %s failed: %v", *peerID, err)
	}
	defer ctrl.Close()

	fmt.Printf("Chatting with %s over %s. /status for presence, /quit to exit.\n> ", *peerID, scope)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
		case text == "/quit":
			return
		case text == "/status":
			fmt.Printf("%s is %s\n", *peerID, ctrl.PeerStatus(*peerID))
		default:
			ctrl.SetDraft(text)
			if _, err := ctrl.Send(ctx); err != nil {
				// The draft survives; retry by hitting enter on the same line.
				log.Printf("Send failed (draft kept): %v", err)
			}
		}
		fmt.Print("> ")
	}
}
