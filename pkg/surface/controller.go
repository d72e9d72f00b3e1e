package surface

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/cohort-labs/messaging-core/pkg/conversation"
	"github.com/cohort-labs/messaging-core/pkg/events"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/presence"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
	"github.com/cohort-labs/messaging-core/pkg/store"
	"github.com/cohort-labs/messaging-core/pkg/typing"
)

type Kind string

const (
	KindWidget Kind = "widget"
	KindInbox  Kind = "inbox"
)

var ErrNoActiveConversation = errors.New("no active conversation")

type Config struct {
	Kind   Kind
	UserID string
	// Roster lists peers shown even before any message exists.
	Roster []string
	Typing typing.Config
}

type Deps struct {
	Store    store.MessageStore
	Dir      store.Directory
	Channel  realtime.Channel
	Bus      *events.Bus
	Presence *presence.Tracker
}

// Controller is one chat surface (floating widget or inbox page). Several can
// be mounted at once over the same data; each owns exactly one typing scope,
// re-acquired on every peer switch.
type Controller struct {
	cfg  Config
	deps Deps

	mu            sync.Mutex
	open          bool
	activePeer    string
	conversations []conversation.Conversation
	coord         *typing.Coordinator
	draft         string

	onScroll     func(peerID string)
	onUpdate     func([]conversation.Conversation)
	onPeerTyping func(peerID string, isTyping bool)

	unsubs []func()
}

func NewController(cfg Config, deps Deps) *Controller {
	return &Controller{cfg: cfg, deps: deps}
}

// OnScroll is invoked whenever the view should jump to the latest message.
func (c *Controller) OnScroll(fn func(peerID string)) {
	c.mu.Lock()
	c.onScroll = fn
	c.mu.Unlock()
}

// OnConversations is invoked with the rebuilt index after every refresh.
func (c *Controller) OnConversations(fn func([]conversation.Conversation)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

func (c *Controller) OnPeerTyping(fn func(peerID string, isTyping bool)) {
	c.mu.Lock()
	c.onPeerTyping = fn
	c.mu.Unlock()
}

// Start wires the controller to the cross-surface bus and loads the initial
// conversation index.
func (c *Controller) Start(ctx context.Context) error {
	c.unsubs = append(c.unsubs,
		c.deps.Bus.SubscribeNewMessage(c.handleNewMessage),
		c.deps.Bus.SubscribeOpenChat(func(peerID string) {
			if err := c.Open(context.Background(), peerID); err != nil {
				log.Printf("%s: open %s failed: %v", c.cfg.Kind, peerID, err)
			}
		}),
	)
	return c.Refresh(ctx)
}

// Open activates the conversation with peerID: tears down any prior typing
// scope, marks unread inbound messages read and scrolls to the latest
// message. Re-opening the already-active peer must not double-subscribe.
func (c *Controller) Open(ctx context.Context, peerID string) error {
	c.mu.Lock()
	same := c.open && c.activePeer == peerID && c.coord != nil
	var stale *typing.Coordinator
	if !same {
		stale = c.coord
		c.coord = nil
		c.open = true
		c.activePeer = peerID
		c.draft = ""
	}
	onPeerTyping := c.onPeerTyping
	c.mu.Unlock()

	if !same {
		if stale != nil {
			stale.Close()
		}
		coord := typing.New(c.cfg.UserID, peerID, c.deps.Channel, c.cfg.Typing)
		if onPeerTyping != nil {
			coord.OnPeerTyping(func(v bool) { onPeerTyping(peerID, v) })
		}
		if err := coord.Start(); err != nil {
			// Typing stays dark for this conversation; everything else works.
			log.Printf("%s: typing scope unavailable for %s: %v", c.cfg.Kind, peerID, err)
		}
		c.mu.Lock()
		c.coord = coord
		c.mu.Unlock()
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := c.markConversationRead(ctx, peerID); err != nil {
		log.Printf("%s: mark read failed for %s: %v", c.cfg.Kind, peerID, err)
	}

	c.mu.Lock()
	scroll := c.onScroll
	c.mu.Unlock()
	if scroll != nil {
		scroll(peerID)
	}
	return nil
}

// Refresh rebuilds the conversation index from the authoritative flat list.
// The index is replaced atomically, never patched in place.
func (c *Controller) Refresh(ctx context.Context) error {
	messages, err := c.deps.Store.FetchForUser(ctx, c.cfg.UserID)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	convos := conversation.Aggregate(ctx, c.cfg.UserID, messages, c.cfg.Roster, c.deps.Dir)

	c.mu.Lock()
	c.conversations = convos
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(convos)
	}
	return nil
}

func (c *Controller) markConversationRead(ctx context.Context, peerID string) error {
	var unread []int64
	c.mu.Lock()
	for _, convo := range c.conversations {
		if convo.PeerID != peerID {
			continue
		}
		for _, m := range convo.Messages {
			if m.UnreadBy(c.cfg.UserID) {
				unread = append(unread, m.ID)
			}
		}
	}
	c.mu.Unlock()

	if len(unread) == 0 {
		return nil
	}
	if err := c.deps.Store.MarkRead(ctx, c.cfg.UserID, unread); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

func (c *Controller) handleNewMessage(m model.Message) {
	if m.SenderID != c.cfg.UserID && m.ReceiverID != c.cfg.UserID {
		return
	}
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		log.Printf("%s: refresh on new message failed: %v", c.cfg.Kind, err)
		return
	}

	peer := m.SenderID
	if peer == c.cfg.UserID {
		peer = m.ReceiverID
	}

	c.mu.Lock()
	active := c.open && c.activePeer == peer
	scroll := c.onScroll
	c.mu.Unlock()
	if !active {
		return
	}

	if m.UnreadBy(c.cfg.UserID) {
		if err := c.markConversationRead(ctx, peer); err != nil {
			log.Printf("%s: mark read failed for %s: %v", c.cfg.Kind, peer, err)
		}
	}
	if scroll != nil {
		scroll(peer)
	}
}

// SetDraft records the composer content and drives the typing signal.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	coord := c.coord
	c.mu.Unlock()

	if coord != nil {
		coord.InputChanged(text)
	}
}

func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Send posts the current draft to the active peer. On failure the draft is
// preserved so the composed text is never lost.
func (c *Controller) Send(ctx context.Context) (model.Message, error) {
	c.mu.Lock()
	peer, open := c.activePeer, c.open
	draft := c.draft
	coord := c.coord
	c.mu.Unlock()

	if !open {
		return model.Message{}, ErrNoActiveConversation
	}

	msg, err := c.deps.Store.Send(ctx, c.cfg.UserID, peer, draft, nil)
	if err != nil {
		return model.Message{}, fmt.Errorf("send to %s: %w", peer, err)
	}

	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()
	if coord != nil {
		coord.MessageSent()
	}

	if err := c.Refresh(ctx); err != nil {
		log.Printf("%s: refresh after send failed: %v", c.cfg.Kind, err)
	}
	return msg, nil
}

// Conversations returns the current index snapshot.
func (c *Controller) Conversations() []conversation.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conversation.Conversation, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// ActivePeer implements notify.ViewState.
func (c *Controller) ActivePeer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePeer, c.open
}

func (c *Controller) PeerTyping() bool {
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()
	if coord == nil {
		return false
	}
	return coord.PeerTyping()
}

// PeerStatus reports presence for a peer, StatusUnknown when no tracker is
// attached.
func (c *Controller) PeerStatus(peerID string) presence.Status {
	if c.deps.Presence == nil {
		return presence.StatusUnknown
	}
	s, _ := c.deps.Presence.Status(peerID)
	return s
}

// CloseConversation deactivates the current conversation and releases its
// typing scope.
func (c *Controller) CloseConversation() {
	c.mu.Lock()
	coord := c.coord
	c.coord = nil
	c.open = false
	c.activePeer = ""
	c.mu.Unlock()

	if coord != nil {
		coord.Close()
	}
}

// Close unmounts the surface: conversation teardown plus bus unsubscribes.
func (c *Controller) Close() {
	c.CloseConversation()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}
