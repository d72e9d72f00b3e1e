package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cohort-labs/messaging-core/pkg/events"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

// Notification is an ephemeral UI event; activating it re-opens the
// originating conversation.
type Notification struct {
	ID       string
	Title    string
	Body     string
	TTL      time.Duration
	Activate func()
}

// ViewState is the slice of a chat surface the dispatcher needs: which
// conversation, if any, the user is currently looking at.
type ViewState interface {
	ActivePeer() (peerID string, open bool)
}

type Config struct {
	PreviewLimit int
	TTL          time.Duration
}

func DefaultConfig() Config {
	return Config{PreviewLimit: 80, TTL: 5 * time.Second}
}

// Dispatcher watches the global new-message stream and decides when to
// interrupt the user. It runs even when no chat surface is open.
type Dispatcher struct {
	userID string
	dir    store.Directory
	bus    *events.Bus
	sink   func(Notification)
	sound  Sound
	cfg    Config

	mu     sync.Mutex
	views  map[int]ViewState
	nextID int
	unsub  func()
}

func NewDispatcher(userID string, dir store.Directory, bus *events.Bus, sink func(Notification)) *Dispatcher {
	return &Dispatcher{
		userID: userID,
		dir:    dir,
		bus:    bus,
		sink:   sink,
		sound:  SharedSound(),
		cfg:    DefaultConfig(),
		views:  make(map[int]ViewState),
	}
}

// SetConfig overrides timing and truncation defaults. Call before Start.
func (d *Dispatcher) SetConfig(cfg Config) {
	if cfg.PreviewLimit > 0 {
		d.cfg.PreviewLimit = cfg.PreviewLimit
	}
	if cfg.TTL > 0 {
		d.cfg.TTL = cfg.TTL
	}
}

// SetSound replaces the shared sound handle, for tests.
func (d *Dispatcher) SetSound(s Sound) { d.sound = s }

func (d *Dispatcher) Start() {
	d.unsub = d.bus.SubscribeNewMessage(d.handle)
}

func (d *Dispatcher) Close() {
	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
}

// RegisterView adds a surface whose active conversation suppresses
// notifications. Returns the matching teardown func.
func (d *Dispatcher) RegisterView(v ViewState) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.views[id] = v
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.views, id)
		d.mu.Unlock()
	}
}

func (d *Dispatcher) handle(m model.Message) {
	if m.ReceiverID != d.userID {
		return
	}
	if d.viewing(m.SenderID) {
		// Already looking at this conversation.
		return
	}

	profile, err := d.dir.Lookup(context.Background(), m.SenderID)
	if err != nil {
		profile = store.Placeholder(m.SenderID)
	}

	sender := m.SenderID
	n := Notification{
		ID:    uuid.NewString(),
		Title: profile.DisplayName,
		Body:  preview(m.Content, d.cfg.PreviewLimit),
		TTL:   d.cfg.TTL,
		Activate: func() {
			d.bus.PublishOpenChat(sender)
		},
	}

	if err := d.sound.Play(); err != nil {
		// Best effort only; blocked audio must not surface as an error.
		log.Printf("Notification sound skipped: %v", err)
	}
	if d.sink != nil {
		d.sink(n)
	}
}

func (d *Dispatcher) viewing(peerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.views {
		if active, open := v.ActivePeer(); open && active == peerID {
			return true
		}
	}
	return false
}

// preview truncates body text for the toast, capped in runes with an
// ellipsis when longer.
func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
