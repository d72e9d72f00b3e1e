package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusOffline
	StatusOnline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

type Config struct {
	UserID            string
	Scope             string
	HeartbeatInterval time.Duration
	// StaleWindow is the maximum gap between heartbeats before a user is
	// reported offline. Defaults to one missed heartbeat cycle.
	StaleWindow time.Duration
}

func DefaultConfig(userID, scope string) Config {
	return Config{
		UserID:            userID,
		Scope:             scope,
		HeartbeatInterval: 30 * time.Second,
		StaleWindow:       30 * time.Second,
	}
}

type record struct {
	online     bool
	lastSeenAt time.Time
}

// Tracker maintains the live presence map for a scope, driven by join/leave
// events and periodic heartbeats. Sync snapshots replace the map wholesale,
// never merged entry by entry.
type Tracker struct {
	cfg Config
	ch  realtime.Channel

	mu       sync.Mutex
	records  map[string]record
	degraded bool

	unsub func()
	stop  chan struct{}
	now   func() time.Time
}

func NewTracker(cfg Config, ch realtime.Channel) *Tracker {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = cfg.HeartbeatInterval
	}
	return &Tracker{
		cfg:     cfg,
		ch:      ch,
		records: make(map[string]record),
		now:     time.Now,
	}
}

// Subscribe joins the scope: announces our own presence, requests an
// authoritative sync, and starts the heartbeat loop. A failed subscription is
// non-fatal; lookups degrade to StatusUnknown.
func (t *Tracker) Subscribe(ctx context.Context) error {
	unsub, err := t.ch.Subscribe(t.cfg.Scope, t.handle)
	if err != nil {
		t.mu.Lock()
		t.degraded = true
		t.mu.Unlock()
		log.Printf("Presence subscription failed for %s: %v", t.cfg.Scope, err)
		return err
	}
	t.unsub = unsub
	t.stop = make(chan struct{})

	t.announce(ctx, model.PresenceJoin)
	if err := t.ch.Broadcast(ctx, model.Event{
		Type:      model.EventPresence,
		Scope:     t.cfg.Scope,
		From:      t.cfg.UserID,
		Content:   model.PresenceSyncRequest,
		Timestamp: t.now().UTC(),
	}); err != nil {
		log.Printf("Presence sync request failed for %s: %v", t.cfg.Scope, err)
	}

	go t.heartbeatLoop()
	return nil
}

func (t *Tracker) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.announce(context.Background(), model.PresenceJoin)
		case <-t.stop:
			return
		}
	}
}

func (t *Tracker) announce(ctx context.Context, verb string) {
	onlineAt := t.now().UTC()
	err := t.ch.Broadcast(ctx, model.Event{
		Type:      model.EventPresence,
		Scope:     t.cfg.Scope,
		From:      t.cfg.UserID,
		Content:   verb,
		OnlineAt:  &onlineAt,
		Timestamp: onlineAt,
	})
	if err != nil {
		// Presence failures are invisible by design.
		log.Printf("Presence announce failed for %s: %v", t.cfg.Scope, err)
	}
}

func (t *Tracker) handle(ev model.Event) {
	if ev.Type != model.EventPresence {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Content {
	case model.PresenceJoin:
		seen := t.now()
		if ev.OnlineAt != nil {
			seen = *ev.OnlineAt
		}
		t.records[ev.From] = record{online: true, lastSeenAt: seen}
	case model.PresenceLeave:
		t.records[ev.From] = record{online: false, lastSeenAt: t.now()}
	case model.PresenceSync:
		// Authoritative snapshot: replace wholesale to rule out drift.
		fresh := make(map[string]record, len(ev.Roster))
		for _, p := range ev.Roster {
			fresh[p.UserID] = record{online: true, lastSeenAt: p.OnlineAt}
		}
		t.records = fresh
		t.degraded = false
	}
}

// Status reports a user's presence. A user with no heartbeat for longer than
// the stale window is offline even without an explicit leave.
func (t *Tracker) Status(userID string) (Status, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		if t.degraded {
			return StatusUnknown, time.Time{}
		}
		return StatusOffline, time.Time{}
	}
	if rec.online && t.now().Sub(rec.lastSeenAt) <= t.cfg.StaleWindow {
		return StatusOnline, rec.lastSeenAt
	}
	return StatusOffline, rec.lastSeenAt
}

// Online is a convenience wrapper over Status.
func (t *Tracker) Online(userID string) bool {
	s, _ := t.Status(userID)
	return s == StatusOnline
}

// Close tears down the heartbeat loop and subscription and announces leave.
func (t *Tracker) Close() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.unsub != nil {
		t.announce(context.Background(), model.PresenceLeave)
		t.unsub()
		t.unsub = nil
	}
}
