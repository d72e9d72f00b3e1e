package typing

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
)

type Config struct {
	// Debounce is the minimum gap between isTyping=true broadcasts.
	Debounce time.Duration
	// IdleStop is the silence after the last input change before
	// isTyping=false goes out.
	IdleStop time.Duration
	// PeerExpiry forces the peer-typing indicator off when no further signal
	// arrives, protecting against a lost stop signal.
	PeerExpiry time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:   2 * time.Second,
		IdleStop:   1500 * time.Millisecond,
		PeerExpiry: 3 * time.Second,
	}
}

// Coordinator owns the ephemeral typing state for one open conversation. All
// timers it arms are cancelled by Close; a stale timer never fires into a
// different conversation's state.
type Coordinator struct {
	me    string
	peer  string
	scope string
	ch    realtime.Channel
	cfg   Config

	mu          sync.Mutex
	closed      bool
	lastSent    time.Time
	idleTimer   *time.Timer
	expiryTimer *time.Timer
	peerTyping  bool
	onPeer      func(bool)
	unsub       func()

	now func() time.Time
}

func New(me, peer string, ch realtime.Channel, cfg Config) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		me:    me,
		peer:  peer,
		scope: realtime.Scope(me, peer),
		ch:    ch,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (c *Coordinator) Scope() string { return c.scope }

// OnPeerTyping registers the indicator callback. Set before Start.
func (c *Coordinator) OnPeerTyping(fn func(bool)) {
	c.mu.Lock()
	c.onPeer = fn
	c.mu.Unlock()
}

func (c *Coordinator) Start() error {
	unsub, err := c.ch.Subscribe(c.scope, c.handle)
	if err != nil {
		// Typing failures are invisible: the indicator just stays off.
		log.Printf("Typing subscription failed for %s: %v", c.scope, err)
		return err
	}
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// InputChanged reports the current composer content on every local edit.
func (c *Coordinator) InputChanged(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	var send, isTyping bool
	if text != "" {
		if c.lastSent.IsZero() || c.now().Sub(c.lastSent) > c.cfg.Debounce {
			send, isTyping = true, true
			c.lastSent = c.now()
		}
		if c.idleTimer != nil {
			c.idleTimer.Stop()
		}
		c.idleTimer = time.AfterFunc(c.cfg.IdleStop, c.idleStop)
	} else {
		c.stopLocalLocked()
		send, isTyping = true, false
	}
	c.mu.Unlock()

	if send {
		c.broadcast(isTyping)
	}
}

// MessageSent broadcasts isTyping=false immediately, regardless of debounce.
func (c *Coordinator) MessageSent() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocalLocked()
	c.mu.Unlock()

	c.broadcast(false)
}

func (c *Coordinator) stopLocalLocked() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	c.lastSent = time.Time{}
}

func (c *Coordinator) idleStop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.idleTimer = nil
	c.lastSent = time.Time{}
	c.mu.Unlock()

	c.broadcast(false)
}

func (c *Coordinator) broadcast(isTyping bool) {
	err := c.ch.Broadcast(context.Background(), model.Event{
		Type:      model.EventTyping,
		Scope:     c.scope,
		From:      c.me,
		IsTyping:  isTyping,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Typing broadcast failed for %s: %v", c.scope, err)
	}
}

func (c *Coordinator) handle(ev model.Event) {
	if ev.Type != model.EventTyping || ev.From != c.peer {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if ev.IsTyping {
		c.peerTyping = true
		if c.expiryTimer != nil {
			c.expiryTimer.Stop()
		}
		c.expiryTimer = time.AfterFunc(c.cfg.PeerExpiry, c.expirePeer)
	} else {
		c.peerTyping = false
		if c.expiryTimer != nil {
			c.expiryTimer.Stop()
			c.expiryTimer = nil
		}
	}
	fn, state := c.onPeer, c.peerTyping
	c.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

func (c *Coordinator) expirePeer() {
	c.mu.Lock()
	if c.closed || !c.peerTyping {
		c.mu.Unlock()
		return
	}
	c.peerTyping = false
	c.expiryTimer = nil
	fn := c.onPeer
	c.mu.Unlock()

	if fn != nil {
		fn(false)
	}
}

func (c *Coordinator) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// Close cancels all pending timers and the subscription, and clears the
// peer's view of our typing state.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	c.broadcast(false)
	if unsub != nil {
		unsub()
	}
}
