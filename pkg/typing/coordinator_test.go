package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
)

// recordingChannel captures broadcasts and fans them back to subscribers.
type recordingChannel struct {
	mu       sync.Mutex
	events   []model.Event
	handlers []realtime.Handler
}

func (c *recordingChannel) Broadcast(ctx context.Context, ev model.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	handlers := append([]realtime.Handler(nil), c.handlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (c *recordingChannel) Subscribe(scope string, h realtime.Handler) (func(), error) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
	return func() {}, nil
}

func (c *recordingChannel) typingSignals() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []bool
	for _, ev := range c.events {
		if ev.Type == model.EventTyping {
			out = append(out, ev.IsTyping)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		Debounce:   50 * time.Millisecond,
		IdleStop:   30 * time.Millisecond,
		PeerExpiry: 40 * time.Millisecond,
	}
}

func newCoordinator(t *testing.T) (*Coordinator, *recordingChannel, *time.Time) {
	t.Helper()
	ch := &recordingChannel{}
	c := New("alice", "bob", ch, testConfig())
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	require.NoError(t, c.Start())
	return c, ch, &clock
}

func TestScopeAgreesFromBothEnds(t *testing.T) {
	ch := &recordingChannel{}
	a := New("alice", "bob", ch, testConfig())
	b := New("bob", "alice", ch, testConfig())
	assert.Equal(t, a.Scope(), b.Scope())
}

func TestFirstInputBroadcastsTyping(t *testing.T) {
	c, ch, _ := newCoordinator(t)
	defer c.Close()

	c.InputChanged("h")
	assert.Equal(t, []bool{true}, ch.typingSignals())
}

func TestDebounceSuppressesRepeatBroadcasts(t *testing.T) {
	c, ch, clock := newCoordinator(t)
	defer c.Close()

	starts := func() int {
		n := 0
		for _, v := range ch.typingSignals() {
			if v {
				n++
			}
		}
		return n
	}

	c.InputChanged("h")
	*clock = clock.Add(20 * time.Millisecond)
	c.InputChanged("he")
	*clock = clock.Add(20 * time.Millisecond)
	c.InputChanged("hel")
	assert.Equal(t, 1, starts())

	*clock = clock.Add(60 * time.Millisecond)
	c.InputChanged("hell")
	assert.Equal(t, 2, starts())
}

func TestIdleBroadcastsStop(t *testing.T) {
	c, ch, _ := newCoordinator(t)
	defer c.Close()

	c.InputChanged("h")
	time.Sleep(80 * time.Millisecond)

	signals := ch.typingSignals()
	require.Len(t, signals, 2)
	assert.False(t, signals[1])
}

func TestMessageSentBroadcastsStopImmediately(t *testing.T) {
	c, ch, _ := newCoordinator(t)
	defer c.Close()

	c.InputChanged("hello")
	c.MessageSent()

	signals := ch.typingSignals()
	require.Len(t, signals, 2)
	assert.False(t, signals[1])
}

func TestPeerTypingSetAndExpired(t *testing.T) {
	c, _, _ := newCoordinator(t)
	defer c.Close()

	var mu sync.Mutex
	var seen []bool
	c.OnPeerTyping(func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	c.handle(model.Event{Type: model.EventTyping, From: "bob", IsTyping: true})
	assert.True(t, c.PeerTyping())

	// No further signal: expiry forces the indicator off.
	time.Sleep(80 * time.Millisecond)
	assert.False(t, c.PeerTyping())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestPeerStopSignalClearsIndicator(t *testing.T) {
	c, _, _ := newCoordinator(t)
	defer c.Close()

	c.handle(model.Event{Type: model.EventTyping, From: "bob", IsTyping: true})
	c.handle(model.Event{Type: model.EventTyping, From: "bob", IsTyping: false})
	assert.False(t, c.PeerTyping())
}

func TestSignalsFromOthersIgnored(t *testing.T) {
	c, _, _ := newCoordinator(t)
	defer c.Close()

	c.handle(model.Event{Type: model.EventTyping, From: "carol", IsTyping: true})
	c.handle(model.Event{Type: model.EventTyping, From: "alice", IsTyping: true})
	assert.False(t, c.PeerTyping())
}

func TestCloseCancelsPendingTimers(t *testing.T) {
	c, _, _ := newCoordinator(t)

	fired := make(chan bool, 4)
	c.OnPeerTyping(func(v bool) { fired <- v })

	c.handle(model.Event{Type: model.EventTyping, From: "bob", IsTyping: true})
	<-fired

	c.Close()
	time.Sleep(80 * time.Millisecond)

	select {
	case v := <-fired:
		t.Fatalf("stale timer fired after Close: %v", v)
	default:
	}
}

func TestCloseBroadcastsStop(t *testing.T) {
	c, ch, _ := newCoordinator(t)

	c.InputChanged("h")
	c.Close()

	signals := ch.typingSignals()
	require.NotEmpty(t, signals)
	assert.False(t, signals[len(signals)-1])
}
