package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/realtime"
)

type failingChannel struct{}

func (failingChannel) Broadcast(ctx context.Context, ev model.Event) error {
	return errors.New("channel down")
}

func (failingChannel) Subscribe(scope string, h realtime.Handler) (func(), error) {
	return nil, errors.New("channel down")
}

func newTestTracker(t *testing.T) (*Tracker, *time.Time, func()) {
	t.Helper()
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cfg := DefaultConfig("alice", realtime.Scope("alice", "bob"))
	cfg.HeartbeatInterval = time.Hour // keep the loop quiet during tests
	cfg.StaleWindow = 30 * time.Second

	tr := NewTracker(cfg, realtime.NewLocalChannel())
	tr.now = func() time.Time { return clock }

	require.NoError(t, tr.Subscribe(context.Background()))
	return tr, &clock, tr.Close
}

func join(tr *Tracker, userID string, at time.Time) {
	tr.handle(model.Event{
		Type:     model.EventPresence,
		Scope:    tr.cfg.Scope,
		From:     userID,
		Content:  model.PresenceJoin,
		OnlineAt: &at,
	})
}

func TestHeartbeatMarksOnline(t *testing.T) {
	tr, clock, done := newTestTracker(t)
	defer done()

	join(tr, "bob", *clock)
	status, lastSeen := tr.Status("bob")
	assert.Equal(t, StatusOnline, status)
	assert.Equal(t, *clock, lastSeen)
}

func TestStaleWindowForcesOfflineWithoutLeave(t *testing.T) {
	tr, clock, done := newTestTracker(t)
	defer done()

	join(tr, "bob", *clock)
	*clock = clock.Add(31 * time.Second)

	status, _ := tr.Status("bob")
	assert.Equal(t, StatusOffline, status)
}

func TestHeartbeatResetsStaleness(t *testing.T) {
	tr, clock, done := newTestTracker(t)
	defer done()

	join(tr, "bob", *clock)
	*clock = clock.Add(25 * time.Second)
	join(tr, "bob", *clock)
	*clock = clock.Add(25 * time.Second)

	assert.True(t, tr.Online("bob"))
}

func TestExplicitLeave(t *testing.T) {
	tr, clock, done := newTestTracker(t)
	defer done()

	join(tr, "bob", *clock)
	tr.handle(model.Event{
		Type:    model.EventPresence,
		Scope:   tr.cfg.Scope,
		From:    "bob",
		Content: model.PresenceLeave,
	})

	status, _ := tr.Status("bob")
	assert.Equal(t, StatusOffline, status)
}

func TestSyncReplacesStateWholesale(t *testing.T) {
	tr, clock, done := newTestTracker(t)
	defer done()

	join(tr, "bob", *clock)
	join(tr, "carol", *clock)

	// Snapshot only lists carol; bob must not survive the replace.
	tr.handle(model.Event{
		Type:    model.EventPresence,
		Scope:   tr.cfg.Scope,
		Content: model.PresenceSync,
		Roster:  []model.PresencePayload{{UserID: "carol", OnlineAt: *clock}},
	})

	assert.False(t, tr.Online("bob"))
	assert.True(t, tr.Online("carol"))
}

func TestSubscriptionFailureDegradesToUnknown(t *testing.T) {
	cfg := DefaultConfig("alice", realtime.Scope("alice", "bob"))
	tr := NewTracker(cfg, failingChannel{})

	err := tr.Subscribe(context.Background())
	require.Error(t, err)

	status, _ := tr.Status("bob")
	assert.Equal(t, StatusUnknown, status)
}

func TestUnseenUserIsOfflineOnHealthyChannel(t *testing.T) {
	tr, _, done := newTestTracker(t)
	defer done()

	status, _ := tr.Status("stranger")
	assert.Equal(t, StatusOffline, status)
}
