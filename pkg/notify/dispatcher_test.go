package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/events"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

type fakeView struct {
	peer string
	open bool
}

func (v *fakeView) ActivePeer() (string, bool) { return v.peer, v.open }

type fakeSound struct {
	plays int
	err   error
}

func (s *fakeSound) Prime()      {}
func (s *fakeSound) Play() error { s.plays++; return s.err }

func newDispatcher(t *testing.T) (*Dispatcher, *events.Bus, *[]Notification, *fakeSound) {
	t.Helper()
	bus := events.NewBus()
	dir := store.NewMemoryDirectory(
		store.Profile{UserID: "bob", DisplayName: "Bob", Role: "coach"},
	)

	var toasts []Notification
	d := NewDispatcher("alice", dir, bus, func(n Notification) { toasts = append(toasts, n) })
	sound := &fakeSound{}
	d.SetSound(sound)
	d.Start()
	t.Cleanup(d.Close)
	return d, bus, &toasts, sound
}

func inbound(sender, content string) model.Message {
	return model.Message{
		ID:         1,
		SenderID:   sender,
		ReceiverID: "alice",
		Content:    content,
		SentAt:     time.Now(),
	}
}

func TestNotifiesWithSenderNameAndSound(t *testing.T) {
	_, bus, toasts, sound := newDispatcher(t)

	bus.PublishNewMessage(inbound("bob", "see you at the session"))

	require.Len(t, *toasts, 1)
	n := (*toasts)[0]
	assert.Equal(t, "Bob", n.Title)
	assert.Equal(t, "see you at the session", n.Body)
	assert.Equal(t, 5*time.Second, n.TTL)
	assert.Equal(t, 1, sound.plays)
}

func TestSuppressedWhenViewingSender(t *testing.T) {
	d, bus, toasts, _ := newDispatcher(t)
	defer d.RegisterView(&fakeView{peer: "bob", open: true})()

	bus.PublishNewMessage(inbound("bob", "hi"))
	assert.Empty(t, *toasts)
}

func TestNotSuppressedForDifferentPeer(t *testing.T) {
	d, bus, toasts, _ := newDispatcher(t)
	defer d.RegisterView(&fakeView{peer: "bob", open: true})()

	bus.PublishNewMessage(inbound("carol", "hi"))
	require.Len(t, *toasts, 1)
	assert.Equal(t, "Unknown user", (*toasts)[0].Title)
}

func TestClosedSurfaceDoesNotSuppress(t *testing.T) {
	d, bus, toasts, _ := newDispatcher(t)
	defer d.RegisterView(&fakeView{peer: "bob", open: false})()

	bus.PublishNewMessage(inbound("bob", "hi"))
	assert.Len(t, *toasts, 1)
}

func TestOutboundMessagesIgnored(t *testing.T) {
	_, bus, toasts, _ := newDispatcher(t)

	bus.PublishNewMessage(model.Message{ID: 2, SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	assert.Empty(t, *toasts)
}

func TestPreviewTruncation(t *testing.T) {
	_, bus, toasts, _ := newDispatcher(t)

	long := strings.Repeat("x", 200)
	bus.PublishNewMessage(inbound("bob", long))

	require.Len(t, *toasts, 1)
	body := []rune((*toasts)[0].Body)
	assert.Len(t, body, 81)
	assert.Equal(t, '…', body[80])
}

func TestPreviewKeepsShortBodies(t *testing.T) {
	assert.Equal(t, "hello", preview("hello", 80))
	exact := strings.Repeat("y", 80)
	assert.Equal(t, exact, preview(exact, 80))
}

func TestSoundFailureSwallowed(t *testing.T) {
	_, bus, toasts, sound := newDispatcher(t)
	sound.err = errors.New("autoplay blocked")

	assert.NotPanics(t, func() {
		bus.PublishNewMessage(inbound("bob", "hi"))
	})
	assert.Len(t, *toasts, 1)
}

func TestActivateOpensConversation(t *testing.T) {
	_, bus, toasts, _ := newDispatcher(t)

	var opened string
	bus.SubscribeOpenChat(func(peer string) { opened = peer })

	bus.PublishNewMessage(inbound("bob", "hi"))
	require.Len(t, *toasts, 1)

	(*toasts)[0].Activate()
	assert.Equal(t, "bob", opened)
}

func TestUnprimedSharedSoundRefusesToPlay(t *testing.T) {
	s := &bellSound{out: &strings.Builder{}}
	assert.ErrorIs(t, s.Play(), ErrNotPrimed)

	s.Prime()
	assert.NoError(t, s.Play())
}
