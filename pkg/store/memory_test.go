package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

func TestSendAndFetchVisibility(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg, err := s.Send(ctx, "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Nil(t, msg.ReadAt)

	for _, user := range []string{"alice", "bob"} {
		got, err := s.FetchForUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, msg.ID, got[0].ID)
	}

	other, err := s.FetchForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Send(context.Background(), "alice", "bob", "", nil)
	assert.ErrorIs(t, err, ErrEmptySend)
}

func TestSendWithOnlyAttachments(t *testing.T) {
	s := NewMemoryStore()
	msg, err := s.Send(context.Background(), "alice", "bob", "", []model.Attachment{{Name: "plan.pdf", URL: "https://files/plan.pdf"}})
	require.NoError(t, err)
	assert.Len(t, msg.Attachments, 1)
}

func TestSendAnnouncesToSubscribers(t *testing.T) {
	s := NewMemoryStore()
	var announced []int64
	s.OnSend(func(m model.Message) { announced = append(announced, m.ID) })

	msg, err := s.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{msg.ID}, announced)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg, err := s.Send(ctx, "alice", "bob", "hi", nil)
	require.NoError(t, err)

	require.NoError(t, s.MarkRead(ctx, "bob", []int64{msg.ID}))

	got, err := s.FetchForUser(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got[0].ReadAt)
	first := *got[0].ReadAt

	// Second mark: no error, timestamp untouched.
	require.NoError(t, s.MarkRead(ctx, "bob", []int64{msg.ID}))
	got, err = s.FetchForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, first, *got[0].ReadAt)
}

func TestMarkReadIgnoresOutboundMessages(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg, err := s.Send(ctx, "alice", "bob", "hi", nil)
	require.NoError(t, err)

	// The sender cannot mark their own message read.
	require.NoError(t, s.MarkRead(ctx, "alice", []int64{msg.ID}))
	got, err := s.FetchForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got[0].ReadAt)
}

func TestDeleteForSelfHidesOnlyFromCaller(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg, err := s.Send(ctx, "alice", "bob", "hi", nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteForSelf(ctx, "bob", msg.ID))

	asBob, err := s.FetchForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, asBob)

	asAlice, err := s.FetchForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, asAlice, 1)
}

func TestDeleteForEveryoneRequiresSender(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg, err := s.Send(ctx, "alice", "bob", "hi", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteForEveryone(ctx, "bob", msg.ID), ErrNotSender)

	require.NoError(t, s.DeleteForEveryone(ctx, "alice", msg.ID))
	got, err := s.FetchForUser(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, got[0].DeletedForEveryone)
}

func TestDeleteUnknownMessage(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.DeleteForSelf(context.Background(), "alice", 404), ErrNotFound)
	assert.ErrorIs(t, s.DeleteForEveryone(context.Background(), "alice", 404), ErrNotFound)
}

func TestFailedSendReturnsStoreError(t *testing.T) {
	s := NewMemoryStore()
	s.FailSends = true

	_, err := s.Send(context.Background(), "alice", "bob", "hi", nil)
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "send", se.Op)
}

func TestDirectoryFallsBackToPlaceholder(t *testing.T) {
	d := NewMemoryDirectory(Profile{UserID: "bob", DisplayName: "Bob"})

	p, err := d.Lookup(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", p.DisplayName)

	p, err = d.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Unknown user", p.DisplayName)
	assert.Equal(t, "ghost", p.UserID)
}
