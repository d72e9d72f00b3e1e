package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/snowflake"
)

// MemoryStore is an in-process MessageStore with the same per-user visibility
// semantics as the Scylla implementation. Used by tests and the demo client.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[int64]*model.Message
	ids      *snowflake.Node
	announce func(model.Message)
	now      func() time.Time

	// FailSends makes Send return a StoreError, for exercising the
	// input-preserving failure path.
	FailSends bool
}

func NewMemoryStore() *MemoryStore {
	node, _ := snowflake.NewNode(0)
	return &MemoryStore{
		messages: make(map[int64]*model.Message),
		ids:      node,
		now:      time.Now,
	}
}

func (s *MemoryStore) OnSend(fn func(model.Message)) {
	s.announce = fn
}

// Seed inserts a message verbatim, bypassing Send side effects.
func (s *MemoryStore) Seed(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.ids.Generate()
	}
	cp := m
	s.messages[m.ID] = &cp
}

func (s *MemoryStore) FetchForUser(ctx context.Context, userID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Message
	for _, m := range s.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		if m.DeletedForUser(userID) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Send(ctx context.Context, senderID, receiverID, content string, attachments []model.Attachment) (model.Message, error) {
	if content == "" && len(attachments) == 0 {
		return model.Message{}, ErrEmptySend
	}
	if s.FailSends {
		return model.Message{}, storeErr("send", context.DeadlineExceeded)
	}

	s.mu.Lock()
	msg := model.Message{
		ID:          s.ids.Generate(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		Attachments: attachments,
		SentAt:      s.now().UTC(),
	}
	cp := msg
	s.messages[msg.ID] = &cp
	announce := s.announce
	s.mu.Unlock()

	if announce != nil {
		announce(msg)
	}
	return msg, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, userID string, messageIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range messageIDs {
		m, ok := s.messages[id]
		if !ok {
			return ErrNotFound
		}
		if m.ReceiverID != userID || m.ReadAt != nil {
			continue
		}
		t := s.now().UTC()
		m.ReadAt = &t
	}
	return nil
}

func (s *MemoryStore) DeleteForSelf(ctx context.Context, userID string, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	if !m.DeletedForUser(userID) {
		m.DeletedFor = append(m.DeletedFor, userID)
	}
	return nil
}

func (s *MemoryStore) DeleteForEveryone(ctx context.Context, userID string, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	if m.SenderID != userID {
		return ErrNotSender
	}
	m.DeletedForEveryone = true
	return nil
}

// MemoryDirectory is a fixed profile table for tests and demos.
type MemoryDirectory struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryDirectory(profiles ...Profile) *MemoryDirectory {
	d := &MemoryDirectory{profiles: make(map[string]Profile)}
	for _, p := range profiles {
		d.profiles[p.UserID] = p
	}
	return d
}

func (d *MemoryDirectory) Add(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *MemoryDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.profiles[userID]; ok {
		return p, nil
	}
	return Placeholder(userID), nil
}
