package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gocql/gocql"

	"github.com/cohort-labs/messaging-core/pkg/db"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/snowflake"
)

// ScyllaStore keeps one row per participant per message in user_messages, so
// fetch-by-participant is a single-partition read and delete-for-self removes
// only the caller's row. read_at and deleted_everyone are written to both rows.
type ScyllaStore struct {
	session  *db.Session
	ids      *snowflake.Node
	announce func(model.Message)
	now      func() time.Time
}

func NewScyllaStore(session *db.Session, ids *snowflake.Node) *ScyllaStore {
	return &ScyllaStore{session: session, ids: ids, now: time.Now}
}

// OnSend registers a callback invoked after each successful insert, used to
// feed the new-message stream.
func (s *ScyllaStore) OnSend(fn func(model.Message)) {
	s.announce = fn
}

func (s *ScyllaStore) FetchForUser(ctx context.Context, userID string) ([]model.Message, error) {
	iter := s.session.Query(
		`SELECT id, sender_id, receiver_id, content, attachments, sent_at, read_at, deleted_everyone
		 FROM user_messages WHERE user_id = ?`, userID).WithContext(ctx).Iter()

	var messages []model.Message
	var (
		id                 int64
		senderID           string
		receiverID         string
		content            string
		attachmentsJSON    string
		sentAt, readAt     time.Time
		deletedForEveryone bool
	)
	for iter.Scan(&id, &senderID, &receiverID, &content, &attachmentsJSON, &sentAt, &readAt, &deletedForEveryone) {
		m := model.Message{
			ID:                 id,
			SenderID:           senderID,
			ReceiverID:         receiverID,
			Content:            content,
			SentAt:             sentAt,
			DeletedForEveryone: deletedForEveryone,
		}
		if !readAt.IsZero() {
			t := readAt
			m.ReadAt = &t
		}
		if attachmentsJSON != "" {
			if err := json.Unmarshal([]byte(attachmentsJSON), &m.Attachments); err != nil {
				// Malformed attachment list renders as empty, not as a failure.
				log.Printf("Malformed attachments on message %d: %v", id, err)
				m.Attachments = nil
			}
		}
		messages = append(messages, m)
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("fetch", err)
	}
	return messages, nil
}

func (s *ScyllaStore) Send(ctx context.Context, senderID, receiverID, content string, attachments []model.Attachment) (model.Message, error) {
	if content == "" && len(attachments) == 0 {
		return model.Message{}, ErrEmptySend
	}

	msg := model.Message{
		ID:          s.ids.Generate(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		Attachments: attachments,
		SentAt:      s.now().UTC(),
	}

	attachmentsJSON := ""
	if len(attachments) > 0 {
		raw, err := json.Marshal(attachments)
		if err != nil {
			return model.Message{}, storeErr("send", err)
		}
		attachmentsJSON = string(raw)
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	const insert = `INSERT INTO user_messages
		(user_id, id, sender_id, receiver_id, content, attachments, sent_at, deleted_everyone)
		VALUES (?, ?, ?, ?, ?, ?, ?, false)`
	batch.Query(insert, senderID, msg.ID, senderID, receiverID, content, attachmentsJSON, msg.SentAt)
	if receiverID != senderID {
		batch.Query(insert, receiverID, msg.ID, senderID, receiverID, content, attachmentsJSON, msg.SentAt)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return model.Message{}, storeErr("send", err)
	}

	if s.announce != nil {
		s.announce(msg)
	}
	return msg, nil
}

// Insert persists a fully-formed message (ID and sent_at already assigned
// upstream). Used by the stream consumer; Send is the client-facing path.
func (s *ScyllaStore) Insert(ctx context.Context, m model.Message) error {
	attachmentsJSON := ""
	if len(m.Attachments) > 0 {
		raw, err := json.Marshal(m.Attachments)
		if err != nil {
			return storeErr("insert", err)
		}
		attachmentsJSON = string(raw)
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	const insert = `INSERT INTO user_messages
		(user_id, id, sender_id, receiver_id, content, attachments, sent_at, deleted_everyone)
		VALUES (?, ?, ?, ?, ?, ?, ?, false)`
	batch.Query(insert, m.SenderID, m.ID, m.SenderID, m.ReceiverID, m.Content, attachmentsJSON, m.SentAt)
	if m.ReceiverID != m.SenderID {
		batch.Query(insert, m.ReceiverID, m.ID, m.SenderID, m.ReceiverID, m.Content, attachmentsJSON, m.SentAt)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return storeErr("insert", err)
	}
	return nil
}

func (s *ScyllaStore) MarkRead(ctx context.Context, userID string, messageIDs []int64) error {
	for _, id := range messageIDs {
		m, err := s.lookup(ctx, userID, id)
		if err != nil {
			return err
		}
		if m.ReceiverID != userID || m.ReadAt != nil {
			// Not inbound, or already read: no-op.
			continue
		}
		readAt := s.now().UTC()
		const update = `UPDATE user_messages SET read_at = ? WHERE user_id = ? AND id = ?`
		for _, owner := range []string{m.SenderID, m.ReceiverID} {
			if err := s.session.Query(update, readAt, owner, id).WithContext(ctx).Exec(); err != nil {
				return storeErr("mark_read", err)
			}
		}
	}
	return nil
}

func (s *ScyllaStore) DeleteForSelf(ctx context.Context, userID string, messageID int64) error {
	if _, err := s.lookup(ctx, userID, messageID); err != nil {
		return err
	}
	err := s.session.Query(
		`DELETE FROM user_messages WHERE user_id = ? AND id = ?`,
		userID, messageID).WithContext(ctx).Exec()
	return storeErr("delete_for_self", err)
}

func (s *ScyllaStore) DeleteForEveryone(ctx context.Context, userID string, messageID int64) error {
	m, err := s.lookup(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != userID {
		return ErrNotSender
	}
	const update = `UPDATE user_messages SET deleted_everyone = true WHERE user_id = ? AND id = ?`
	for _, owner := range []string{m.SenderID, m.ReceiverID} {
		if err := s.session.Query(update, owner, messageID).WithContext(ctx).Exec(); err != nil {
			return storeErr("delete_for_everyone", err)
		}
	}
	return nil
}

func (s *ScyllaStore) lookup(ctx context.Context, userID string, messageID int64) (model.Message, error) {
	var (
		m      model.Message
		readAt time.Time
	)
	err := s.session.Query(
		`SELECT sender_id, receiver_id, read_at FROM user_messages WHERE user_id = ? AND id = ?`,
		userID, messageID).WithContext(ctx).Scan(&m.SenderID, &m.ReceiverID, &readAt)
	if err == gocql.ErrNotFound {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, storeErr("lookup", err)
	}
	m.ID = messageID
	if !readAt.IsZero() {
		m.ReadAt = &readAt
	}
	return m, nil
}
