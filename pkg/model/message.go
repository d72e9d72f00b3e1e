package model

import "time"

type EventType string

const (
	EventMessage     EventType = "message"
	EventTyping      EventType = "typing"
	EventPresence    EventType = "presence"
	EventReadReceipt EventType = "read_receipt"
)

// Presence event verbs carried in Event.Content.
const (
	PresenceJoin        = "join"
	PresenceLeave       = "leave"
	PresenceSync        = "sync"
	PresenceSyncRequest = "sync_request"
)

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Message is the durable record owned by the message store. Immutable once
// sent, except read_at (set exactly once) and the deletion flags.
type Message struct {
	ID                 int64        `json:"id"`
	SenderID           string       `json:"sender_id"`
	ReceiverID         string       `json:"receiver_id"`
	ChannelID          string       `json:"channel_id,omitempty"`
	Content            string       `json:"content"`
	Attachments        []Attachment `json:"attachments"`
	SentAt             time.Time    `json:"sent_at"`
	ReadAt             *time.Time   `json:"read_at"`
	DeletedFor         []string     `json:"deleted_for,omitempty"`
	DeletedForEveryone bool         `json:"deleted_for_everyone,omitempty"`
}

// UnreadBy reports whether m is an unread inbound message for userID.
func (m *Message) UnreadBy(userID string) bool {
	return m.ReceiverID == userID && m.ReadAt == nil
}

// DeletedForUser reports whether userID has deleted m for themselves.
func (m *Message) DeletedForUser(userID string) bool {
	for _, u := range m.DeletedFor {
		if u == userID {
			return true
		}
	}
	return false
}

type PresencePayload struct {
	UserID   string    `json:"user_id"`
	OnlineAt time.Time `json:"online_at"`
}

// Event is the wire envelope for everything crossing a realtime scope:
// durable messages, typing signals, presence and read receipts.
type Event struct {
	Type       EventType         `json:"type"`
	Scope      string            `json:"scope"`
	From       string            `json:"from"`
	Content    string            `json:"content,omitempty"`
	IsTyping   bool              `json:"is_typing,omitempty"`
	OnlineAt   *time.Time        `json:"online_at,omitempty"`
	Roster     []PresencePayload `json:"roster,omitempty"`
	Message    *Message          `json:"message,omitempty"`
	MessageIDs []int64           `json:"message_ids,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
