package store

import (
	"context"

	"github.com/cohort-labs/messaging-core/pkg/model"
)

// MessageStore is the thin adapter over the durable message log. It carries no
// business logic; callers own grouping, ordering and unread accounting.
type MessageStore interface {
	// FetchForUser returns every message the user sent or received, minus the
	// ones the user deleted for themselves.
	FetchForUser(ctx context.Context, userID string) ([]model.Message, error)

	// Send persists a new message and announces it to subscribers. A failed
	// send returns a StoreError; the caller keeps the composed input.
	Send(ctx context.Context, senderID, receiverID, content string, attachments []model.Attachment) (model.Message, error)

	// MarkRead stamps read_at on the given inbound messages. Idempotent:
	// marking an already-read message is a no-op success.
	MarkRead(ctx context.Context, userID string, messageIDs []int64) error

	// DeleteForSelf hides the message from userID only.
	DeleteForSelf(ctx context.Context, userID string, messageID int64) error

	// DeleteForEveryone hides the message from both participants. Only the
	// sender may do this; anyone else gets ErrNotSender.
	DeleteForEveryone(ctx context.Context, userID string, messageID int64) error
}

type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Directory resolves user IDs to display profiles.
type Directory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// Placeholder is the profile rendered when a lookup fails or the user record
// is missing. An unknown sender never fails a render.
func Placeholder(userID string) Profile {
	return Profile{UserID: userID, DisplayName: "Unknown user"}
}
