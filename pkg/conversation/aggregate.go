package conversation

import (
	"context"
	"sort"

	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

// Conversation is derived state, rebuilt wholesale from the flat message list
// on every pass. unread is never tracked as a separate mutable counter.
type Conversation struct {
	PeerID      string          `json:"peer_id"`
	PeerName    string          `json:"peer_name"`
	PeerRole    string          `json:"peer_role,omitempty"`
	Messages    []model.Message `json:"messages"`
	LastMessage *model.Message  `json:"last_message"`
	UnreadCount int             `json:"unread_count"`
}

// Aggregate turns the flat message set visible to userID into a per-peer
// conversation index. roster lists peers that should appear even with no
// messages yet (they sort last). Single O(n) pass, no incremental state.
func Aggregate(ctx context.Context, userID string, messages []model.Message, roster []string, dir store.Directory) []Conversation {
	byPeer := make(map[string]*Conversation)

	for _, peer := range roster {
		if peer == userID || peer == "" {
			continue
		}
		byPeer[peer] = &Conversation{PeerID: peer}
	}

	for _, m := range messages {
		if m.DeletedForEveryone || m.DeletedForUser(userID) {
			continue
		}
		var peer string
		switch userID {
		case m.SenderID:
			peer = m.ReceiverID
		case m.ReceiverID:
			peer = m.SenderID
		default:
			// Not a participant; defensive against a mis-scoped fetch.
			continue
		}
		if peer == "" {
			continue
		}

		c := byPeer[peer]
		if c == nil {
			c = &Conversation{PeerID: peer}
			byPeer[peer] = c
		}
		c.Messages = append(c.Messages, m)
		if m.UnreadBy(userID) {
			c.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(byPeer))
	for _, c := range byPeer {
		sort.Slice(c.Messages, func(i, j int) bool {
			a, b := c.Messages[i], c.Messages[j]
			if !a.SentAt.Equal(b.SentAt) {
				return a.SentAt.Before(b.SentAt)
			}
			return a.ID < b.ID
		})
		if n := len(c.Messages); n > 0 {
			c.LastMessage = &c.Messages[n-1]
		}

		profile, err := dir.Lookup(ctx, c.PeerID)
		if err != nil {
			profile = store.Placeholder(c.PeerID)
		}
		c.PeerName = profile.DisplayName
		c.PeerRole = profile.Role

		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a == nil && b == nil:
			return out[i].PeerID < out[j].PeerID
		case a == nil:
			return false
		case b == nil:
			return true
		}
		if !a.SentAt.Equal(b.SentAt) {
			return a.SentAt.After(b.SentAt)
		}
		return a.ID > b.ID
	})
	return out
}
