package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/cohort-labs/messaging-core/pkg/auth"
	"github.com/cohort-labs/messaging-core/pkg/conversation"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

// ConversationsHandler rebuilds the caller's conversation index from the flat
// message set on every request. Unread counts are recomputed, never read from
// a stored counter.
func ConversationsHandler(st store.MessageStore, dir store.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		messages, err := st.FetchForUser(r.Context(), claims.UserID)
		if err != nil {
			log.Printf("Failed to fetch messages for %s: %v", claims.UserID, err)
			http.Error(w, "Failed to retrieve conversations", http.StatusInternalServerError)
			return
		}

		convos := conversation.Aggregate(r.Context(), claims.UserID, messages, nil, dir)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(convos)
	}
}
