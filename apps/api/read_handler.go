package main

import (
	"encoding/json"
	"net/http"

	"github.com/cohort-labs/messaging-core/pkg/auth"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

type ReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

// ReadHandler stamps read_at on the caller's inbound messages. Re-marking an
// already-read message succeeds without effect.
func ReadHandler(st store.MessageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req ReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.MessageIDs) == 0 {
			http.Error(w, "message_ids is required", http.StatusBadRequest)
			return
		}

		if err := st.MarkRead(r.Context(), claims.UserID, req.MessageIDs); err != nil {
			http.Error(w, "Failed to mark messages read", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
