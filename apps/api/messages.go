package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cohort-labs/messaging-core/pkg/auth"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

type SendRequest struct {
	ReceiverID  string             `json:"receiver_id"`
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"attachments"`
}

func SendHandler(st store.MessageStore) http.HandlerFunc {
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

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ReceiverID == "" {
			http.Error(w, "receiver_id is required", http.StatusBadRequest)
			return
		}

		msg, err := st.Send(r.Context(), claims.UserID, req.ReceiverID, req.Content, req.Attachments)
		if errors.Is(err, store.ErrEmptySend) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			// The client keeps the composed text; this is a retryable failure.
			log.Printf("Send from %s to %s failed: %v", claims.UserID, req.ReceiverID, err)
			http.Error(w, "Failed to send message", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(msg)
	}
}

type DeleteRequest struct {
	MessageID   int64 `json:"message_id"`
	ForEveryone bool  `json:"for_everyone"`
}

func DeleteHandler(st store.MessageStore) http.HandlerFunc {
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

		var req DeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		var err error
		if req.ForEveryone {
			err = st.DeleteForEveryone(r.Context(), claims.UserID, req.MessageID)
		} else {
			err = st.DeleteForSelf(r.Context(), claims.UserID, req.MessageID)
		}

		switch {
		case errors.Is(err, store.ErrNotSender):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case err != nil:
			http.Error(w, "Failed to delete message", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}
