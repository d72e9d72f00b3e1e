package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/cohort-labs/messaging-core/pkg/auth"
	"github.com/cohort-labs/messaging-core/pkg/model"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

// HistoryHandler returns the caller's messages with one peer, ascending by
// sent time.
func HistoryHandler(st store.MessageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		peerID := r.URL.Query().Get("peer_id")
		if peerID == "" {
			http.Error(w, "peer_id is required", http.StatusBadRequest)
			return
		}

		all, err := st.FetchForUser(r.Context(), claims.UserID)
		if err != nil {
			log.Printf("Failed to fetch history for %s: %v", claims.UserID, err)
			http.Error(w, "Failed to retrieve history", http.StatusInternalServerError)
			return
		}

		messages := []model.Message{}
		for _, m := range all {
			if m.DeletedForEveryone {
				continue
			}
			if m.SenderID == peerID || m.ReceiverID == peerID {
				messages = append(messages, m)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	}
}

type LoginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	token, err := auth.GenerateToken(req.UserID, req.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: token})
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
