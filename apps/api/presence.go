package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type PresenceHandler struct {
	redis *redis.Client
}

func NewPresenceHandler(rdb *redis.Client) *PresenceHandler {
	return &PresenceHandler{redis: rdb}
}

type PresenceResponse struct {
	UserID     string     `json:"user_id"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// ServeHTTP answers /users/{id}/presence from the liveness key the gateway
// refreshes on each heartbeat. An expired key means offline.
func (h *PresenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) < 4 || pathParts[3] != "presence" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	userID := pathParts[2]

	resp := PresenceResponse{UserID: userID}

	raw, err := h.redis.Get(r.Context(), "presence:user:"+userID).Result()
	if err == nil {
		if seen, perr := time.Parse(time.RFC3339, raw); perr == nil {
			resp.Online = true
			resp.LastSeenAt = &seen
		}
	} else if err != redis.Nil {
		log.Printf("Failed to fetch presence for %s: %v", userID, err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
