package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cohort-labs/messaging-core/pkg/db"
	"github.com/cohort-labs/messaging-core/pkg/snowflake"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	_ = godotenv.Load()

	session, err := db.Connect(db.ConfigFromEnv("chat"))
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	node, err := snowflake.NewNode(3)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	messages := store.NewScyllaStore(session, node)
	directory := store.NewScyllaDirectory(session, rdb, 0)

	log.Println("API Service Starting on :8081...")

	// Public endpoint
	http.Handle("/login", CORSMiddleware(http.HandlerFunc(LoginHandler)))

	// Protected endpoints
	http.Handle("/history", CORSMiddleware(AuthMiddleware(HistoryHandler(messages))))
	http.Handle("/conversations", CORSMiddleware(AuthMiddleware(ConversationsHandler(messages, directory))))
	http.Handle("/conversations/read", CORSMiddleware(AuthMiddleware(ReadHandler(messages))))
	http.Handle("/messages/send", CORSMiddleware(AuthMiddleware(SendHandler(messages))))
	http.Handle("/messages/delete", CORSMiddleware(AuthMiddleware(DeleteHandler(messages))))

	// Presence lookup: /users/{id}/presence
	http.Handle("/users/", CORSMiddleware(AuthMiddleware(NewPresenceHandler(rdb))))

	if err := http.ListenAndServe(":8081", nil); err != nil {
		log.Fatal(err)
	}
}
