package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cohort-labs/messaging-core/pkg/db"
	"github.com/cohort-labs/messaging-core/pkg/snowflake"
	"github.com/cohort-labs/messaging-core/pkg/store"
)

func main() {
	_ = godotenv.Load()

	kafkaBrokersStr := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokersStr == "" {
		kafkaBrokersStr = "localhost:19092"
	}
	brokers := strings.Split(kafkaBrokersStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "chat-events"
	}
	groupID := "messaging-service-group"
	dbCfg := db.ConfigFromEnv("chat")

	// Schema bootstrap. In production this belongs to a migration tool; for
	// now the consumer owns it, starting from the system keyspace.
	sysCfg := dbCfg
	sysCfg.Keyspace = "system"
	sysSession, err := db.Connect(sysCfg)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB system keyspace: %v", err)
	}

	err = sysSession.Query(`CREATE KEYSPACE IF NOT EXISTS chat WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
	if err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	sysSession.Close()

	session, err := db.Connect(dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB chat keyspace: %v", err)
	}
	defer session.Close()

	// One row per participant per message; partitioned by owner so
	// fetch-by-participant is a single-partition read.
	err = session.Query(`CREATE TABLE IF NOT EXISTS user_messages (
		user_id text,
		id bigint,
		sender_id text,
		receiver_id text,
		content text,
		attachments text,
		sent_at timestamp,
		read_at timestamp,
		deleted_everyone boolean,
		PRIMARY KEY (user_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`).Exec()
	if err != nil {
		log.Fatalf("Failed to create user_messages table: %v", err)
	}

	err = session.Query(`CREATE TABLE IF NOT EXISTS users (
		user_id text PRIMARY KEY,
		display_name text,
		role text
	)`).Exec()
	if err != nil {
		log.Fatalf("Failed to create users table: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	consumer := NewConsumer(brokers, topic, groupID, store.NewScyllaStore(session, node))
	defer consumer.Close()

	log.Println("Starting Kafka Consumer...")
	consumer.Consume(context.Background())
}
