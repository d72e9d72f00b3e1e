package db

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// Config collects the cluster settings the services read from the
// environment, with in-code defaults like everything else in the stack.
type Config struct {
	Hosts          []string
	Keyspace       string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	Retries        int
}

// ConfigFromEnv builds a Config for keyspace from SCYLLA_HOSTS,
// SCYLLA_TIMEOUT_MS and SCYLLA_RETRIES. Unset or unparsable values fall back
// to the defaults.
func ConfigFromEnv(keyspace string) Config {
	cfg := Config{
		Hosts:          []string{"localhost:9042"},
		Keyspace:       keyspace,
		Timeout:        5 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Retries:        3,
	}
	if hosts := os.Getenv("SCYLLA_HOSTS"); hosts != "" {
		cfg.Hosts = strings.Split(hosts, ",")
	}
	if raw := os.Getenv("SCYLLA_TIMEOUT_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			cfg.Timeout = time.Duration(ms) * time.Millisecond
			cfg.ConnectTimeout = cfg.Timeout
		}
	}
	if raw := os.Getenv("SCYLLA_RETRIES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			cfg.Retries = n
		}
	}
	return cfg
}

type Session struct {
	*gocql.Session
}

// Connect opens a quorum session. Message writes touch both participant
// rows, so reads need quorum to observe a completed send.
func Connect(cfg Config) (*Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: cfg.Retries,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	log.Printf("Connected to ScyllaDB keyspace %s", cfg.Keyspace)
	return &Session{Session: session}, nil
}
