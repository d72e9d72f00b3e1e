package store

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"

	"github.com/cohort-labs/messaging-core/pkg/db"
)

// ScyllaDirectory resolves profiles from the users table with a Redis
// cache-aside in front. A missing or unreadable record degrades to the
// placeholder profile rather than failing the caller's render.
type ScyllaDirectory struct {
	session *db.Session
	cache   *redis.Client
	ttl     time.Duration
}

func NewScyllaDirectory(session *db.Session, cache *redis.Client, ttl time.Duration) *ScyllaDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ScyllaDirectory{session: session, cache: cache, ttl: ttl}
}

func (d *ScyllaDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	key := "profile:" + userID

	if d.cache != nil {
		if raw, err := d.cache.Get(ctx, key).Result(); err == nil {
			var p Profile
			if err := json.Unmarshal([]byte(raw), &p); err == nil {
				return p, nil
			}
		}
	}

	var p Profile
	err := d.session.Query(
		`SELECT user_id, display_name, role FROM users WHERE user_id = ?`,
		userID).WithContext(ctx).Scan(&p.UserID, &p.DisplayName, &p.Role)
	if err == gocql.ErrNotFound {
		return Placeholder(userID), nil
	}
	if err != nil {
		return Placeholder(userID), storeErr("directory_lookup", err)
	}

	if d.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := d.cache.Set(ctx, key, raw, d.ttl).Err(); err != nil {
				log.Printf("Failed to cache profile for %s: %v", userID, err)
			}
		}
	}
	return p, nil
}
