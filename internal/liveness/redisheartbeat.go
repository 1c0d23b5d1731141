package liveness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rudi77/taskforge/internal/ids"
)

// RedisHeartbeatStore is a multi-process HeartbeatStore backed by Redis
// SETEX, a natural fit since a heartbeat is exactly "stale after TTL": the
// key itself expires rather than requiring a separate janitor sweep for
// Get, though ListStale still needs an explicit scan since expired keys
// are simply absent, not reported.
type RedisHeartbeatStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ HeartbeatStore = (*RedisHeartbeatStore)(nil)

// NewRedisHeartbeatStore returns a RedisHeartbeatStore whose keys expire
// after ttl (spec default 60s).
func NewRedisHeartbeatStore(client *redis.Client, ttl time.Duration) *RedisHeartbeatStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisHeartbeatStore{client: client, ttl: ttl, prefix: "heartbeat:"}
}

func (r *RedisHeartbeatStore) key(sessionID ids.SessionID) string {
	return r.prefix + string(sessionID)
}

// Beat implements HeartbeatStore.
func (r *RedisHeartbeatStore) Beat(ctx context.Context, sessionID ids.SessionID, progressMarker string) error {
	h := Heartbeat{SessionID: sessionID, At: time.Now().UTC(), ProgressMarker: progressMarker}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("liveness: marshal heartbeat: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("liveness: beat %q: %w", sessionID, err)
	}
	return nil
}

// Get implements HeartbeatStore.
func (r *RedisHeartbeatStore) Get(ctx context.Context, sessionID ids.SessionID) (Heartbeat, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Heartbeat{}, ErrNotFound
		}
		return Heartbeat{}, fmt.Errorf("liveness: get %q: %w", sessionID, err)
	}
	var h Heartbeat
	if err := json.Unmarshal(data, &h); err != nil {
		return Heartbeat{}, fmt.Errorf("liveness: unmarshal heartbeat %q: %w", sessionID, err)
	}
	return h, nil
}

// ListStale implements HeartbeatStore. Since Redis evicts keys past their
// own TTL, a surviving key is by definition fresh; this scans for entries
// whose recorded timestamp is nonetheless older than ttl (clock skew or a
// shorter caller-supplied window than the key's own expiry).
func (r *RedisHeartbeatStore) ListStale(ctx context.Context, ttl time.Duration) ([]Heartbeat, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	var out []Heartbeat
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var h Heartbeat
		if err := json.Unmarshal(data, &h); err != nil {
			continue
		}
		if h.At.Before(cutoff) {
			out = append(out, h)
		}
	}
	return out, iter.Err()
}
