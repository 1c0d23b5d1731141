package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a multi-process Store backed by Redis: each run's
// checkpoint is a JSON string value, and a waiting-external run id is also
// tracked in a set so ListWaiting does not require a full key scan. A
// workflow checkpoint persists across hours or days (spec §1), so unlike
// RedisHeartbeatStore it carries no TTL of its own.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a RedisStore over client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "workflow:checkpoint:"}
}

func (r *RedisStore) key(runID string) string {
	return r.prefix + runID
}

func (r *RedisStore) waitingSetKey() string {
	return r.prefix + "waiting"
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, checkpoint Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("workflow: marshal checkpoint: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(checkpoint.RunID), data, 0)
	if checkpoint.Status == StatusWaitingExternal {
		pipe.SAdd(ctx, r.waitingSetKey(), checkpoint.RunID)
	} else {
		pipe.SRem(ctx, r.waitingSetKey(), checkpoint.RunID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("workflow: save checkpoint %q: %w", checkpoint.RunID, err)
	}
	return nil
}

// Latest implements Store.
func (r *RedisStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	data, err := r.client.Get(ctx, r.key(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, fmt.Errorf("workflow: get checkpoint %q: %w", runID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("workflow: unmarshal checkpoint %q: %w", runID, err)
	}
	return cp, nil
}

// ListWaiting implements Store.
func (r *RedisStore) ListWaiting(ctx context.Context) ([]Checkpoint, error) {
	runIDs, err := r.client.SMembers(ctx, r.waitingSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("workflow: list waiting run ids: %w", err)
	}
	out := make([]Checkpoint, 0, len(runIDs))
	for _, runID := range runIDs {
		cp, err := r.Latest(ctx, runID)
		if err != nil {
			continue
		}
		if cp.Status == StatusWaitingExternal {
			out = append(out, cp)
		}
	}
	return out, nil
}
