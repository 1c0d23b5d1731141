// Package redisstore is a Redis-backed toolresult.Store for multi-process
// deployments, so a tool-result handle minted by one worker resolves on
// another. Keys are namespaced "toolresult:{session_id}:{handle}" and carry
// a configurable TTL since tool outputs are reclaimable once a session ends.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/toolresult"
)

// Store is a toolresult.Store backed by a Redis client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Store using client, expiring entries after ttl. A ttl of
// zero disables expiration.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

type record struct {
	ToolName string `json:"tool_name"`
	Output   []byte `json:"output"`
	MimeType string `json:"mime_type"`
}

func redisKey(sessionID ids.SessionID, handle string) string {
	return fmt.Sprintf("toolresult:%s:%s", sessionID, handle)
}

// Put implements toolresult.Store.
func (s *Store) Put(ctx context.Context, sessionID ids.SessionID, payload toolresult.Payload) (string, error) {
	handle := uuidLikeHandle(payload.Output)
	data, err := json.Marshal(record{ToolName: payload.ToolName, Output: payload.Output, MimeType: payload.MimeType})
	if err != nil {
		return "", fmt.Errorf("redisstore: marshal payload: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sessionID, handle), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redisstore: set: %w", err)
	}
	return handle, nil
}

// Fetch implements toolresult.Store.
func (s *Store) Fetch(ctx context.Context, sessionID ids.SessionID, handle string) (toolresult.Payload, error) {
	data, err := s.client.Get(ctx, redisKey(sessionID, handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return toolresult.Payload{}, toolresult.ErrNotFound
		}
		return toolresult.Payload{}, fmt.Errorf("redisstore: get: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return toolresult.Payload{}, fmt.Errorf("redisstore: unmarshal payload: %w", err)
	}
	return toolresult.Payload{ToolName: rec.ToolName, Output: rec.Output, MimeType: rec.MimeType}, nil
}

// Delete implements toolresult.Store. Idempotent.
func (s *Store) Delete(ctx context.Context, sessionID ids.SessionID, handle string) error {
	if err := s.client.Del(ctx, redisKey(sessionID, handle)).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

// uuidLikeHandle derives a stable content-addressed handle so identical
// outputs collapse to the same Redis key.
func uuidLikeHandle(output []byte) string {
	return contentDigest(output)
}
