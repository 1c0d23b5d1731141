package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/ids"
)

func TestBeatOverwritesPriorHeartbeat(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	id := ids.SessionID("sess-1")

	require.NoError(t, store.Beat(ctx, id, "step-1"))
	require.NoError(t, store.Beat(ctx, id, "step-2"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "step-2", got.ProgressMarker)
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	_, err := NewMemStore().Get(context.Background(), ids.SessionID("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStaleFiltersByTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	fresh := ids.SessionID("fresh")
	stale := ids.SessionID("stale")

	require.NoError(t, store.Beat(ctx, fresh, "now"))
	require.NoError(t, store.Beat(ctx, stale, "old"))
	store.mu.Lock()
	old := store.heartbeats[stale]
	old.At = time.Now().UTC().Add(-time.Hour)
	store.heartbeats[stale] = old
	store.mu.Unlock()

	got, err := store.ListStale(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale, got[0].SessionID)
}

func TestCheckpointSaveAppendsAndLatestReturnsNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	id := ids.SessionID("sess-2")

	require.NoError(t, store.Save(ctx, id, Checkpoint{Step: 1, Label: "first"}))
	require.NoError(t, store.Save(ctx, id, Checkpoint{Step: 2, Label: "second"}))

	latest, err := store.Latest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.Label)

	all, err := store.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Label)
}

func TestCheckpointLatestUnknownSessionReturnsNotFound(t *testing.T) {
	_, err := NewMemStore().Latest(context.Background(), ids.SessionID("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}
