package mongostore

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/session"
)

// unreachableCollection returns a collection bound to a client that never
// completes server selection, so every operation fails fast with a
// deterministic timeout instead of hanging or touching a real network.
func unreachableCollection(t *testing.T) *mongo.Collection {
	t.Helper()
	opts := options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200 * time.Millisecond).
		SetConnectTimeout(200 * time.Millisecond)
	client, err := mongo.Connect(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("taskforge_test").Collection("sessions")
}

func TestSaveWrapsServerSelectionErrors(t *testing.T) {
	s := New(unreachableCollection(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Save(ctx, ids.SessionID("s1"), session.State{SessionID: "s1"}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongostore: save")
}

func TestLoadWrapsServerSelectionErrors(t *testing.T) {
	s := New(unreachableCollection(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Load(ctx, ids.SessionID("s1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongostore: load")
}

func TestDeleteWrapsServerSelectionErrors(t *testing.T) {
	s := New(unreachableCollection(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Delete(ctx, ids.SessionID("s1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongostore: delete")
}

func TestListWrapsServerSelectionErrors(t *testing.T) {
	s := New(unreachableCollection(t))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.List(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongostore: list")
}
