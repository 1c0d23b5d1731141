// Package mongostore is a MongoDB-backed session.Store for durable,
// multi-process deployments, grounded on the teacher's
// registry/store/mongo collection-wrapper shape. The optimistic-concurrency
// filter (match on stored version, upsert on first write) is the standard
// Mongo compare-and-swap idiom layered on top of that shape; the teacher's
// own mongo store does not need this since toolset metadata there has no
// versioned writer contract.
package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/session"
)

// Store is a MongoDB implementation of session.Store.
type Store struct {
	collection *mongo.Collection
}

var _ session.Store = (*Store)(nil)

// document is the Mongo representation of a session.State. The state body
// is stored as opaque JSON since model.Message carries an interface-typed
// Parts field bson cannot decode polymorphically without a registry.
type document struct {
	ID        string    `bson:"_id"`
	Version   int       `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
	Data      []byte    `bson:"data"`
}

// New returns a Store using the given collection.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Save implements session.Store.
func (s *Store) Save(ctx context.Context, sessionID ids.SessionID, state session.State, expectedVersion int) error {
	state = state.Clone()
	state.Version = expectedVersion + 1
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("mongostore: marshal state: %w", err)
	}

	filter := bson.M{"_id": string(sessionID), "version": expectedVersion}
	update := bson.M{"$set": bson.M{
		"version":    state.Version,
		"updated_at": state.UpdatedAt,
		"data":       data,
	}}
	res, err := s.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(expectedVersion == 0))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return session.ErrVersionConflict
		}
		return fmt.Errorf("mongostore: save %q: %w", sessionID, err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return session.ErrVersionConflict
	}
	return nil
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, sessionID ids.SessionID) (session.State, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": string(sessionID)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return session.State{}, session.ErrNotFound
		}
		return session.State{}, fmt.Errorf("mongostore: load %q: %w", sessionID, err)
	}
	var state session.State
	if err := json.Unmarshal(doc.Data, &state); err != nil {
		return session.State{}, fmt.Errorf("mongostore: unmarshal state %q: %w", sessionID, err)
	}
	return state, nil
}

// Delete implements session.Store. Idempotent.
func (s *Store) Delete(ctx context.Context, sessionID ids.SessionID) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": string(sessionID)})
	if err != nil {
		return fmt.Errorf("mongostore: delete %q: %w", sessionID, err)
	}
	return nil
}

// List implements session.Store.
func (s *Store) List(ctx context.Context) ([]ids.SessionID, error) {
	cur, err := s.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: list: %w", err)
	}
	defer cur.Close(ctx)

	var out []ids.SessionID
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: decode list entry: %w", err)
		}
		out = append(out, ids.SessionID(doc.ID))
	}
	return out, cur.Err()
}
