package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/session"
)

type fakeSessionStore struct {
	states  map[ids.SessionID]session.State
	listErr error
	delErr  error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{states: map[ids.SessionID]session.State{}}
}

func (f *fakeSessionStore) Save(_ context.Context, id ids.SessionID, state session.State, expectedVersion int) error {
	f.states[id] = state
	return nil
}

func (f *fakeSessionStore) Load(_ context.Context, id ids.SessionID) (session.State, error) {
	s, ok := f.states[id]
	if !ok {
		return session.State{}, errs.New(errs.KindHandleNotFound, "session not found")
	}
	return s, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id ids.SessionID) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.states, id)
	return nil
}

func (f *fakeSessionStore) List(_ context.Context) ([]ids.SessionID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ids.SessionID, 0, len(f.states))
	for id := range f.states {
		out = append(out, id)
	}
	return out, nil
}

func TestHandleListSessionsReturnsAllKnownIDs(t *testing.T) {
	store := newFakeSessionStore()
	store.states["s1"] = session.State{SessionID: "s1"}
	srv := New(DefaultConfig(), nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []sessionSummaryJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SessionID)
}

func TestHandleGetSessionReturnsStateFields(t *testing.T) {
	store := newFakeSessionStore()
	store.states["s1"] = session.State{
		SessionID: "s1", AgentID: "generalist", Version: 3,
		History: []model.Message{
			model.NewTextMessage(model.RoleUser, "hi"),
			model.NewTextMessage(model.RoleAssistant, "hello"),
		},
		PendingQuestion: &session.PendingQuestion{Question: "approve?"},
	}
	srv := New(DefaultConfig(), nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out sessionStateJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "generalist", out.AgentID)
	assert.Equal(t, 3, out.Version)
	assert.Equal(t, 2, out.Messages)
	assert.Equal(t, "approve?", out.Pending)
}

func TestHandleGetSessionUnknownIDReturns404(t *testing.T) {
	srv := New(DefaultConfig(), nil, newFakeSessionStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteSessionReturnsNoContent(t *testing.T) {
	store := newFakeSessionStore()
	store.states["s1"] = session.State{SessionID: "s1"}
	srv := New(DefaultConfig(), nil, store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := store.states["s1"]
	assert.False(t, ok)
}
