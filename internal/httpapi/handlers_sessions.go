package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/session"
)

type sessionSummaryJSON struct {
	SessionID string `json:"session_id"`
}

type sessionStateJSON struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	Version   int    `json:"version"`
	Messages  int    `json:"message_count"`
	HasPlan   bool   `json:"has_plan"`
	Pending   string `json:"pending_question,omitempty"`
}

func toSessionStateJSON(state session.State) sessionStateJSON {
	out := sessionStateJSON{
		SessionID: string(state.SessionID),
		AgentID:   string(state.AgentID),
		Version:   state.Version,
		Messages:  len(state.History),
		HasPlan:   state.Plan != nil,
	}
	if state.PendingQuestion != nil {
		out.Pending = state.PendingQuestion.Question
	}
	return out
}

// handleListSessions implements GET /sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessionIDs, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sessionSummaryJSON, len(sessionIDs))
	for i, id := range sessionIDs {
		out[i] = sessionSummaryJSON{SessionID: string(id)}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetSession implements GET /sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.sessions.Load(r.Context(), ids.SessionID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateJSON(state))
}

// handleDeleteSession implements DELETE /sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(r.Context(), ids.SessionID(id)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
