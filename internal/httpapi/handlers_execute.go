package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/executor"
	"github.com/rudi77/taskforge/internal/ids"
)

// executeRequest is the shared body of POST /execute and
// POST /execute/stream.
type executeRequest struct {
	Mission   string            `json:"mission"`
	SessionID string            `json:"session_id,omitempty"`
	Profile   profileJSON       `json:"profile"`
	ForceMode executor.ForceMode `json:"force_mode,omitempty"`
}

type profileJSON struct {
	AgentID  string         `json:"agent_id"`
	AutoEpic autoEpicConfig `json:"auto_epic"`
}

type autoEpicConfig struct {
	Enabled             bool    `json:"enabled"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

func (p profileJSON) toProfile() executor.Profile {
	return executor.Profile{
		AgentID: p.AgentID,
		AutoEpic: executor.AutoEpicConfig{
			Enabled:             p.AutoEpic.Enabled,
			ConfidenceThreshold: p.AutoEpic.ConfidenceThreshold,
		},
	}
}

type executionResultJSON struct {
	Status       string `json:"status"`
	FinalAnswer  string `json:"final_answer,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Steps        int    `json:"steps"`
}

func decodeExecuteRequest(r *http.Request) (executeRequest, error) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return executeRequest{}, errs.Newf(errs.KindParamValidation, "invalid request body: %v", err)
	}
	if req.Mission == "" {
		return executeRequest{}, errs.New(errs.KindParamValidation, "mission is required")
	}
	return req, nil
}

// handleExecute implements POST /execute: synchronous, returns the final
// ExecutionResult (spec §6 "synchronous; returns final ExecutionResult").
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExecuteRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.executor.ExecuteMission(r.Context(), req.Mission, req.Profile.toProfile(), ids.SessionID(req.SessionID), req.ForceMode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executionResultJSON{
		Status: string(result.Status), FinalAnswer: result.FinalAnswer, ErrorMessage: result.ErrorMessage, Steps: result.Steps,
	})
}

// handleExecuteStream implements POST /execute/stream: server-sent events
// carrying each StreamEvent in emission order, followed by the terminal
// ExecutionResult (spec §6 "emits StreamEvent in order").
func (s *Server) handleExecuteStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExecuteRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errs.New(errs.KindInternal, "streaming unsupported by response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, outcome := s.executor.ExecuteMissionStreaming(r.Context(), req.Mission, req.Profile.toProfile(), ids.SessionID(req.SessionID), req.ForceMode)
	for evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
		flusher.Flush()
	}

	result := <-outcome
	resultJSON := executionResultJSON{Steps: result.Result.Steps, FinalAnswer: result.Result.FinalAnswer, Status: string(result.Result.Status)}
	if result.Err != nil {
		resultJSON.ErrorMessage = result.Err.Error()
	}
	data, _ := json.Marshal(resultJSON)
	fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	flusher.Flush()
}
