package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/executor"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/workflow"
)

type checkpointJSON struct {
	RunID          string          `json:"run_id"`
	NodeID         string          `json:"node_id"`
	Status         string          `json:"status"`
	BlockingReason string          `json:"blocking_reason,omitempty"`
	RequiredInputs json.RawMessage `json:"required_inputs,omitempty"`
}

func toCheckpointJSON(cp workflow.Checkpoint) checkpointJSON {
	return checkpointJSON{
		RunID: cp.RunID, NodeID: cp.NodeID, Status: string(cp.Status),
		BlockingReason: cp.BlockingReason, RequiredInputs: cp.RequiredInputs,
	}
}

// workflowWaitRequest is POST /workflows/wait's body: create_checkpoint
// plus an optional send_request dispatch in one call (spec §4.18).
type workflowWaitRequest struct {
	RunID          string          `json:"run_id"`
	NodeID         string          `json:"node_id"`
	State          json.RawMessage `json:"state"`
	RequiredInputs json.RawMessage `json:"required_inputs"`
	BlockingReason string          `json:"blocking_reason"`
	Recipient      string          `json:"recipient,omitempty"`
	Question       string          `json:"question,omitempty"`
}

// handleWorkflowWait implements POST /workflows/wait: persists a new
// WorkflowCheckpoint in status waiting-external, optionally dispatching the
// wait-gate question through the configured Gateway when recipient/question
// are both given (spec §4.18 "create_checkpoint", "send_request").
func (s *Server) handleWorkflowWait(w http.ResponseWriter, r *http.Request) {
	var req workflowWaitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindParamValidation, "invalid request body: %v", err))
		return
	}
	if req.RunID == "" || req.NodeID == "" {
		writeError(w, errs.New(errs.KindParamValidation, "run_id and node_id are required"))
		return
	}

	cp, err := s.workflow.CreateCheckpoint(r.Context(), req.RunID, req.NodeID, req.State, req.RequiredInputs, req.BlockingReason)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Recipient != "" && req.Question != "" {
		if err := s.workflow.SendRequest(r.Context(), req.RunID, req.Recipient, req.Question, req.RequiredInputs); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, toCheckpointJSON(cp))
}

// handleWorkflowGet implements GET /workflows/{run_id}.
func (s *Server) handleWorkflowGet(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	cp, err := s.workflow.ResumeFromCheckpoint(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckpointJSON(cp.Checkpoint))
}

// resumeRequest is the wire-level resume body (spec §6 "Resume protocol
// (wire level)"): run_id comes from the URL, not the body.
type resumeRequest struct {
	Payload        json.RawMessage   `json:"payload"`
	SenderMetadata map[string]string `json:"sender_metadata,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
}

type followUpJSON struct {
	Reason  string   `json:"reason"`
	Missing []string `json:"missing,omitempty"`
}

// handleWorkflowResume implements POST /workflows/{run_id}/resume:
// ingest_resume_event without re-entering execution (spec §4.18
// "ingest_resume_event"). A schema mismatch returns the typed follow-up
// request describing the mismatched fields (spec §6).
func (s *Server) handleWorkflowResume(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindParamValidation, "invalid request body: %v", err))
		return
	}

	result, followUp, err := s.workflow.IngestResumeEvent(r.Context(), runID, req.MessageID, req.Payload, req.SenderMetadata)
	if err != nil {
		writeError(w, err)
		return
	}
	if followUp != nil {
		writeJSON(w, http.StatusBadRequest, followUpJSON{Reason: followUp.Reason, Missing: followUp.Missing})
		return
	}
	writeJSON(w, http.StatusOK, toCheckpointJSON(result.Checkpoint))
}

// handleWorkflowResumeAndContinue implements
// POST /workflows/{run_id}/resume-and-continue: ingest_resume_event, then
// re-enter the agent loop at the checkpoint's node id (spec §4.18
// "resume_from_checkpoint ... re-enters the engine at node_id"). This
// runtime has no standalone node-graph engine to re-enter; a checkpoint's
// node_id is the session_id the wait-gate paused, so continuation means
// appending the merged answer to that session's history and calling
// execute_mission again against the same session_id, which internal/loop
// resumes from rather than restarting (spec §6 "response includes the new
// StreamEvent sequence produced by the resumed execution").
func (s *Server) handleWorkflowResumeAndContinue(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	var req struct {
		resumeRequest
		Profile profileJSON `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindParamValidation, "invalid request body: %v", err))
		return
	}

	result, followUp, err := s.workflow.IngestResumeEvent(r.Context(), runID, req.MessageID, req.Payload, req.SenderMetadata)
	if err != nil {
		writeError(w, err)
		return
	}
	if followUp != nil {
		writeJSON(w, http.StatusBadRequest, followUpJSON{Reason: followUp.Reason, Missing: followUp.Missing})
		return
	}

	sessionID := ids.SessionID(result.NodeID)
	if err := appendResumeAnswer(r.Context(), s.sessions, sessionID, result.MergedState); err != nil {
		writeError(w, err)
		return
	}

	execResult, err := s.executor.ExecuteMission(r.Context(), "", req.Profile.toProfile(), sessionID, executor.ForceModeNone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executionResultJSON{
		Status: string(execResult.Status), FinalAnswer: execResult.FinalAnswer, ErrorMessage: execResult.ErrorMessage, Steps: execResult.Steps,
	})
}

// appendResumeAnswer records the merged resume payload as a new user
// message on sessionID's persisted history and clears its pending
// question, so the next execute_mission call continues the same
// conversation instead of re-asking (spec §4.18 resume semantics, §4.1
// optimistic-concurrency Save).
func appendResumeAnswer(ctx context.Context, store session.Store, sessionID ids.SessionID, mergedState []byte) error {
	state, err := store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	state.History = append(state.History, model.NewTextMessage(model.RoleUser, string(mergedState)))
	state.PendingQuestion = nil
	return store.Save(ctx, sessionID, state, state.Version)
}
