// Package workflow implements the resumable workflow runtime (spec §4.18):
// a protocol for pausing a run at a wait gate, persisting a
// WorkflowCheckpoint, and resuming it on an inbound reply, with
// message-id/payload-hash deduplication so a replayed or duplicate resume
// event is a no-op. Grounded on the teacher's interrupt.Controller
// (pause/resume signaling for a running agent), generalized from a
// resume signal into the full checkpoint/validate/resume protocol the
// spec describes, since this runtime has no durable workflow engine of
// its own to delegate the wait gate to.
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rudi77/taskforge/internal/errs"
)

// Status is a WorkflowCheckpoint's lifecycle state (spec §3 "WorkflowCheckpoint").
type Status string

const (
	StatusRunning         Status = "running"
	StatusWaitingExternal Status = "waiting-external"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// DefaultDedupWindow bounds how long an ingested message id or payload hash
// is remembered for duplicate-resume detection (spec §4.18 "sliding window").
const DefaultDedupWindow = 24 * time.Hour

// Checkpoint is a durable pause point for a human-in-the-loop wait gate
// (spec §3 "WorkflowCheckpoint").
type Checkpoint struct {
	RunID          string
	NodeID         string
	Status         Status
	BlockingReason string
	RequiredInputs json.RawMessage
	NextDeadline   *time.Time
	StateBlob      []byte
	CreatedAt      time.Time
}

// ErrNotFound indicates no checkpoint exists for a run id.
var ErrNotFound = errors.New("workflow: checkpoint not found")

// Store persists WorkflowCheckpoints, keyed by run id.
type Store interface {
	// Save replaces the current checkpoint for checkpoint.RunID.
	Save(ctx context.Context, checkpoint Checkpoint) error

	// Latest returns the most recently saved checkpoint for runID, or
	// ErrNotFound.
	Latest(ctx context.Context, runID string) (Checkpoint, error)

	// ListWaiting returns every checkpoint currently in status
	// waiting-external, used by deadline-expiration scanning.
	ListWaiting(ctx context.Context) ([]Checkpoint, error)
}

// Gateway is the external communication collaborator send_request
// delegates dispatch to (spec §4.18 "send_request"): email, chat, a
// ticketing system, or any channel capable of relaying a question and
// waiting for a reply out of band.
type Gateway interface {
	SendRequest(ctx context.Context, runID, recipient, question string, requiredInputs json.RawMessage) error
}

// ResumeResult is what resume_from_checkpoint and a successful
// ingest_resume_event both produce: the checkpoint's node id and the
// state blob with the inbound payload merged in, ready for the executor
// to re-enter its engine at NodeID.
type ResumeResult struct {
	RunID       string
	NodeID      string
	MergedState []byte
	Checkpoint  Checkpoint
}

// FollowUpRequest is emitted when an inbound resume payload fails
// required_inputs validation (spec §4.18 "emit a refined follow-up
// request"); the workflow stays in waiting-external.
type FollowUpRequest struct {
	RunID   string
	Reason  string
	Missing []string
}

// EscalationHook is invoked by CheckDeadlines for a checkpoint whose
// NextDeadline has passed (spec §4.18 "deadline expiration triggers an
// escalation hook"). The checkpoint remains resumable; the hook only
// notifies.
type EscalationHook func(ctx context.Context, checkpoint Checkpoint)

// Runtime drives the checkpoint/validate/resume protocol.
type Runtime struct {
	Store      Store
	Gateway    Gateway
	Escalation EscalationHook
	DedupWindow time.Duration

	mu    sync.Mutex
	dedup map[string]dedupEntry
}

type dedupEntry struct {
	result ResumeResult
	at     time.Time
}

// New returns a Runtime over store, with an optional gateway and
// escalation hook.
func New(store Store, gateway Gateway, escalation EscalationHook) *Runtime {
	return &Runtime{Store: store, Gateway: gateway, Escalation: escalation, DedupWindow: DefaultDedupWindow, dedup: make(map[string]dedupEntry)}
}

// CreateCheckpoint persists a new WorkflowCheckpoint in status
// waiting-external (spec §4.18 "create_checkpoint").
func (r *Runtime) CreateCheckpoint(ctx context.Context, runID, nodeID string, state []byte, requiredInputs json.RawMessage, blockingReason string) (Checkpoint, error) {
	cp := Checkpoint{
		RunID:          runID,
		NodeID:         nodeID,
		Status:         StatusWaitingExternal,
		BlockingReason: blockingReason,
		RequiredInputs: requiredInputs,
		StateBlob:      state,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.Store.Save(ctx, cp); err != nil {
		return Checkpoint{}, fmt.Errorf("workflow: create checkpoint: %w", err)
	}
	return cp, nil
}

// SendRequest delegates dispatch of the wait-gate question to the
// configured Gateway (spec §4.18 "send_request").
func (r *Runtime) SendRequest(ctx context.Context, runID, recipient, question string, requiredInputs json.RawMessage) error {
	if r.Gateway == nil {
		return errs.New(errs.KindInternal, "workflow: no gateway configured for send_request")
	}
	return r.Gateway.SendRequest(ctx, runID, recipient, question, requiredInputs)
}

// ValidateResumePayload schema-checks payload against requiredInputs
// (spec §4.18 "validate_resume_payload"), mirroring the tool executor's
// santhosh-tekuri/jsonschema validation of tool call params.
func ValidateResumePayload(requiredInputs, payload json.RawMessage) error {
	if len(requiredInputs) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	var schemaDoc any
	if err := json.Unmarshal(requiredInputs, &schemaDoc); err != nil {
		return fmt.Errorf("workflow: invalid required_inputs schema: %w", err)
	}
	if err := compiler.AddResource("required_inputs.json", schemaDoc); err != nil {
		return err
	}
	sch, err := compiler.Compile("required_inputs.json")
	if err != nil {
		return err
	}
	var payloadDoc any
	if err := json.Unmarshal(payload, &payloadDoc); err != nil {
		return errs.Newf(errs.KindResumeValidation, "workflow: resume payload is not valid JSON: %v", err)
	}
	if err := sch.Validate(payloadDoc); err != nil {
		return errs.Wrap(errs.KindResumeValidation, "workflow: resume payload failed schema validation", err)
	}
	return nil
}

// IngestResumeEvent normalizes an inbound reply, deduplicates it by
// messageID (falling back to a payload hash when messageID is empty),
// validates it against the checkpoint's required_inputs, and on success
// merges it into the checkpoint's state and marks the checkpoint
// completed (spec §4.18 "ingest_resume_event", idempotence paragraph).
// A schema mismatch leaves the checkpoint waiting-external and returns a
// FollowUpRequest instead of a ResumeResult.
func (r *Runtime) IngestResumeEvent(ctx context.Context, runID, messageID string, payload json.RawMessage, senderMetadata map[string]string) (*ResumeResult, *FollowUpRequest, error) {
	key := dedupKey(runID, messageID, payload)

	r.mu.Lock()
	r.evictExpired()
	if cached, ok := r.dedup[key]; ok {
		r.mu.Unlock()
		result := cached.result
		return &result, nil, nil
	}
	r.mu.Unlock()

	cp, err := r.Store.Latest(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: ingest resume event: %w", err)
	}
	if cp.Status != StatusWaitingExternal {
		return nil, nil, errs.Newf(errs.KindResumeValidation, "workflow: run %s is not waiting on external input", runID)
	}

	if err := ValidateResumePayload(cp.RequiredInputs, payload); err != nil {
		return nil, &FollowUpRequest{RunID: runID, Reason: err.Error()}, nil
	}

	merged, err := mergeState(cp.StateBlob, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: merge resume payload into state: %w", err)
	}

	cp.Status = StatusCompleted
	cp.StateBlob = merged
	if err := r.Store.Save(ctx, cp); err != nil {
		return nil, nil, fmt.Errorf("workflow: save resumed checkpoint: %w", err)
	}

	result := ResumeResult{RunID: runID, NodeID: cp.NodeID, MergedState: merged, Checkpoint: cp}
	r.mu.Lock()
	r.dedup[key] = dedupEntry{result: result, at: time.Now().UTC()}
	r.mu.Unlock()

	return &result, nil, nil
}

// ResumeFromCheckpoint loads the latest checkpoint for runID without
// ingesting a new event, for callers that already hold a validated
// payload out of band (spec §4.18 "resume_from_checkpoint").
func (r *Runtime) ResumeFromCheckpoint(ctx context.Context, runID string) (ResumeResult, error) {
	cp, err := r.Store.Latest(ctx, runID)
	if err != nil {
		return ResumeResult{}, fmt.Errorf("workflow: resume from checkpoint: %w", err)
	}
	return ResumeResult{RunID: runID, NodeID: cp.NodeID, MergedState: cp.StateBlob, Checkpoint: cp}, nil
}

// CheckDeadlines scans every waiting-external checkpoint and invokes the
// escalation hook for any whose NextDeadline has passed. The checkpoint
// itself is left untouched: it remains resumable until explicitly
// cancelled (spec §4.18).
func (r *Runtime) CheckDeadlines(ctx context.Context) error {
	if r.Escalation == nil {
		return nil
	}
	waiting, err := r.Store.ListWaiting(ctx)
	if err != nil {
		return fmt.Errorf("workflow: check deadlines: %w", err)
	}
	now := time.Now().UTC()
	for _, cp := range waiting {
		if cp.NextDeadline != nil && now.After(*cp.NextDeadline) {
			r.Escalation(ctx, cp)
		}
	}
	return nil
}

func (r *Runtime) evictExpired() {
	window := r.DedupWindow
	if window <= 0 {
		window = DefaultDedupWindow
	}
	cutoff := time.Now().UTC().Add(-window)
	for k, v := range r.dedup {
		if v.at.Before(cutoff) {
			delete(r.dedup, k)
		}
	}
}

func dedupKey(runID, messageID string, payload json.RawMessage) string {
	if messageID != "" {
		return runID + "|msg:" + messageID
	}
	sum := sha256.Sum256(payload)
	return runID + "|hash:" + hex.EncodeToString(sum[:])
}

// mergeState overlays payload's fields onto base, treating both as JSON
// objects. base may be empty (resuming a checkpoint whose state blob was
// never populated beyond the pending question).
func mergeState(base, payload json.RawMessage) ([]byte, error) {
	merged := map[string]any{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("base state is not a JSON object: %w", err)
		}
	}
	var overlay map[string]any
	if err := json.Unmarshal(payload, &overlay); err != nil {
		return nil, fmt.Errorf("resume payload is not a JSON object: %w", err)
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}
