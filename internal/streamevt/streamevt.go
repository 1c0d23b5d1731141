// Package streamevt defines the typed, ordered event stream the executor
// emits (spec §4.16, §6 "Event payloads") and the bounded-channel emitter
// that enforces its back-pressure contract: a slow consumer stalls the
// producing loop at the next emission boundary rather than dropping
// events. Grounded on the teacher's runtime/agent/stream package, which
// defines the analogous ordered event taxonomy for a single agent run;
// generalized here across the wider set of event types the spec names
// (plan-updated, sub-agent-spawned/completed, epic-escalation,
// round-started/completed, awaiting-input) and the epic orchestrator in
// addition to a single agent loop.
package streamevt

import (
	"context"
	"sync"
	"time"

	"github.com/rudi77/taskforge/internal/ids"
)

// Type identifies a StreamEvent's payload shape (spec §3).
type Type string

const (
	TypeThought           Type = "thought"
	TypeAction            Type = "action"
	TypeObservation       Type = "observation"
	TypePlanUpdated       Type = "plan-updated"
	TypeSubAgentSpawned   Type = "sub-agent-spawned"
	TypeSubAgentCompleted Type = "sub-agent-completed"
	TypeEpicEscalation    Type = "epic-escalation"
	TypeRoundStarted      Type = "round-started"
	TypeRoundCompleted    Type = "round-completed"
	TypeFinalAnswer       Type = "final-answer"
	TypeError             Type = "error"
	TypeAwaitingInput     Type = "awaiting-input"
)

// Event is one entry in the ordered stream (spec §6 "Event payloads").
// Within one session, StepID is monotonically increasing; across sessions
// no ordering is guaranteed (spec §4.16, §5).
type Event struct {
	Type      Type
	SessionID ids.SessionID
	StepID    int64
	Timestamp time.Time
	Payload   any
}

// Payload shapes (spec §6). Not every Type uses a dedicated struct — error
// and final-answer carry a plain string.

type ThoughtPayload struct{ Content string }

type ToolCallSummary struct {
	ID     string
	Name   string
	Params []byte
}
type ActionPayload struct{ ToolCalls []ToolCallSummary }

type ObservationPayload struct {
	ToolCallID string
	Success    bool
	Preview    string
	Handle     string
	Error      string
}

type PlanUpdatedPayload struct{ PlanSnapshot any }

type SubAgentSpawnedPayload struct {
	ChildSessionID ids.SessionID
	Specialist     string
	MissionPreview string
}

type SubAgentCompletedPayload struct {
	ChildSessionID ids.SessionID
	Success        bool
	StepsTaken     int
}

type EpicEscalationPayload struct {
	Complexity string
	Confidence float64
	Reason     string
}

type RoundPayload struct {
	RunID         string
	RoundNumber   int
	TaskCount     int
	JudgeDecision string
}

type AwaitingInputPayload struct {
	Question             string
	RequiredInputsSchema []byte
	RunID                string
}

// Emitter publishes Events on a bounded channel. Emit never drops an event:
// a full channel blocks the caller until the consumer drains it or ctx is
// cancelled (spec §5 "Back-pressure"). Each Emitter owns its own per-session
// step counters; the executor constructs one Emitter per execute_mission
// call (or one shared across an epic run's worker sessions) rather than
// relying on any package-level state.
type Emitter struct {
	ch    chan Event
	mu    sync.Mutex
	steps map[ids.SessionID]int64
}

// NewEmitter returns an Emitter with the given channel capacity.
func NewEmitter(capacity int) *Emitter {
	if capacity <= 0 {
		capacity = 256
	}
	return &Emitter{ch: make(chan Event, capacity), steps: make(map[ids.SessionID]int64)}
}

func (e *Emitter) nextStep(sessionID ids.SessionID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps[sessionID]++
	return e.steps[sessionID]
}

// Events returns the read side of the stream.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Close closes the stream; Emit must not be called again afterward.
func (e *Emitter) Close() { close(e.ch) }

// Emit appends a new event for sessionID with the next monotonic step id.
func (e *Emitter) Emit(ctx context.Context, sessionID ids.SessionID, typ Type, payload any) error {
	evt := Event{Type: typ, SessionID: sessionID, StepID: e.nextStep(sessionID), Timestamp: time.Now().UTC(), Payload: payload}
	select {
	case e.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type emitterCtxKey struct{}

// WithEmitter attaches e to ctx so that agentdef.Factory.Build (reached
// through spawner.Spawn -> Factory.BuildChild, arbitrarily deep) picks it up
// without threading an Events parameter through the fixed spawner.Factory
// and spawner.Agent interfaces. execute_mission_streaming constructs one
// Emitter per top-level call and attaches it to the context it passes down;
// execute_mission (non-streaming) never calls this, leaving loops built
// under that context with Events nil.
func WithEmitter(ctx context.Context, e *Emitter) context.Context {
	return context.WithValue(ctx, emitterCtxKey{}, e)
}

// FromContext returns the Emitter attached by WithEmitter, or nil.
func FromContext(ctx context.Context) *Emitter {
	e, _ := ctx.Value(emitterCtxKey{}).(*Emitter)
	return e
}
