// Package loop implements the agent loop state machine (spec §4.8): the
// single execute(mission, session_id) entry point that drives a session to
// a terminal state through init / building-prompt / calling-llm /
// dispatching-tools / post-observation / awaiting-input / finish-step /
// terminal-* states. Grounded on the teacher's
// runtime/agent/runtime/workflow_loop.go + workflow_state.go (the step
// state machine shape and terminal-status enumeration) generalized from a
// Temporal workflow loop to a plain in-process loop; durable delivery of
// the wait-gate's external response is handled out of process by
// internal/workflow/temporal's Gateway, not by this package.
package loop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rudi77/taskforge/internal/budget"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/history"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/plantool"
	"github.com/rudi77/taskforge/internal/promptctx"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/streamevt"
	"github.com/rudi77/taskforge/internal/toolexec"
	"github.com/rudi77/taskforge/internal/toolreg"
)

// Status is the terminal (or running) lifecycle status of one execute call
// (spec §3 "ExecutionResult").
type Status string

const (
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusMaxStepsReached Status = "max-steps-reached"
	StatusCancelled       Status = "cancelled"
	StatusWaitingExternal Status = "waiting-external"
)

// ExecutionResult is returned by a terminated execute call (spec §3).
type ExecutionResult struct {
	Status       Status
	FinalAnswer  string
	ErrorMessage string
	Steps        int
	Usage        model.TokenUsage
}

// DefaultMaxSteps bounds the loop absent an explicit cap.
const DefaultMaxSteps = 50

// waitGateTools names tool calls that suspend the loop for external input
// (spec §3 "awaiting-input"); ask_user is the built-in one.
var waitGateTools = map[string]bool{"ask_user": true}

// Strategy is consulted by the loop at turn boundaries; the four
// strategies in internal/strategy implement this to compose the same step
// machine differently (spec §4.9).
type Strategy interface {
	// Name identifies the strategy for logging/telemetry.
	Name() string

	// Init runs once before the first turn, e.g. plan-then-execute's
	// initial planning call. May leave state.Plan nil if unused.
	Init(ctx context.Context, client modelclient.Client, systemPrompt, mission string, state *session.State) error

	// AugmentSystemPrompt lets a strategy bias the per-turn prompt (e.g.
	// interleaved plan-and-act nudging toward plan maintenance on turn 0).
	AugmentSystemPrompt(base string, state *session.State, step int) string

	// OnStepComplete runs after tool observations are appended (or after
	// content-only output). It advances any plan-item bookkeeping and
	// decides whether the loop is done.
	OnStepComplete(ctx context.Context, state *session.State, hadToolCalls bool) (done bool, finalAnswer string, err error)
}

// Deps bundles the loop's collaborators.
type Deps struct {
	Sessions    session.Store
	Model       modelclient.Client
	Budgeter    *budget.Budgeter
	Prompt      *promptctx.Builder
	Executor    *toolexec.Executor
	ToolDeps    toolreg.Deps
	PlanMutator *plantool.Mutator // handles "plan" tool calls directly, since they mutate state.Plan which a stateless toolreg.Handler cannot reach
	Events      *streamevt.Emitter // optional; nil disables event emission
	MaxSteps    int
	TurnTimeout time.Duration
}

// Loop drives one session through the state machine to a terminal state.
type Loop struct {
	deps     Deps
	strategy Strategy
}

// New returns a Loop using strategy to compose step-boundary decisions.
func New(deps Deps, strategy Strategy) *Loop {
	if deps.MaxSteps <= 0 {
		deps.MaxSteps = DefaultMaxSteps
	}
	return &Loop{deps: deps, strategy: strategy}
}

// Execute drives sessionID to a terminal ExecutionResult. ctx cancellation
// is observed at every state boundary and propagates into in-flight model
// and tool calls (spec §5 "Cancellation").
func (l *Loop) Execute(ctx context.Context, mission string, sessionID ids.SessionID, agentID ids.AgentIdent, systemPrompt string, hist *history.Manager, tools []model.ToolDefinition) (ExecutionResult, error) {
	state, expectedVersion, err := l.loadOrInit(ctx, sessionID, agentID)
	if err != nil {
		return ExecutionResult{Status: StatusFailed, ErrorMessage: err.Error()}, err
	}
	hist.Seed(state.History)

	if state.Version == 0 && len(hist.Messages()) == 0 {
		if err := l.strategy.Init(ctx, l.deps.Model, systemPrompt, mission, &state); err != nil {
			return l.fail(ctx, sessionID, err)
		}
		_ = hist.Append(ctx, model.NewTextMessage(model.RoleUser, mission))
	}

	var usage model.TokenUsage
	for step := 0; step < l.deps.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return l.cancel(ctx, sessionID, &state, hist, expectedVersion)
		}

		augmented := l.strategy.AugmentSystemPrompt(systemPrompt, &state, step)
		sysMsg := l.deps.Prompt.Build(augmented, state.Plan, nil)
		turnMessages := append([]model.Message{sysMsg}, hist.Messages()...)

		budgeted, err := l.deps.Budgeter.Preflight(turnMessages, tools, "", l.deps.Budgeter.MessageOverhead*200)
		if err != nil {
			return l.fail(ctx, sessionID, err)
		}

		resp, err := l.deps.Model.Complete(ctx, modelclient.Request{Messages: budgeted, Tools: tools})
		if err != nil {
			return l.fail(ctx, sessionID, err)
		}
		usage.Add(resp.Usage)

		assistantMsg := model.Message{Role: model.RoleAssistant, Parts: resp.Content, ToolCalls: resp.ToolCalls}
		_ = hist.Append(ctx, assistantMsg)
		if text := assistantMsg.Text(); text != "" {
			l.emit(ctx, sessionID, streamevt.TypeThought, streamevt.ThoughtPayload{Content: text})
		}

		if len(resp.ToolCalls) == 0 {
			done, finalAnswer, err := l.strategy.OnStepComplete(ctx, &state, false)
			if err != nil {
				return l.fail(ctx, sessionID, err)
			}
			if expectedVersion, err = l.save(ctx, sessionID, &state, hist, expectedVersion); err != nil {
				return l.fail(ctx, sessionID, err)
			}
			if done {
				l.emit(ctx, sessionID, streamevt.TypeFinalAnswer, finalAnswer)
				return ExecutionResult{Status: StatusCompleted, FinalAnswer: finalAnswer, Steps: step + 1, Usage: usage}, nil
			}
			continue
		}

		l.emit(ctx, sessionID, streamevt.TypeAction, streamevt.ActionPayload{ToolCalls: toolCallSummaries(resp.ToolCalls)})

		dispatchCalls, planResults := l.interceptPlanCalls(ctx, &state, resp.ToolCalls)
		observations := make([]model.Message, len(resp.ToolCalls))
		if len(dispatchCalls.indices) > 0 {
			dispatched := l.deps.Executor.Execute(ctx, sessionID, dispatchCalls.calls, l.deps.ToolDeps)
			for i, idx := range dispatchCalls.indices {
				observations[idx] = dispatched[i]
			}
		}
		for idx, msg := range planResults {
			observations[idx] = msg
		}

		for i, obs := range observations {
			hist.Append(ctx, obs) //nolint:errcheck
			l.emitObservation(ctx, sessionID, resp.ToolCalls[i], obs)
			if waitGateTools[resp.ToolCalls[i].Name] {
				state.PendingQuestion = pendingQuestionFrom(resp.ToolCalls[i])
				if expectedVersion, err = l.save(ctx, sessionID, &state, hist, expectedVersion); err != nil {
					return l.fail(ctx, sessionID, err)
				}
				l.emit(ctx, sessionID, streamevt.TypeAwaitingInput, streamevt.AwaitingInputPayload{
					Question: state.PendingQuestion.Question, RequiredInputsSchema: state.PendingQuestion.RequiredInputsSchema,
				})
				return ExecutionResult{Status: StatusWaitingExternal, Steps: step + 1, Usage: usage}, nil
			}
		}

		done, finalAnswer, err := l.strategy.OnStepComplete(ctx, &state, true)
		if err != nil {
			return l.fail(ctx, sessionID, err)
		}
		if expectedVersion, err = l.save(ctx, sessionID, &state, hist, expectedVersion); err != nil {
			return l.fail(ctx, sessionID, err)
		}
		if done {
			l.emit(ctx, sessionID, streamevt.TypeFinalAnswer, finalAnswer)
			return ExecutionResult{Status: StatusCompleted, FinalAnswer: finalAnswer, Steps: step + 1, Usage: usage}, nil
		}
	}

	_ = l.deps.Sessions.Save(ctx, sessionID, state, expectedVersion)
	return ExecutionResult{Status: StatusMaxStepsReached, Steps: l.deps.MaxSteps, Usage: usage}, errs.New(errs.KindMaxStepsReached, "max steps reached")
}

// emit publishes payload on sessionID's step sequence if an Emitter is
// configured; nil Events disables the stream entirely (spec's streaming
// execute_mission_streaming variant wires one, the plain execute_mission
// variant need not).
func (l *Loop) emit(ctx context.Context, sessionID ids.SessionID, typ streamevt.Type, payload any) {
	if l.deps.Events == nil {
		return
	}
	_ = l.deps.Events.Emit(ctx, sessionID, typ, payload)
}

func (l *Loop) emitObservation(ctx context.Context, sessionID ids.SessionID, call model.ToolCallRequest, obs model.Message) {
	if l.deps.Events == nil || obs.ToolResult == nil {
		return
	}
	r := obs.ToolResult
	l.emit(ctx, sessionID, streamevt.TypeObservation, streamevt.ObservationPayload{
		ToolCallID: call.ID, Success: r.Success, Preview: r.Preview, Handle: r.Handle, Error: r.Error,
	})
}

func toolCallSummaries(calls []model.ToolCallRequest) []streamevt.ToolCallSummary {
	out := make([]streamevt.ToolCallSummary, len(calls))
	for i, c := range calls {
		out[i] = streamevt.ToolCallSummary{ID: c.ID, Name: c.Name, Params: c.Params}
	}
	return out
}

func (l *Loop) loadOrInit(ctx context.Context, sessionID ids.SessionID, agentID ids.AgentIdent) (session.State, int, error) {
	state, err := l.deps.Sessions.Load(ctx, sessionID)
	if err == nil {
		return state, state.Version, nil
	}
	if err != session.ErrNotFound {
		return session.State{}, 0, err
	}
	return session.State{SessionID: sessionID, AgentID: agentID}, 0, nil
}

func (l *Loop) save(ctx context.Context, sessionID ids.SessionID, state *session.State, hist *history.Manager, expectedVersion int) (int, error) {
	state.History = hist.Messages()
	if err := l.deps.Sessions.Save(ctx, sessionID, *state, expectedVersion); err != nil {
		return expectedVersion, err
	}
	return expectedVersion + 1, nil
}

func (l *Loop) fail(ctx context.Context, sessionID ids.SessionID, err error) (ExecutionResult, error) {
	l.emit(ctx, sessionID, streamevt.TypeError, err.Error())
	return ExecutionResult{Status: StatusFailed, ErrorMessage: err.Error()}, err
}

func (l *Loop) cancel(ctx context.Context, sessionID ids.SessionID, state *session.State, hist *history.Manager, expectedVersion int) (ExecutionResult, error) {
	state.History = hist.Messages()
	_ = l.deps.Sessions.Save(ctx, sessionID, *state, expectedVersion)
	return ExecutionResult{Status: StatusCancelled}, errs.New(errs.KindCancelled, "execution cancelled")
}

// dispatchSet is the subset of one turn's tool calls routed through the
// generic toolreg executor, alongside their original indices so results can
// be reinserted in request order.
type dispatchSet struct {
	calls   []model.ToolCallRequest
	indices []int
}

// interceptPlanCalls splits calls into the set dispatched through the
// generic tool executor and the set handled directly via l.deps.PlanMutator
// (plan tool calls need state.Plan, which a stateless toolreg.Handler
// cannot reach). Returns the dispatch set and a map of original index to
// the already-built plan-tool observation.
func (l *Loop) interceptPlanCalls(ctx context.Context, state *session.State, calls []model.ToolCallRequest) (dispatchSet, map[int]model.Message) {
	var ds dispatchSet
	planResults := make(map[int]model.Message)
	for i, call := range calls {
		if call.Name != plantool.Name || l.deps.PlanMutator == nil {
			ds.calls = append(ds.calls, call)
			ds.indices = append(ds.indices, i)
			continue
		}
		next, err := l.deps.PlanMutator.Apply(ctx, state.Plan, call.Params)
		if err != nil {
			planResults[i] = model.Message{Role: model.RoleTool, ToolCallID: call.ID, ToolResult: &model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindOf(err))}}
			continue
		}
		state.Plan = next
		planResults[i] = model.Message{Role: model.RoleTool, ToolCallID: call.ID, ToolResult: &model.ToolResultPayload{Success: true, Output: next}}
	}
	return ds, planResults
}

// pendingQuestionFrom extracts question/required_inputs_schema from an
// ask_user call's params for persistence in session.State (spec §3
// "PendingQuestion").
func pendingQuestionFrom(call model.ToolCallRequest) *session.PendingQuestion {
	var req struct {
		Question            string          `json:"question"`
		RequiredInputsSchema json.RawMessage `json:"required_inputs_schema"`
	}
	_ = json.Unmarshal(call.Params, &req)
	return &session.PendingQuestion{Question: req.Question, RequiredInputsSchema: req.RequiredInputsSchema}
}
