// Package toolexec is the tool executor (spec §4.5): resolves, validates,
// approves, dispatches (parallel-safe concurrently via errgroup, the rest
// serialized), times out, and large-output-substitutes each ToolCallRequest
// in one assistant turn, preserving request order in the returned
// observations. Grounded on the teacher's toolCallBatch/futureInfo
// dispatch-then-collect pattern in runtime/agent/runtime/tool_calls.go,
// generalized from Temporal activity futures to golang.org/x/sync/errgroup
// goroutines since this runtime has no durable-execution engine underneath
// the in-memory loop.
package toolexec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/errgroup"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/history"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/toolreg"
)

// DefaultTimeout is the per-tool timeout applied when a Spec does not
// declare its own (spec §4.5 default).
const DefaultTimeout = 60 * time.Second

// ApprovalPolicy decides whether a high-risk tool call may proceed.
type ApprovalPolicy interface {
	Approve(ctx context.Context, sessionID ids.SessionID, call model.ToolCallRequest) (bool, error)
}

// Executor dispatches resolved ToolCallRequests for one assistant turn.
type Executor struct {
	Registry *toolreg.Registry
	Resolver *toolreg.Resolver
	History  *history.Manager
	Approval ApprovalPolicy
}

// New returns an Executor.
func New(registry *toolreg.Registry, resolver *toolreg.Resolver, hist *history.Manager, approval ApprovalPolicy) *Executor {
	return &Executor{Registry: registry, Resolver: resolver, History: hist, Approval: approval}
}

// Execute runs calls for sessionID and returns one tool-result Message per
// call, in the same order as calls (spec §4.5 step 5 ordering guarantee).
func (e *Executor) Execute(ctx context.Context, sessionID ids.SessionID, calls []model.ToolCallRequest, deps toolreg.Deps) []model.Message {
	results := make([]model.Message, len(calls))

	var parallelIdx, serialIdx []int
	specs := make([]toolreg.Spec, len(calls))
	for i, call := range calls {
		spec, err := e.Registry.Lookup(call.Name)
		if err != nil {
			results[i] = e.observation(call, model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindUnknownTool)})
			continue
		}
		specs[i] = spec
		if spec.SupportsParallelism {
			parallelIdx = append(parallelIdx, i)
		} else {
			serialIdx = append(serialIdx, i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, i := range parallelIdx {
		i := i
		g.Go(func() error {
			results[i] = e.executeOne(gctx, sessionID, calls[i], specs[i], deps)
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range serialIdx {
		results[i] = e.executeOne(ctx, sessionID, calls[i], specs[i], deps)
	}

	return results
}

func (e *Executor) executeOne(ctx context.Context, sessionID ids.SessionID, call model.ToolCallRequest, spec toolreg.Spec, deps toolreg.Deps) model.Message {
	if err := validateParams(spec, call.Params); err != nil {
		return e.observation(call, model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindParamValidation)})
	}

	if spec.RiskLevel == toolreg.RiskHigh && e.Approval != nil {
		ok, err := e.Approval.Approve(ctx, sessionID, call)
		if err != nil || !ok {
			return e.observation(call, model.ToolResultPayload{Success: false, Error: "approval denied", Errkind: string(errs.KindNotApproved)})
		}
	}

	params := injectParentSession(call, sessionID)

	_, handler, err := e.Resolver.Resolve(call.Name, deps)
	if err != nil {
		return e.observation(call, model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindUnknownTool)})
	}

	timeout := DefaultTimeout
	if spec.Timeout > 0 {
		timeout = time.Duration(spec.Timeout) * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := handler(callCtx, params)
		done <- outcome{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return e.observation(call, model.ToolResultPayload{Success: false, Error: res.err.Error(), Errkind: string(errs.KindToolFailure)})
		}
		return e.buildObservation(ctx, sessionID, call, spec, res.out)
	case <-callCtx.Done():
		return e.observation(call, model.ToolResultPayload{Success: false, Error: "tool call timed out", Errkind: string(errs.KindToolTimeout)})
	}
}

func validateParams(spec toolreg.Spec, params json.RawMessage) error {
	if len(spec.InputSchema) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	var schemaDoc any
	if err := json.Unmarshal(spec.InputSchema, &schemaDoc); err != nil {
		return err
	}
	if err := compiler.AddResource(spec.Name+".json", schemaDoc); err != nil {
		return err
	}
	sch, err := compiler.Compile(spec.Name + ".json")
	if err != nil {
		return err
	}
	var paramsDoc any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &paramsDoc); err != nil {
			return err
		}
	}
	return sch.Validate(paramsDoc)
}

// injectParentSession implements spec §4.5 step 4: for the call_agent tool,
// inject the current session_id as _parent_session_id.
func injectParentSession(call model.ToolCallRequest, sessionID ids.SessionID) json.RawMessage {
	if call.Name != "call_agent" || len(call.Params) == 0 {
		return call.Params
	}
	var m map[string]any
	if err := json.Unmarshal(call.Params, &m); err != nil {
		return call.Params
	}
	m["_parent_session_id"] = string(sessionID)
	out, err := json.Marshal(m)
	if err != nil {
		return call.Params
	}
	return out
}

// buildObservation substitutes a handle for oversized output via the
// history manager (spec §4.2, §4.5 step 7) and wraps the result as a tool
// message.
func (e *Executor) buildObservation(ctx context.Context, sessionID ids.SessionID, call model.ToolCallRequest, spec toolreg.Spec, out any) model.Message {
	serialized, err := json.Marshal(out)
	if err != nil {
		return e.observation(call, model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindToolFailure)})
	}
	payload, err := e.History.SubstituteLargeOutput(ctx, sessionID, spec.Name, serialized, true)
	if err != nil {
		return e.observation(call, model.ToolResultPayload{Success: false, Error: err.Error(), Errkind: string(errs.KindInternal)})
	}
	if payload.Handle == "" {
		payload.Output = out
	}
	return e.observation(call, payload)
}

func (e *Executor) observation(call model.ToolCallRequest, payload model.ToolResultPayload) model.Message {
	return model.Message{
		Role:       model.RoleTool,
		ToolCallID: call.ID,
		ToolResult: &payload,
	}
}

// AutoApprove approves every call regardless of risk level, for CLI and test
// wiring where no human is present to gate high-risk tools.
type AutoApprove struct{}

func (AutoApprove) Approve(context.Context, ids.SessionID, model.ToolCallRequest) (bool, error) {
	return true, nil
}

// DenyHighRisk approves none/low risk calls and rejects high-risk ones
// outright, a conservative default for unattended deployments that would
// rather fail a tool call than run it without a human in the loop.
type DenyHighRisk struct {
	Registry *toolreg.Registry
}

func (d DenyHighRisk) Approve(_ context.Context, _ ids.SessionID, call model.ToolCallRequest) (bool, error) {
	spec, err := d.Registry.Lookup(call.Name)
	if err != nil {
		return false, err
	}
	return spec.RiskLevel != toolreg.RiskHigh, nil
}
