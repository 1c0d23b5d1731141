package agentdef

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/toolreg"
)

// askUserSchema declares the required_inputs contract spec §3 describes for
// a wait-gate tool call.
const askUserSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "required_inputs_schema": {"type": "object"}
  },
  "required": ["question"]
}`

const callAgentSchema = `{
  "type": "object",
  "properties": {
    "specialist_tag": {"type": "string"},
    "mission": {"type": "string"}
  },
  "required": ["specialist_tag", "mission"]
}`

const planSchema = `{
  "type": "object",
  "properties": {
    "op": {"type": "string", "enum": ["create", "add_item", "update_status", "reorder", "get"]}
  },
  "required": ["op"]
}`

// RegisterBuiltinTools registers the three built-in tools every agent
// definition may reference (spec §4.5 step 4, §3 "awaiting-input", §4.6):
// ask_user (wait-gate), call_agent (sub-agent spawn), and plan (intercepted
// directly by internal/loop before generic dispatch, registered here only
// so its metadata is exposed to the model and schema-validated).
func RegisterBuiltinTools(reg *toolreg.Registry) {
	reg.Register(toolreg.Spec{
		Name:        "ask_user",
		Description: "Ask the user a question and suspend execution until they respond.",
		InputSchema: json.RawMessage(askUserSchema),
		RiskLevel:   toolreg.RiskNone,
		Idempotent:  true,
		Construct: func(toolreg.Deps) (toolreg.Handler, error) {
			return func(_ context.Context, params json.RawMessage) (any, error) {
				var req struct {
					Question string `json:"question"`
				}
				_ = json.Unmarshal(params, &req)
				return map[string]any{"status": "awaiting_input", "question": req.Question}, nil
			}, nil
		},
	})

	reg.Register(toolreg.Spec{
		Name:        "call_agent",
		Description: "Spawn a specialist sub-agent with an isolated session to carry out a sub-mission.",
		InputSchema: json.RawMessage(callAgentSchema),
		RiskLevel:   toolreg.RiskLow,
		Construct: func(deps toolreg.Deps) (toolreg.Handler, error) {
			s, ok := deps.Spawner.(*spawner.Spawner)
			if !ok || s == nil {
				return nil, errs.New(errs.KindInternal, "call_agent: no spawner configured")
			}
			return func(ctx context.Context, params json.RawMessage) (any, error) {
				var req struct {
					SpecialistTag    string `json:"specialist_tag"`
					Mission          string `json:"mission"`
					ParentSessionID  string `json:"_parent_session_id"`
				}
				if err := json.Unmarshal(params, &req); err != nil {
					return nil, fmt.Errorf("call_agent: invalid params: %w", err)
				}
				result, childID, err := s.Spawn(ctx, spawner.Request{
					ParentSession: ids.SessionID(req.ParentSessionID),
					SpecialistTag: req.SpecialistTag,
					Mission:       req.Mission,
					IdentityCtx:   deps.IdentityCtx,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"child_session_id": string(childID),
					"status":           string(result.Status),
					"final_answer":     result.FinalAnswer,
				}, nil
			}, nil
		},
	})

	reg.Register(toolreg.Spec{
		Name:        "plan",
		Description: "Create and maintain the session's structured plan.",
		InputSchema: json.RawMessage(planSchema),
		RiskLevel:   toolreg.RiskNone,
		Construct: func(toolreg.Deps) (toolreg.Handler, error) {
			return func(context.Context, json.RawMessage) (any, error) {
				return nil, errs.New(errs.KindInternal, "plan tool calls must be intercepted by the agent loop")
			}, nil
		},
	})
}
