// Package strategy implements the four planning strategies of spec §4.9:
// direct-reactive, plan-then-execute, interleaved plan-and-act, and
// sense-plan-act-reflect. All four satisfy loop.Strategy and compose the
// same agent-loop state machine differently, following the teacher's
// runtime/agent/planner package where each strategy is a small policy
// object rather than its own copy of the run loop.
package strategy

import (
	"context"

	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/session"
)

// Names of the four strategies, used as the agent definition's
// planning-strategy tag (spec §4.14).
const (
	NameDirectReactive   = "direct-reactive"
	NamePlanThenExecute  = "plan-then-execute"
	NameInterleaved      = "interleaved-plan-and-act"
	NameSensePlanActReflect = "sense-plan-act-reflect"
)

// DirectReactive implements spec §4.9.1: no separate plan phase, each turn
// is a reason/act step, terminates as soon as the model returns content
// without tool calls.
type DirectReactive struct{}

func (DirectReactive) Name() string { return NameDirectReactive }

func (DirectReactive) Init(context.Context, modelclient.Client, string, string, *session.State) error {
	return nil
}

func (DirectReactive) AugmentSystemPrompt(base string, _ *session.State, _ int) string { return base }

func (DirectReactive) OnStepComplete(_ context.Context, state *session.State, hadToolCalls bool) (bool, string, error) {
	if hadToolCalls {
		return false, "", nil
	}
	return true, finalAnswerText(state), nil
}

// New constructs a strategy by its name tag, defaulting to direct-reactive
// for an unknown or empty tag.
func New(name string) loop.Strategy {
	switch name {
	case NamePlanThenExecute:
		return &PlanThenExecute{}
	case NameInterleaved:
		return &Interleaved{}
	case NameSensePlanActReflect:
		return &SensePlanActReflect{}
	default:
		return &DirectReactive{}
	}
}

// finalAnswerText extracts the assistant's last text content as the
// candidate final answer when a turn produced no tool calls.
func finalAnswerText(state *session.State) string {
	for i := len(state.History) - 1; i >= 0; i-- {
		msg := state.History[i]
		if msg.Role == model.RoleAssistant {
			return msg.Text()
		}
	}
	return ""
}

// firstPlanText extracts the first text part of a model response, used to
// feed a raw planning-call response into the planner tool.
func firstPlanText(parts []model.Part) string {
	for _, p := range parts {
		if tp, ok := p.(model.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}
