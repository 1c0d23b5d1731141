package strategy

import (
	"context"

	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/session"
)

const interleavedFirstTurnSuffix = "\n\nBefore acting, use the plan tool to create a short plan for this mission, then keep it current (add_item/update_status/reorder) as you work."

// Interleaved implements spec §4.9.3: same as DirectReactive but the first
// turn is biased toward plan creation, and the model is expected to keep
// the plan current via the plan tool as it acts.
type Interleaved struct{}

func (Interleaved) Name() string { return NameInterleaved }

func (Interleaved) Init(context.Context, modelclient.Client, string, string, *session.State) error {
	return nil
}

func (Interleaved) AugmentSystemPrompt(base string, _ *session.State, step int) string {
	if step == 0 {
		return base + interleavedFirstTurnSuffix
	}
	return base
}

func (Interleaved) OnStepComplete(_ context.Context, state *session.State, hadToolCalls bool) (bool, string, error) {
	if hadToolCalls {
		return false, "", nil
	}
	return true, finalAnswerText(state), nil
}
