package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/plan"
	"github.com/rudi77/taskforge/internal/session"
)

type stubClient struct {
	resp modelclient.Response
	err  error
}

func (s stubClient) Complete(context.Context, modelclient.Request) (modelclient.Response, error) {
	return s.resp, s.err
}

func TestPlanThenExecuteInitParsesNumberedPlan(t *testing.T) {
	client := stubClient{resp: modelclient.Response{Content: []model.Part{model.TextPart{Text: "1. gather requirements\n2. write code"}}}}
	strat := &PlanThenExecute{}
	state := &session.State{}

	require.NoError(t, strat.Init(context.Background(), client, "sys", "build a widget", state))
	require.NotNil(t, state.Plan)
	require.Len(t, state.Plan.Items, 2)
	assert.Equal(t, "gather requirements", state.Plan.Items[0].Description)
	assert.Equal(t, "write code", state.Plan.Items[1].Description)
}

func TestPlanThenExecuteInitFallsBackOnClientError(t *testing.T) {
	client := stubClient{err: assert.AnError}
	strat := &PlanThenExecute{}
	state := &session.State{}

	require.NoError(t, strat.Init(context.Background(), client, "sys", "do the thing", state))
	require.Len(t, state.Plan.Items, 1)
	assert.Equal(t, "do the thing", state.Plan.Items[0].Description)
}

func TestPlanThenExecuteInitFallsBackOnUnparseableResponse(t *testing.T) {
	client := stubClient{resp: modelclient.Response{Content: []model.Part{model.TextPart{Text: "no numbered items here"}}}}
	strat := &PlanThenExecute{}
	state := &session.State{}

	require.NoError(t, strat.Init(context.Background(), client, "sys", "fallback mission", state))
	require.Len(t, state.Plan.Items, 1)
	assert.Equal(t, "fallback mission", state.Plan.Items[0].Description)
}

func TestPlanThenExecuteOnStepCompleteAdvancesAndTerminates(t *testing.T) {
	strat := &PlanThenExecute{}
	state := &session.State{Plan: &plan.Plan{Items: []plan.Item{
		{Position: 1, Description: "a", Status: plan.StatusInProgress},
		{Position: 2, Description: "b", Status: plan.StatusPending},
	}}}

	done, _, err := strat.OnStepComplete(context.Background(), state, false)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, plan.StatusCompleted, state.Plan.Items[0].Status)
	assert.Equal(t, plan.StatusInProgress, state.Plan.Items[1].Status)

	state.History = append(state.History, model.NewTextMessage(model.RoleAssistant, "all done"))
	done, answer, err := strat.OnStepComplete(context.Background(), state, false)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "all done", answer)
}

func TestPlanThenExecuteOnStepCompleteKeepsRunningWhileToolCallsPending(t *testing.T) {
	strat := &PlanThenExecute{}
	state := &session.State{Plan: &plan.Plan{Items: []plan.Item{
		{Position: 1, Description: "a", Status: plan.StatusInProgress},
	}}}

	done, _, err := strat.OnStepComplete(context.Background(), state, true)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, plan.StatusInProgress, state.Plan.Items[0].Status, "tool calls mid-item shouldn't advance status")
}
