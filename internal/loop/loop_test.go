package loop_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/budget"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/history"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/promptctx"
	"github.com/rudi77/taskforge/internal/session"
	sessmem "github.com/rudi77/taskforge/internal/session/memstore"
	"github.com/rudi77/taskforge/internal/toolexec"
	"github.com/rudi77/taskforge/internal/toolreg"
	toolresultmem "github.com/rudi77/taskforge/internal/toolresult/memstore"
)

// stubModelClient replays queued responses in order, repeating the last one
// once exhausted so a test needn't queue one entry per loop step.
type stubModelClient struct {
	responses []modelclient.Response
	calls     int
}

func (s *stubModelClient) Complete(context.Context, modelclient.Request) (modelclient.Response, error) {
	if len(s.responses) == 0 {
		return modelclient.Response{}, errors.New("stubModelClient: no responses queued")
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

// fakeStrategy lets each test dictate completion behavior directly instead
// of depending on internal/strategy (which imports internal/loop).
type fakeStrategy struct {
	onStepComplete func(hadToolCalls bool) (bool, string, error)
}

func directReactiveLike() fakeStrategy {
	return fakeStrategy{onStepComplete: func(hadToolCalls bool) (bool, string, error) {
		if hadToolCalls {
			return false, "", nil
		}
		return true, "final answer", nil
	}}
}

func (fakeStrategy) Name() string { return "fake" }
func (fakeStrategy) Init(context.Context, modelclient.Client, string, string, *session.State) error {
	return nil
}
func (fakeStrategy) AugmentSystemPrompt(base string, _ *session.State, _ int) string { return base }
func (f fakeStrategy) OnStepComplete(_ context.Context, _ *session.State, hadToolCalls bool) (bool, string, error) {
	return f.onStepComplete(hadToolCalls)
}

func newTestLoop(t *testing.T, client modelclient.Client, strat loop.Strategy, maxSteps int) (*loop.Loop, *history.Manager) {
	t.Helper()
	tools := toolreg.New()
	tools.Register(toolreg.Spec{
		Name: "echo",
		Construct: func(toolreg.Deps) (toolreg.Handler, error) {
			return func(context.Context, json.RawMessage) (any, error) { return "ok", nil }, nil
		},
	})
	tools.Register(toolreg.Spec{
		Name: "ask_user",
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
	resolver := toolreg.NewResolver(tools)

	hist := history.New(toolresultmem.New())
	deps := loop.Deps{
		Sessions: sessmem.New(),
		Model:    client,
		Budgeter: budget.New(),
		Prompt:   promptctx.New(),
		Executor: toolexec.New(tools, resolver, hist, toolexec.AutoApprove{}),
		MaxSteps: maxSteps,
	}
	return loop.New(deps, strat), hist
}

func TestExecuteCompletesOnFirstContentOnlyResponse(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{Content: []model.Part{model.TextPart{Text: "hello"}}},
	}}
	l, hist := newTestLoop(t, client, directReactiveLike(), 5)

	result, err := l.Execute(context.Background(), "do the thing", ids.SessionID("s1"), ids.AgentIdent("a1"), "be helpful", hist, nil)
	require.NoError(t, err)
	assert.Equal(t, loop.StatusCompleted, result.Status)
	assert.Equal(t, "final answer", result.FinalAnswer)
	assert.Equal(t, 1, result.Steps)
}

func TestExecuteDispatchesToolCallsBeforeCompleting(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{ToolCalls: []model.ToolCallRequest{{ID: "1", Name: "echo", Params: json.RawMessage(`{}`)}}},
		{Content: []model.Part{model.TextPart{Text: "done"}}},
	}}
	l, hist := newTestLoop(t, client, directReactiveLike(), 5)

	result, err := l.Execute(context.Background(), "do the thing", ids.SessionID("s2"), ids.AgentIdent("a1"), "be helpful", hist, nil)
	require.NoError(t, err)
	assert.Equal(t, loop.StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Steps)

	found := false
	for _, m := range hist.Messages() {
		if m.ToolResult != nil && m.ToolResult.Success {
			found = true
		}
	}
	assert.True(t, found, "expected a successful tool observation in history")
}

func TestExecuteSuspendsOnAskUserCall(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{ToolCalls: []model.ToolCallRequest{{ID: "1", Name: "ask_user", Params: json.RawMessage(`{"question":"approve deploy?"}`)}}},
	}}
	l, hist := newTestLoop(t, client, directReactiveLike(), 5)

	result, err := l.Execute(context.Background(), "do the thing", ids.SessionID("s3"), ids.AgentIdent("a1"), "be helpful", hist, nil)
	require.NoError(t, err)
	assert.Equal(t, loop.StatusWaitingExternal, result.Status)
	assert.Equal(t, 1, result.Steps)
}

func TestExecuteReachesMaxStepsWhenStrategyNeverCompletes(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{Content: []model.Part{model.TextPart{Text: "still working"}}},
	}}
	neverDone := fakeStrategy{onStepComplete: func(bool) (bool, string, error) { return false, "", nil }}
	l, hist := newTestLoop(t, client, neverDone, 3)

	result, err := l.Execute(context.Background(), "do the thing", ids.SessionID("s4"), ids.AgentIdent("a1"), "be helpful", hist, nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindMaxStepsReached, errs.KindOf(err))
	assert.Equal(t, loop.StatusMaxStepsReached, result.Status)
	assert.Equal(t, 3, result.Steps)
}

func TestExecuteReturnsCancelledWhenContextAlreadyDone(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{Content: []model.Part{model.TextPart{Text: "hello"}}},
	}}
	l, hist := newTestLoop(t, client, directReactiveLike(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := l.Execute(ctx, "do the thing", ids.SessionID("s5"), ids.AgentIdent("a1"), "be helpful", hist, nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindCancelled, errs.KindOf(err))
	assert.Equal(t, loop.StatusCancelled, result.Status)
}

func TestExecuteResumesFromPersistedSessionWithoutReinitializing(t *testing.T) {
	client := &stubModelClient{responses: []modelclient.Response{
		{Content: []model.Part{model.TextPart{Text: "hello again"}}},
	}}

	store := sessmem.New()
	seeded := session.State{
		SessionID: "s6", AgentID: "a1",
		History: []model.Message{model.NewTextMessage(model.RoleUser, "earlier turn")},
		Version: 1,
	}
	require.NoError(t, store.Save(context.Background(), "s6", seeded, 0))

	tools := toolreg.New()
	resolver := toolreg.NewResolver(tools)
	hist := history.New(toolresultmem.New())
	deps := loop.Deps{
		Sessions: store,
		Model:    client,
		Budgeter: budget.New(),
		Prompt:   promptctx.New(),
		Executor: toolexec.New(tools, resolver, hist, toolexec.AutoApprove{}),
		MaxSteps: 5,
	}
	l := loop.New(deps, directReactiveLike())

	result, err := l.Execute(context.Background(), "ignored, session already has history", "s6", "a1", "be helpful", hist, nil)
	require.NoError(t, err)
	assert.Equal(t, loop.StatusCompleted, result.Status)

	saved, err := store.Load(context.Background(), "s6")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(saved.History), 2, "resumed session must retain prior history plus the new turn")
}
