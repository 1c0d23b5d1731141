package agentdef

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/toolreg"
)

func TestRegisterBuiltinToolsRegistersAllThree(t *testing.T) {
	reg := toolreg.New()
	RegisterBuiltinTools(reg)

	for _, name := range []string{"ask_user", "call_agent", "plan"} {
		_, err := reg.Lookup(name)
		require.NoError(t, err, name)
	}
}

func TestAskUserHandlerReturnsAwaitingInputStatus(t *testing.T) {
	reg := toolreg.New()
	RegisterBuiltinTools(reg)
	spec, err := reg.Lookup("ask_user")
	require.NoError(t, err)
	handler, err := spec.Construct(toolreg.Deps{})
	require.NoError(t, err)

	out, err := handler(context.Background(), json.RawMessage(`{"question":"which env?"}`))
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "awaiting_input", m["status"])
	assert.Equal(t, "which env?", m["question"])
}

func TestPlanHandlerAlwaysErrorsSinceLoopMustIntercept(t *testing.T) {
	reg := toolreg.New()
	RegisterBuiltinTools(reg)
	spec, err := reg.Lookup("plan")
	require.NoError(t, err)
	handler, err := spec.Construct(toolreg.Deps{})
	require.NoError(t, err)

	_, err = handler(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}

func TestCallAgentConstructFailsWithoutASpawner(t *testing.T) {
	reg := toolreg.New()
	RegisterBuiltinTools(reg)
	spec, err := reg.Lookup("call_agent")
	require.NoError(t, err)

	_, err = spec.Construct(toolreg.Deps{Spawner: nil})
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}

type fakeSpawnAgent struct{ result loop.ExecutionResult }

func (a *fakeSpawnAgent) Execute(context.Context, string, ids.SessionID) (loop.ExecutionResult, error) {
	return a.result, nil
}
func (a *fakeSpawnAgent) Close(context.Context) error { return nil }

type fakeSpawnFactory struct{ agent *fakeSpawnAgent }

func (f *fakeSpawnFactory) BuildChild(context.Context, string, map[string]any) (spawner.Agent, error) {
	return f.agent, nil
}

func TestCallAgentHandlerSpawnsAndReportsResult(t *testing.T) {
	reg := toolreg.New()
	RegisterBuiltinTools(reg)
	spec, err := reg.Lookup("call_agent")
	require.NoError(t, err)

	sp := spawner.New(&fakeSpawnFactory{agent: &fakeSpawnAgent{result: loop.ExecutionResult{Status: loop.StatusCompleted, FinalAnswer: "done"}}}, nil)
	handler, err := spec.Construct(toolreg.Deps{Spawner: sp})
	require.NoError(t, err)

	out, err := handler(context.Background(), json.RawMessage(`{"specialist_tag":"research","mission":"investigate","_parent_session_id":"root"}`))
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "done", m["final_answer"])
	assert.Equal(t, string(loop.StatusCompleted), m["status"])
}
