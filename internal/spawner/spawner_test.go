package spawner

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
)

type fakeAgent struct {
	result loop.ExecutionResult
	err    error
	closed bool
}

func (a *fakeAgent) Execute(context.Context, string, ids.SessionID) (loop.ExecutionResult, error) {
	return a.result, a.err
}

func (a *fakeAgent) Close(context.Context) error {
	a.closed = true
	return nil
}

type fakeFactory struct {
	built []*fakeAgent
	next  func() *fakeAgent
}

func (f *fakeFactory) BuildChild(context.Context, string, map[string]any) (Agent, error) {
	a := f.next()
	f.built = append(f.built, a)
	return a, nil
}

func TestSpawnBuildsChildAndClosesIt(t *testing.T) {
	agent := &fakeAgent{result: loop.ExecutionResult{Status: loop.StatusCompleted, FinalAnswer: "done"}}
	factory := &fakeFactory{next: func() *fakeAgent { return agent }}
	sp := New(factory, nil)

	result, childID, err := sp.Spawn(context.Background(), Request{
		ParentSession: ids.NewSessionID(),
		SpecialistTag: "research",
		Mission:       "investigate",
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalAnswer)
	assert.Equal(t, 1, ids.Depth(childID))
	assert.True(t, agent.closed)
}

func TestSpawnRejectsPastMaxDepth(t *testing.T) {
	factory := &fakeFactory{next: func() *fakeAgent { return &fakeAgent{} }}
	sp := New(factory, nil)
	sp.MaxDepth = 2

	parent := ids.SessionID("root:sub_a_1:sub_b_2") // already at depth 2
	_, _, err := sp.Spawn(context.Background(), Request{ParentSession: parent, SpecialistTag: "c"})
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
	assert.Empty(t, factory.built)
}

func TestSpawnReturnsChildExecutionError(t *testing.T) {
	boom := assert.AnError
	agent := &fakeAgent{err: boom}
	factory := &fakeFactory{next: func() *fakeAgent { return agent }}
	sp := New(factory, nil)

	_, _, err := sp.Spawn(context.Background(), Request{ParentSession: ids.NewSessionID(), SpecialistTag: "x"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, agent.closed, "child must be closed even on execution error")
}

// TestSpawnPropertyNestingCapIsExact verifies spec §8's nesting-cap
// invariant: Spawn succeeds for every parent session strictly below
// MaxDepth and is rejected for every parent at or beyond it, regardless of
// the configured MaxDepth value.
func TestSpawnPropertyNestingCapIsExact(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Spawn succeeds below MaxDepth and fails at/above it", prop.ForAll(
		func(maxDepth, depth int) bool {
			factory := &fakeFactory{next: func() *fakeAgent {
				return &fakeAgent{result: loop.ExecutionResult{Status: loop.StatusCompleted}}
			}}
			sp := New(factory, nil)
			sp.MaxDepth = maxDepth

			parent := ids.NewSessionID()
			for i := 0; i < depth; i++ {
				parent = ids.Child(parent, "t")
			}

			_, _, err := sp.Spawn(context.Background(), Request{ParentSession: parent, SpecialistTag: "child"})
			if depth >= maxDepth {
				return err != nil
			}
			return err == nil
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
