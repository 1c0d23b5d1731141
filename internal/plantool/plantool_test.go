package plantool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/plan"
)

type recordingBus struct {
	events []bus.Event
}

func (r *recordingBus) Publish(_ context.Context, topic string, payload any) error {
	r.events = append(r.events, bus.Event{Topic: topic, Payload: payload})
	return nil
}
func (r *recordingBus) Subscribe(context.Context, string) (bus.Subscription, error) { return nil, nil }
func (r *recordingBus) Clear(string) error                                          { return nil }

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestApplyCreateBuildsNewPlanAndPublishes(t *testing.T) {
	b := &recordingBus{}
	m := NewMutator(b, "topic")

	req := Request{Op: OpCreate, Items: []plan.Item{{Position: 1, Description: "first"}}}
	got, err := m.Apply(context.Background(), nil, mustJSON(t, req))
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, "topic", b.events[0].Topic)
}

func TestApplyCreateRejectsCyclicPlan(t *testing.T) {
	m := NewMutator(nil, "topic")
	req := Request{Op: OpCreate, Items: []plan.Item{
		{Position: 1, Dependencies: []int{2}},
		{Position: 2, Dependencies: []int{1}},
	}}
	_, err := m.Apply(context.Background(), nil, mustJSON(t, req))
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
}

func TestApplyAddItemAppendsWithoutMutatingOriginal(t *testing.T) {
	m := NewMutator(nil, "topic")
	original := &plan.Plan{Items: []plan.Item{{Position: 1, Description: "a"}}}

	req := Request{Op: OpAddItem, Item: &plan.Item{Position: 2, Description: "b"}}
	got, err := m.Apply(context.Background(), original, mustJSON(t, req))
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Len(t, original.Items, 1, "Apply must not mutate the caller's plan in place")
}

func TestApplyAddItemRequiresExistingPlan(t *testing.T) {
	m := NewMutator(nil, "topic")
	_, err := m.Apply(context.Background(), nil, mustJSON(t, Request{Op: OpAddItem, Item: &plan.Item{Position: 1}}))
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
}

func TestApplyUpdateStatusRejectsUnfinishedDependencies(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{
		{Position: 1, Status: plan.StatusPending},
		{Position: 2, Status: plan.StatusPending, Dependencies: []int{1}},
	}}
	req := Request{Op: OpUpdateStatus, Position: 2, Status: plan.StatusInProgress}
	_, err := m.Apply(context.Background(), p, mustJSON(t, req))
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
}

func TestApplyUpdateStatusSucceedsWhenDependenciesSatisfied(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{
		{Position: 1, Status: plan.StatusCompleted},
		{Position: 2, Status: plan.StatusPending, Dependencies: []int{1}},
	}}
	req := Request{Op: OpUpdateStatus, Position: 2, Status: plan.StatusInProgress, ResultSnapshot: "note"}
	got, err := m.Apply(context.Background(), p, mustJSON(t, req))
	require.NoError(t, err)
	assert.Equal(t, plan.StatusInProgress, got.Items[1].Status)
	assert.Equal(t, "note", got.Items[1].ResultSnapshot)
}

func TestApplyUpdateStatusUnknownPositionErrors(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{{Position: 1}}}
	_, err := m.Apply(context.Background(), p, mustJSON(t, Request{Op: OpUpdateStatus, Position: 99, Status: plan.StatusCompleted}))
	require.Error(t, err)
}

func TestApplyReorderRearrangesItemsByPosition(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{{Position: 1, Description: "a"}, {Position: 2, Description: "b"}}}
	got, err := m.Apply(context.Background(), p, mustJSON(t, Request{Op: OpReorder, Order: []int{2, 1}}))
	require.NoError(t, err)
	assert.Equal(t, "b", got.Items[0].Description)
	assert.Equal(t, "a", got.Items[1].Description)
}

func TestApplyReorderRejectsMismatchedLength(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{{Position: 1}, {Position: 2}}}
	_, err := m.Apply(context.Background(), p, mustJSON(t, Request{Op: OpReorder, Order: []int{1}}))
	require.Error(t, err)
}

func TestApplyGetReturnsPlanUnchanged(t *testing.T) {
	m := NewMutator(nil, "topic")
	p := &plan.Plan{Items: []plan.Item{{Position: 1}}}
	got, err := m.Apply(context.Background(), p, mustJSON(t, Request{Op: OpGet}))
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestApplyUnknownOpReturnsParamValidation(t *testing.T) {
	m := NewMutator(nil, "topic")
	_, err := m.Apply(context.Background(), nil, mustJSON(t, Request{Op: "bogus"}))
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
}

func TestApplyMalformedParamsReturnsParamValidation(t *testing.T) {
	m := NewMutator(nil, "topic")
	_, err := m.Apply(context.Background(), nil, json.RawMessage(`not json`))
	require.Error(t, err)
	assert.Equal(t, errs.KindParamValidation, errs.KindOf(err))
}
