package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckpointPersistsWaitingExternal(t *testing.T) {
	ctx := context.Background()
	rt := New(NewMemStore(), NoopGateway{}, nil)

	cp, err := rt.CreateCheckpoint(ctx, "run-1", "sess-1", []byte(`{}`), json.RawMessage(`{"type":"object"}`), "awaiting approval")
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingExternal, cp.Status)

	latest, err := rt.Store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, cp, latest)
}

func TestIngestResumeEventMergesPayloadAndCompletes(t *testing.T) {
	ctx := context.Background()
	rt := New(NewMemStore(), NoopGateway{}, nil)

	schema := json.RawMessage(`{"type":"object","required":["approved"],"properties":{"approved":{"type":"boolean"}}}`)
	_, err := rt.CreateCheckpoint(ctx, "run-2", "sess-2", []byte(`{"existing":"value"}`), schema, "waiting")
	require.NoError(t, err)

	result, followUp, err := rt.IngestResumeEvent(ctx, "run-2", "msg-1", json.RawMessage(`{"approved":true}`), nil)
	require.NoError(t, err)
	require.Nil(t, followUp)
	require.NotNil(t, result)
	assert.Equal(t, "sess-2", result.NodeID)

	var merged map[string]any
	require.NoError(t, json.Unmarshal(result.MergedState, &merged))
	assert.Equal(t, "value", merged["existing"])
	assert.Equal(t, true, merged["approved"])

	latest, err := rt.Store.Latest(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, latest.Status)
}

func TestIngestResumeEventSchemaMismatchReturnsFollowUp(t *testing.T) {
	ctx := context.Background()
	rt := New(NewMemStore(), NoopGateway{}, nil)

	schema := json.RawMessage(`{"type":"object","required":["approved"],"properties":{"approved":{"type":"boolean"}}}`)
	_, err := rt.CreateCheckpoint(ctx, "run-3", "sess-3", nil, schema, "waiting")
	require.NoError(t, err)

	result, followUp, err := rt.IngestResumeEvent(ctx, "run-3", "msg-1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	require.NotNil(t, followUp)

	// the checkpoint stays waiting-external, still resumable.
	latest, err := rt.Store.Latest(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingExternal, latest.Status)
}

func TestIngestResumeEventDuplicateMessageIDIsANoop(t *testing.T) {
	ctx := context.Background()
	rt := New(NewMemStore(), NoopGateway{}, nil)

	_, err := rt.CreateCheckpoint(ctx, "run-4", "sess-4", nil, nil, "waiting")
	require.NoError(t, err)

	first, _, err := rt.IngestResumeEvent(ctx, "run-4", "msg-dup", json.RawMessage(`{"a":1}`), nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, followUp, err := rt.IngestResumeEvent(ctx, "run-4", "msg-dup", json.RawMessage(`{"a":1}`), nil)
	require.NoError(t, err)
	require.Nil(t, followUp)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestCheckDeadlinesInvokesEscalationOnlyPastDeadline(t *testing.T) {
	ctx := context.Background()
	var escalated []string
	rt := New(NewMemStore(), NoopGateway{}, func(_ context.Context, cp Checkpoint) {
		escalated = append(escalated, cp.RunID)
	})

	past := time.Now().UTC().Add(-time.Hour)
	_, err := rt.CreateCheckpoint(ctx, "run-5", "sess-5", nil, nil, "waiting")
	require.NoError(t, err)
	cp, err := rt.Store.Latest(ctx, "run-5")
	require.NoError(t, err)
	cp.NextDeadline = &past
	require.NoError(t, rt.Store.Save(ctx, cp))

	_, err = rt.CreateCheckpoint(ctx, "run-6", "sess-6", nil, nil, "waiting")
	require.NoError(t, err)

	require.NoError(t, rt.CheckDeadlines(ctx))
	assert.Equal(t, []string{"run-5"}, escalated)

	// the checkpoint is untouched, still resumable.
	latest, err := rt.Store.Latest(ctx, "run-5")
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingExternal, latest.Status)
}

// TestIngestResumeEventPropertyIdempotentReplay verifies spec §4.18's
// idempotent-resume invariant: replaying the same (runID, messageID,
// payload) any number of times after the first successful ingest always
// returns the identical ResumeResult and never re-merges the payload or
// re-dispatches any side effect.
func TestIngestResumeEventPropertyIdempotentReplay(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("replaying an ingested resume event is a pure no-op", prop.ForAll(
		func(messageID string, replayCount int, approved bool) bool {
			ctx := context.Background()
			rt := New(NewMemStore(), NoopGateway{}, nil)
			runID := "run-property"
			if _, err := rt.CreateCheckpoint(ctx, runID, "sess-property", nil, nil, "waiting"); err != nil {
				return false
			}

			payload := json.RawMessage(`{"approved":` + boolJSON(approved) + `}`)
			first, followUp, err := rt.IngestResumeEvent(ctx, runID, messageID, payload, nil)
			if err != nil || followUp != nil || first == nil {
				return false
			}

			for i := 0; i < replayCount; i++ {
				again, followUp, err := rt.IngestResumeEvent(ctx, runID, messageID, payload, nil)
				if err != nil || followUp != nil || again == nil {
					return false
				}
				if again.NodeID != first.NodeID || string(again.MergedState) != string(first.MergedState) {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
		gen.IntRange(0, 8),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
