package epic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/plan"
)

func TestPlannerPromptIncludesMissionRoundAndPriorState(t *testing.T) {
	p := plannerPrompt("ship the feature", 3, "round 2 summary")
	assert.Contains(t, p, "ship the feature")
	assert.Contains(t, p, "Round: 3")
	assert.Contains(t, p, "round 2 summary")
}

func TestPlannerPromptOmitsCurrentStateBlockWhenEmpty(t *testing.T) {
	p := plannerPrompt("m", 1, "")
	assert.NotContains(t, p, "Current state from prior rounds")
}

func TestWorkerPromptPrefersPlanItemPayload(t *testing.T) {
	task := bus.Task{Payload: plan.Item{Description: "write tests", AcceptanceCriteria: "all green"}}
	p := workerPrompt(task)
	assert.Contains(t, p, "write tests")
	assert.Contains(t, p, "all green")
}

func TestWorkerPromptFallsBackToSummaryThenTaskID(t *testing.T) {
	assert.Equal(t, "a summary", workerPrompt(bus.Task{Summary: "a summary"}))
	assert.Contains(t, workerPrompt(bus.Task{ID: "task-7"}), "task-7")
}

func TestJudgePromptListsWorkerResultsAndAsksForVerdict(t *testing.T) {
	p := judgePrompt("mission", "prior", []taskSummary{{Title: "t1", Outcome: "completed", Summary: "done well"}})
	assert.Contains(t, p, "mission")
	assert.Contains(t, p, "prior")
	assert.Contains(t, p, "t1")
	assert.Contains(t, p, "CONTINUE, FRESH_START, COMPLETE")
}

func TestJudgePromptNotesEmptyRoundExplicitly(t *testing.T) {
	p := judgePrompt("mission", "", nil)
	assert.Contains(t, p, "no tasks were produced")
}
