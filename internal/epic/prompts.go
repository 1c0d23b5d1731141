package epic

import (
	"fmt"
	"strings"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/plan"
)

// plannerPrompt embeds the original mission, round number, and latest
// CURRENT_STATE, per spec §4.11a.
func plannerPrompt(mission string, round int, currentState string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission: %s\n\nRound: %d\n\n", mission, round)
	if currentState != "" {
		fmt.Fprintf(&b, "Current state from prior rounds:\n%s\n\n", currentState)
	}
	b.WriteString("Use the plan tool to create a structured, dependency-ordered task list that advances the mission for this round.")
	return b.String()
}

// workerPrompt turns a claimed bus.Task into the mission text handed to an
// isolated worker sub-agent (spec §4.11b).
func workerPrompt(task bus.Task) string {
	if item, ok := task.Payload.(plan.Item); ok {
		var b strings.Builder
		b.WriteString(item.Description)
		if item.AcceptanceCriteria != "" {
			fmt.Fprintf(&b, "\n\nAcceptance criteria: %s", item.AcceptanceCriteria)
		}
		return b.String()
	}
	if task.Summary != "" {
		return task.Summary
	}
	return fmt.Sprintf("Complete task %s.", task.ID)
}

// judgePrompt references the mission, collected worker summaries, and the
// prior CURRENT_STATE, asking for one of CONTINUE/FRESH_START/COMPLETE
// (spec §4.11c).
func judgePrompt(mission, currentState string, summaries []taskSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission: %s\n\n", mission)
	if currentState != "" {
		fmt.Fprintf(&b, "Prior state:\n%s\n\n", currentState)
	}
	b.WriteString("Worker results this round:\n")
	if len(summaries) == 0 {
		b.WriteString("(no tasks were produced this round)\n")
	}
	for _, s := range summaries {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Outcome, s.Title, s.Summary)
	}
	b.WriteString("\nRespond with your assessment and end with exactly one of: CONTINUE, FRESH_START, COMPLETE.")
	return b.String()
}
