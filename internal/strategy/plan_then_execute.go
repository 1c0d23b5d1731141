package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/plan"
	"github.com/rudi77/taskforge/internal/session"
)

var planLinePrefix = regexp.MustCompile(`^\s*\d+[.)]\s*`)

const planningPrompt = `%s

Produce a plan for the mission above as a numbered list of steps. For each
step give a short description, its acceptance criteria, and the positions
of any steps it depends on. Respond with the plan only.

MISSION:
%s`

// PlanThenExecute implements spec §4.9.2: an initial planning call produces
// a plan, then the main loop runs until every item is completed, failed, or
// skipped, marking the next unfinished item in-progress before each turn.
type PlanThenExecute struct{}

func (PlanThenExecute) Name() string { return NamePlanThenExecute }

// Init issues the initial planning call and seeds state.Plan from its
// response. A malformed or empty response yields a single-item plan
// covering the whole mission, so the main loop always has a plan to drive.
func (s *PlanThenExecute) Init(ctx context.Context, client modelclient.Client, systemPrompt, mission string, state *session.State) error {
	resp, err := client.Complete(ctx, modelclient.Request{
		Role:     "planner",
		Messages: []model.Message{model.NewTextMessage(model.RoleUser, fmt.Sprintf(planningPrompt, systemPrompt, mission))},
	})
	if err != nil {
		state.Plan = fallbackPlan(mission)
		return nil
	}
	items := parsePlanText(firstPlanText(resp.Content))
	if len(items) == 0 {
		items = fallbackPlan(mission).Items
	}
	p := &plan.Plan{Items: items}
	if err := p.Validate(); err != nil {
		p = fallbackPlan(mission)
	}
	state.Plan = p
	return nil
}

func (PlanThenExecute) AugmentSystemPrompt(base string, state *session.State, step int) string {
	if state.Plan == nil {
		return base
	}
	next := state.Plan.NextActionable()
	if next < 0 {
		return base
	}
	return base + "\n\nWork on the next actionable plan item; mark it completed or failed via the plan tool when done."
}

// OnStepComplete advances the plan: content-only output counts as the
// current in-progress item being done (completed), then the next
// unfinished item is marked in-progress. The strategy is done once every
// item reaches a terminal status.
func (s *PlanThenExecute) OnStepComplete(ctx context.Context, state *session.State, hadToolCalls bool) (bool, string, error) {
	if state.Plan == nil {
		return !hadToolCalls, finalAnswerText(state), nil
	}
	if !hadToolCalls {
		if pos := currentInProgress(state.Plan); pos >= 0 {
			setStatus(state.Plan, pos, plan.StatusCompleted)
		}
	}
	if state.Plan.AllTerminal() {
		return true, finalAnswerText(state), nil
	}
	if next := state.Plan.NextActionable(); next >= 0 {
		setStatus(state.Plan, next, plan.StatusInProgress)
	}
	return false, "", nil
}

func fallbackPlan(mission string) *plan.Plan {
	return &plan.Plan{Items: []plan.Item{{Position: 1, Description: mission, Status: plan.StatusPending}}}
}

func currentInProgress(p *plan.Plan) int {
	for _, it := range p.Items {
		if it.Status == plan.StatusInProgress {
			return it.Position
		}
	}
	return -1
}

func setStatus(p *plan.Plan, position int, status plan.Status) {
	for i := range p.Items {
		if p.Items[i].Position == position {
			p.Items[i].Status = status
			return
		}
	}
}

// parsePlanText is a minimal numbered-list parser: each "N. text" line
// becomes an Item with no declared dependencies, since the model is
// expected to refine dependencies via the plan tool's add_item/reorder ops
// once executing. Lines without a numbered prefix are ignored. Init reads
// only the planning response's text content; tool calls in that response
// are not consulted.
func parsePlanText(text string) []plan.Item {
	var items []plan.Item
	pos := 0
	line := ""
	flush := func() {
		if !planLinePrefix.MatchString(line) {
			line = ""
			return
		}
		cleaned := strings.TrimSpace(planLinePrefix.ReplaceAllString(line, ""))
		if cleaned == "" {
			line = ""
			return
		}
		pos++
		items = append(items, plan.Item{Position: pos, Description: cleaned, Status: plan.StatusPending})
		line = ""
	}
	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		line += string(r)
	}
	flush()
	return items
}
