// Package promptctx assembles the per-turn LLM request: system prompt, plan
// status block, and an optional pinned context pack (spec §4.4). Grounded
// on the teacher's per-turn request assembly in
// runtime/agent/runtime/workflow_turn.go, which gathers planner input,
// tool candidates, and run context into one outgoing request each turn;
// generalized here from Temporal activity-input assembly to a plain
// in-process request builder.
package promptctx

import (
	"fmt"
	"strings"

	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/plan"
)

// DefaultContextPackCharCap is the character limit applied to the pinned
// context pack (spec §4.4 default).
const DefaultContextPackCharCap = 10_000

// Pack is the optional set of small facts/results a strategy wants pinned
// into every turn's prompt.
type Pack struct {
	Entries []string
}

// Builder assembles one turn's system prompt plus plan status plus context
// pack into the leading system message prepended to history.
type Builder struct {
	ContextPackCharCap int
}

// New returns a Builder using the spec-default context pack cap.
func New() *Builder {
	return &Builder{ContextPackCharCap: DefaultContextPackCharCap}
}

// Build assembles the system message for one turn. systemPrompt is the
// agent definition's base prompt, optionally already augmented with a
// specialist index by the caller. p is nil for strategies that don't use a
// plan.
func (b *Builder) Build(systemPrompt string, p *plan.Plan, pack *Pack) model.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	if p != nil && len(p.Items) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(renderPlanStatus(p))
	}

	if pack != nil && len(pack.Entries) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(renderContextPack(pack, b.charCap()))
	}

	return model.NewTextMessage(model.RoleSystem, sb.String())
}

func (b *Builder) charCap() int {
	if b.ContextPackCharCap > 0 {
		return b.ContextPackCharCap
	}
	return DefaultContextPackCharCap
}

func renderPlanStatus(p *plan.Plan) string {
	next := p.NextActionable()
	var sb strings.Builder
	sb.WriteString("Plan status:\n")
	for _, it := range p.Items {
		marker := statusMarker(it.Status)
		highlight := ""
		if it.Position == next {
			highlight = "  <- next actionable"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %d. %s%s\n", marker, it.Position, it.Description, highlight))
	}
	return sb.String()
}

func statusMarker(s plan.Status) string {
	switch s {
	case plan.StatusCompleted:
		return "x"
	case plan.StatusFailed:
		return "!"
	case plan.StatusSkipped:
		return "-"
	case plan.StatusInProgress:
		return ">"
	default:
		return " "
	}
}

func renderContextPack(pack *Pack, charCap int) string {
	var sb strings.Builder
	sb.WriteString("Pinned context:\n")
	for _, e := range pack.Entries {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	out := sb.String()
	if charCap > 0 && len(out) > charCap {
		out = out[:charCap]
	}
	return out
}
