// Package plantool exposes plan mutation as an ordinary tool (spec §4.6):
// create, add_item, update_status, reorder, get. Grounded on the teacher's
// runtime/agent/planner.Planner contract adapted from a compile-time
// planning strategy abstraction into a plain callable mutator over
// internal/plan, since the spec treats planning as a tool the model invokes
// rather than a framework-level hook.
package plantool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/plan"
)

// Name is the tool name exposed to the model.
const Name = "plan"

// Op is the planner-tool sub-operation requested.
type Op string

const (
	OpCreate       Op = "create"
	OpAddItem      Op = "add_item"
	OpUpdateStatus Op = "update_status"
	OpReorder      Op = "reorder"
	OpGet          Op = "get"
)

// Request is the parameter payload for the plan tool.
type Request struct {
	Op           Op          `json:"op"`
	Items        []plan.Item `json:"items,omitempty"`         // create
	Item         *plan.Item  `json:"item,omitempty"`          // add_item
	Position     int         `json:"position,omitempty"`      // update_status
	Status       plan.Status `json:"status,omitempty"`        // update_status
	ResultSnapshot string    `json:"result_snapshot,omitempty"`
	Order        []int       `json:"order,omitempty"`         // reorder
}

// Mutator applies plan-tool requests to one session's plan and publishes a
// plan-updated event on every successful mutation (spec §4.6).
type Mutator struct {
	Bus   bus.Bus
	Topic string // plan-updated event topic, typically "session.<id>.plan"
}

// NewMutator returns a Mutator publishing plan-updated events to topic.
func NewMutator(b bus.Bus, topic string) *Mutator {
	return &Mutator{Bus: b, Topic: topic}
}

// Apply mutates p according to req, returning the resulting plan. p may be
// nil only for OpCreate.
func (m *Mutator) Apply(ctx context.Context, p *plan.Plan, params json.RawMessage) (*plan.Plan, error) {
	var req Request
	if err := json.Unmarshal(params, &req); err != nil {
		return p, errs.Newf(errs.KindParamValidation, "plan tool: invalid params: %v", err)
	}

	switch req.Op {
	case OpCreate:
		np := &plan.Plan{Items: req.Items}
		if err := np.Validate(); err != nil {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: %v", err)
		}
		m.publish(ctx, np)
		return np, nil

	case OpAddItem:
		if p == nil {
			return p, errs.New(errs.KindParamValidation, "plan tool: add_item requires an existing plan")
		}
		if req.Item == nil {
			return p, errs.New(errs.KindParamValidation, "plan tool: add_item requires item")
		}
		next := *p
		next.Items = append(append([]plan.Item(nil), p.Items...), *req.Item)
		if err := next.Validate(); err != nil {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: %v", err)
		}
		m.publish(ctx, &next)
		return &next, nil

	case OpUpdateStatus:
		if p == nil {
			return p, errs.New(errs.KindParamValidation, "plan tool: update_status requires an existing plan")
		}
		next := *p
		next.Items = append([]plan.Item(nil), p.Items...)
		idx := indexOf(next.Items, req.Position)
		if idx < 0 {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: unknown position %d", req.Position)
		}
		if req.Status == plan.StatusInProgress && !next.CanStart(req.Position) {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: item %d has unfinished dependencies", req.Position)
		}
		next.Items[idx].Status = req.Status
		if req.ResultSnapshot != "" {
			next.Items[idx].ResultSnapshot = req.ResultSnapshot
		}
		m.publish(ctx, &next)
		return &next, nil

	case OpReorder:
		if p == nil {
			return p, errs.New(errs.KindParamValidation, "plan tool: reorder requires an existing plan")
		}
		reordered, err := reorder(p.Items, req.Order)
		if err != nil {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: %v", err)
		}
		next := plan.Plan{Items: reordered}
		if err := next.Validate(); err != nil {
			return p, errs.Newf(errs.KindParamValidation, "plan tool: %v", err)
		}
		m.publish(ctx, &next)
		return &next, nil

	case OpGet:
		return p, nil

	default:
		return p, errs.Newf(errs.KindParamValidation, "plan tool: unknown op %q", req.Op)
	}
}

func (m *Mutator) publish(ctx context.Context, p *plan.Plan) {
	if m.Bus == nil {
		return
	}
	_ = m.Bus.Publish(ctx, m.Topic, planUpdatedEvent{Plan: p})
}

type planUpdatedEvent struct {
	Plan *plan.Plan
}

func indexOf(items []plan.Item, position int) int {
	for i, it := range items {
		if it.Position == position {
			return i
		}
	}
	return -1
}

func reorder(items []plan.Item, order []int) ([]plan.Item, error) {
	if len(order) != len(items) {
		return nil, fmt.Errorf("reorder: order length %d does not match item count %d", len(order), len(items))
	}
	byPos := make(map[int]plan.Item, len(items))
	for _, it := range items {
		byPos[it.Position] = it
	}
	out := make([]plan.Item, 0, len(order))
	for _, pos := range order {
		it, ok := byPos[pos]
		if !ok {
			return nil, fmt.Errorf("reorder: unknown position %d", pos)
		}
		out = append(out, it)
	}
	return out, nil
}
