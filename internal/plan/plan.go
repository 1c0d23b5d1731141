// Package plan defines the session-scoped todo list strategies and the
// planner tool mutate (spec §3 "Plan / PlanItem", §8 invariants 2-3).
package plan

import "fmt"

// Status is the lifecycle state of one PlanItem.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Item is a single ordered plan entry.
type Item struct {
	Position           int
	Description        string
	AcceptanceCriteria string
	Dependencies       []int // positions of prior items
	Status             Status
	ChosenTool         string
	ResultSnapshot      string
}

// Plan is a session-scoped ordered list of Items.
type Plan struct {
	Items []Item
}

// finished reports whether an item at the given position is completed or
// skipped, i.e. no longer blocks dependents (spec §3 invariant).
func (p *Plan) finished(position int) bool {
	for _, it := range p.Items {
		if it.Position == position {
			return it.Status == StatusCompleted || it.Status == StatusSkipped
		}
	}
	return false
}

// Acyclic reports whether the dependency graph across Items is acyclic
// (spec §8 invariant 2).
func (p *Plan) Acyclic() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(p.Items))
	byPos := make(map[int]Item, len(p.Items))
	for _, it := range p.Items {
		byPos[it.Position] = it
		color[it.Position] = white
	}
	var visit func(pos int) bool
	visit = func(pos int) bool {
		switch color[pos] {
		case gray:
			return false // back-edge: cycle
		case black:
			return true
		}
		color[pos] = gray
		for _, dep := range byPos[pos].Dependencies {
			if !visit(dep) {
				return false
			}
		}
		color[pos] = black
		return true
	}
	for _, it := range p.Items {
		if !visit(it.Position) {
			return false
		}
	}
	return true
}

// CanStart reports whether the item at position can move to in-progress,
// i.e. every declared dependency is completed or skipped (spec §3, §8
// invariant 3).
func (p *Plan) CanStart(position int) bool {
	for _, it := range p.Items {
		if it.Position != position {
			continue
		}
		for _, dep := range it.Dependencies {
			if !p.finished(dep) {
				return false
			}
		}
		return true
	}
	return false
}

// NextActionable returns the position of the first pending item whose
// dependencies are all satisfied, or -1 if none.
func (p *Plan) NextActionable() int {
	for _, it := range p.Items {
		if it.Status == StatusPending && p.CanStart(it.Position) {
			return it.Position
		}
	}
	return -1
}

// AllTerminal reports whether every item is completed, failed, or skipped —
// the plan-then-execute strategy's loop termination condition.
func (p *Plan) AllTerminal() bool {
	for _, it := range p.Items {
		switch it.Status {
		case StatusCompleted, StatusFailed, StatusSkipped:
		default:
			return false
		}
	}
	return true
}

// Validate returns an error describing the first invariant violation found,
// or nil if the plan is well-formed.
func (p *Plan) Validate() error {
	if !p.Acyclic() {
		return fmt.Errorf("plan: dependency graph contains a cycle")
	}
	seen := make(map[int]bool, len(p.Items))
	for _, it := range p.Items {
		if seen[it.Position] {
			return fmt.Errorf("plan: duplicate position %d", it.Position)
		}
		seen[it.Position] = true
	}
	for _, it := range p.Items {
		for _, dep := range it.Dependencies {
			if _, ok := byPosition(p, dep); !ok {
				return fmt.Errorf("plan: item %d depends on unknown position %d", it.Position, dep)
			}
		}
	}
	return nil
}

func byPosition(p *Plan, pos int) (Item, bool) {
	for _, it := range p.Items {
		if it.Position == pos {
			return it, true
		}
	}
	return Item{}, false
}
