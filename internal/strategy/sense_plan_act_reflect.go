package strategy

import (
	"context"
	"strings"

	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/session"
)

// phase is one of the three sub-phases this strategy cycles through.
type phase string

const (
	phaseSense  phase = "sense"
	phaseAct    phase = "act"
	phaseReflect phase = "reflect"
)

// ReflectVerdict is the outer-loop decision a reflect call returns.
type ReflectVerdict string

const (
	ReflectContinue ReflectVerdict = "continue"
	ReflectReplan   ReflectVerdict = "replan"
	ReflectComplete ReflectVerdict = "complete"
)

// DefaultMaxOuterIterations caps the sense-plan-act-reflect outer loop
// absent an explicit configuration (spec §4.9.4 "configurable cap").
const DefaultMaxOuterIterations = 10

const reflectPrompt = `Review the recent activity below and decide whether the mission is
complete, whether the plan needs to be redone, or whether to continue acting.
Respond with exactly one word: continue, replan, or complete.

RECENT ACTIVITY:
%s`

// SensePlanActReflect cycles through three sub-phases per outer iteration
// (sense, act, reflect). All three are ordinary reason/act turns
// distinguished only by system-prompt bias; there is no separate plan
// phase, the allowed tools are the same in every phase, and reflect makes
// no model call of its own. The reflect turn's final text is parsed for a
// verdict that decides whether the outer loop continues, replans, or
// completes.
type SensePlanActReflect struct {
	// MaxOuterIterations bounds the number of reflect verdicts taken
	// before the strategy finishes. Zero uses DefaultMaxOuterIterations.
	MaxOuterIterations int

	current        phase
	outerIteration int
	stepsInPhase   int
}

func (SensePlanActReflect) Name() string { return NameSensePlanActReflect }

func (s *SensePlanActReflect) Init(context.Context, modelclient.Client, string, string, *session.State) error {
	s.current = phaseSense
	s.outerIteration = 0
	s.stepsInPhase = 0
	return nil
}

func (s *SensePlanActReflect) AugmentSystemPrompt(base string, _ *session.State, _ int) string {
	switch s.current {
	case phaseSense:
		return base + "\n\nPhase: sense. Gather the information needed before acting; avoid making changes yet."
	case phaseReflect:
		return base + "\n\nPhase: reflect. Summarize what was done and whether the mission is complete."
	default:
		return base + "\n\nPhase: act. Carry out the plan; use the plan tool to keep it current."
	}
}

// OnStepComplete advances the sense→act→reflect cycle. sense always
// advances to act after one turn; act continues until the model stops
// issuing tool calls, then one reflect turn runs and the verdict parsed
// from its final text drives the outer decision.
func (s *SensePlanActReflect) OnStepComplete(ctx context.Context, state *session.State, hadToolCalls bool) (bool, string, error) {
	switch s.current {
	case phaseSense:
		s.current = phaseAct
		s.stepsInPhase = 0
		return false, "", nil

	case phaseAct:
		if hadToolCalls {
			s.stepsInPhase++
			return false, "", nil
		}
		s.current = phaseReflect
		return false, "", nil

	case phaseReflect:
		verdict := parseReflectVerdict(finalAnswerText(state))
		s.outerIteration++
		maxIterations := s.MaxOuterIterations
		if maxIterations <= 0 {
			maxIterations = DefaultMaxOuterIterations
		}
		switch {
		case verdict == ReflectComplete:
			return true, finalAnswerText(state), nil
		case s.outerIteration >= maxIterations:
			return true, finalAnswerText(state), nil
		case verdict == ReflectReplan:
			s.current = phaseSense
			return false, "", nil
		default: // continue
			s.current = phaseAct
			return false, "", nil
		}
	}
	return true, finalAnswerText(state), nil
}

func parseReflectVerdict(text string) ReflectVerdict {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, string(ReflectComplete)):
		return ReflectComplete
	case strings.Contains(t, string(ReflectReplan)):
		return ReflectReplan
	default:
		return ReflectContinue
	}
}
