// Package spawner implements the sub-agent spawner (spec §4.10): given a
// specialist tag or custom definition and a mission, it derives an isolated
// child session, builds a child agent via the agent factory, executes it to
// a terminal ExecutionResult, and optionally compresses an oversized final
// answer before returning. Grounded on the teacher's child-run linkage
// model in runtime/agent/stream.ChildRunLinked (a parent tool call points at
// a spawned child agent run), generalized from an event-stream annotation
// into the actual operation that creates and drives that child run.
package spawner

import (
	"context"
	"fmt"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
)

// DefaultMaxDepth bounds sub-agent nesting (spec §4.10 default).
const DefaultMaxDepth = 3

// DefaultSummarizeThreshold is the final-answer character length above
// which a spawned child's result is compressed before return.
const DefaultSummarizeThreshold = 4_000

// Agent is the minimal shape a factory-built agent must expose for the
// spawner to drive it to completion. internal/agentdef.Agent satisfies
// this.
type Agent interface {
	Execute(ctx context.Context, mission string, sessionID ids.SessionID) (loop.ExecutionResult, error)
	Close(ctx context.Context) error
}

// Factory builds a runnable child Agent from a specialist tag (or a custom
// definition key) and a profile/identity context. internal/agentdef.Factory
// satisfies this.
type Factory interface {
	BuildChild(ctx context.Context, specialistTag string, identityCtx map[string]any) (Agent, error)
}

// Request is the spawn operation's input.
type Request struct {
	ParentSession ids.SessionID
	SpecialistTag string
	Mission       string
	IdentityCtx   map[string]any
}

// Spawner drives the spawn operation.
type Spawner struct {
	Factory             Factory
	Summarizer          modelclient.Client // optional; nil disables result compression
	MaxDepth             int
	SummarizeThreshold   int
}

// New returns a Spawner using spec-default depth and summarization
// thresholds.
func New(factory Factory, summarizer modelclient.Client) *Spawner {
	return &Spawner{Factory: factory, Summarizer: summarizer, MaxDepth: DefaultMaxDepth, SummarizeThreshold: DefaultSummarizeThreshold}
}

// Spawn constructs a child session id, builds the child agent, executes it
// to terminal, and returns its ExecutionResult (with a compressed final
// answer if it exceeds the threshold and a Summarizer is configured). The
// child agent's cleanup runs before return regardless of outcome.
func (s *Spawner) Spawn(ctx context.Context, req Request) (loop.ExecutionResult, ids.SessionID, error) {
	maxDepth := s.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if ids.Depth(req.ParentSession) >= maxDepth {
		return loop.ExecutionResult{}, "", errs.Newf(errs.KindParamValidation, "spawner: max nesting depth %d reached", maxDepth)
	}

	childID := ids.Child(req.ParentSession, req.SpecialistTag)

	agent, err := s.Factory.BuildChild(ctx, req.SpecialistTag, req.IdentityCtx)
	if err != nil {
		return loop.ExecutionResult{}, childID, fmt.Errorf("spawner: build child agent: %w", err)
	}
	defer agent.Close(ctx)

	result, execErr := agent.Execute(ctx, req.Mission, childID)

	threshold := s.SummarizeThreshold
	if threshold <= 0 {
		threshold = DefaultSummarizeThreshold
	}
	if s.Summarizer != nil && len(result.FinalAnswer) > threshold {
		if compressed, cerr := s.summarize(ctx, result.FinalAnswer); cerr == nil {
			result.FinalAnswer = compressed
		}
	}
	return result, childID, execErr
}

func (s *Spawner) summarize(ctx context.Context, answer string) (string, error) {
	resp, err := s.Summarizer.Complete(ctx, modelclient.Request{
		Role: "summarizer",
		Messages: []model.Message{model.NewTextMessage(model.RoleUser,
			"Compress the following result to its essential findings, preserving any concrete artifacts (file paths, ids, numbers):\n\n"+answer)},
	})
	if err != nil {
		return "", err
	}
	for _, p := range resp.Content {
		if tp, ok := p.(model.TextPart); ok {
			return tp.Text, nil
		}
	}
	return "", fmt.Errorf("spawner: summarizer returned no text content")
}
