// Package executor implements the top-level executor service (spec
// §4.16): the single entry point the CLI and the HTTP API both call,
// building a ready-to-run agent from a profile's agent definition,
// optionally routing the mission to the epic orchestrator first via the
// auto-epic classifier (spec §4.17), and returning either a synchronous
// ExecutionResult or an ordered StreamEvent channel. Grounded on the
// teacher's runtime/agent/runtime service layer, which plays the same
// "top of the stack, wires everything, exposes one call" role for a Goa
// service method; generalized here to also own the epic-routing decision
// the teacher's service does not make.
package executor

import (
	"context"
	"fmt"

	"github.com/rudi77/taskforge/internal/agentdef"
	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/classifier"
	"github.com/rudi77/taskforge/internal/epic"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/streamevt"

	"github.com/spf13/afero"
)

// ForceMode overrides the profile's auto-epic decision entirely, matching
// the CLI's `--auto-epic`/`--no-auto-epic` flags (spec §4.17 "classification
// is skipped ... if a CLI override forces a mode").
type ForceMode string

const (
	ForceModeNone   ForceMode = ""
	ForceModeSimple ForceMode = "simple"
	ForceModeEpic   ForceMode = "epic"
)

// AutoEpicConfig is a profile's auto-epic routing settings (spec §4.16).
type AutoEpicConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
}

// Profile selects an agent definition and carries the auto-epic routing
// settings the executor consults before running it (spec §4.14 "given a
// definition and a profile", §4.16 "if auto-epic is enabled in the
// profile").
type Profile struct {
	AgentID  string
	AutoEpic AutoEpicConfig
}

// Outcome is delivered once by ExecuteMissionStreaming's result channel
// after the event channel closes.
type Outcome struct {
	Result loop.ExecutionResult
	Err    error
}

// Service wires the agent factory, classifier, and epic orchestrator
// collaborators behind the two spec §4.16 operations.
type Service struct {
	Registry   *agentdef.Registry
	Factory    *agentdef.Factory
	Classifier *classifier.Classifier
	Sessions   session.Store

	EpicBoard    bus.TaskBoard
	EpicSpawner  *spawner.Spawner
	EpicFS       afero.Fs
	EpicRunsRoot string
	DefaultEpic  epic.Config

	// StreamCapacity sizes the event channel ExecuteMissionStreaming
	// allocates per call; 0 uses streamevt's own default.
	StreamCapacity int
}

// New returns a Service over its collaborators, with spec-default epic
// settings.
func New(registry *agentdef.Registry, factory *agentdef.Factory, clsfr *classifier.Classifier, sessions session.Store, epicBoard bus.TaskBoard, epicSpawner *spawner.Spawner, epicFS afero.Fs, epicRunsRoot string) *Service {
	return &Service{
		Registry:     registry,
		Factory:      factory,
		Classifier:   clsfr,
		Sessions:     sessions,
		EpicBoard:    epicBoard,
		EpicSpawner:  epicSpawner,
		EpicFS:       epicFS,
		EpicRunsRoot: epicRunsRoot,
	}
}

// ExecuteMission builds, runs, and returns the terminal result for mission
// under profile (spec §4.16 "execute_mission"). An empty sessionID mints a
// fresh one. force overrides auto-epic routing when non-empty.
func (s *Service) ExecuteMission(ctx context.Context, mission string, profile Profile, sessionID ids.SessionID, force ForceMode) (loop.ExecutionResult, error) {
	return s.execute(ctx, mission, profile, sessionID, force, nil)
}

// ExecuteMissionStreaming is ExecuteMission's streaming variant (spec
// §4.16 "execute_mission_streaming"): it returns a channel of StreamEvents
// in emission order and a second channel that receives exactly one Outcome
// once execution reaches a terminal state. The event channel closes before
// the Outcome is sent and the outcome channel closes after it; drain the
// event channel before (or while) waiting on the outcome channel to avoid
// stalling the producer (spec §5 back-pressure).
func (s *Service) ExecuteMissionStreaming(ctx context.Context, mission string, profile Profile, sessionID ids.SessionID, force ForceMode) (<-chan streamevt.Event, <-chan Outcome) {
	emitter := streamevt.NewEmitter(s.StreamCapacity)
	outcome := make(chan Outcome, 1)
	go func() {
		defer close(outcome)
		result, err := s.execute(ctx, mission, profile, sessionID, force, emitter)
		emitter.Close()
		outcome <- Outcome{Result: result, Err: err}
	}()
	return emitter.Events(), outcome
}

// RunEpic runs the epic orchestrator directly against mission and scope,
// bypassing profile/classifier routing entirely (spec §6 CLI `epic run`).
// Zero fields in cfg fall back to the Service's DefaultEpic, which itself
// falls back to epic's own spec defaults.
func (s *Service) RunEpic(ctx context.Context, mission string, scope []string, cfg epic.Config) (epic.Result, error) {
	return s.epicOrchestrator(s.mergeEpicConfig(cfg)).Run(ctx, mission, scope)
}

func (s *Service) execute(ctx context.Context, mission string, profile Profile, sessionID ids.SessionID, force ForceMode, emitter *streamevt.Emitter) (loop.ExecutionResult, error) {
	if sessionID == "" {
		sessionID = ids.NewSessionID()
	}
	if emitter != nil {
		ctx = streamevt.WithEmitter(ctx, emitter)
	}

	if s.routeToEpic(ctx, mission, profile, force, sessionID, emitter) {
		result, err := s.epicOrchestrator(s.mergeEpicConfig(epic.Config{})).Run(ctx, mission, nil)
		if err != nil {
			return loop.ExecutionResult{}, fmt.Errorf("executor: epic run: %w", err)
		}
		return loop.ExecutionResult{Status: loop.StatusCompleted, FinalAnswer: result.CurrentState, Steps: result.Rounds}, nil
	}

	def, ok := s.Registry.Get(profile.AgentID)
	if !ok {
		return loop.ExecutionResult{}, errs.Newf(errs.KindParamValidation, "executor: unknown agent %q", profile.AgentID)
	}
	agent, err := s.Factory.Build(ctx, def)
	if err != nil {
		return loop.ExecutionResult{}, fmt.Errorf("executor: build agent %q: %w", profile.AgentID, err)
	}
	defer agent.Close(ctx)
	return agent.Execute(ctx, mission, sessionID)
}

// routeToEpic decides, per spec §4.16, whether mission goes to the epic
// orchestrator instead of the ordinary agent pipeline, and emits the
// epic-escalation event when it does.
func (s *Service) routeToEpic(ctx context.Context, mission string, profile Profile, force ForceMode, sessionID ids.SessionID, emitter *streamevt.Emitter) bool {
	switch force {
	case ForceModeEpic:
		return true
	case ForceModeSimple:
		return false
	}
	if !profile.AutoEpic.Enabled || s.Classifier == nil {
		return false
	}

	verdict := s.Classifier.ClassifyWithThreshold(ctx, mission, profile.AutoEpic.ConfidenceThreshold)
	if verdict.Complexity != classifier.ComplexityComplex {
		return false
	}
	if emitter != nil {
		_ = emitter.Emit(ctx, sessionID, streamevt.TypeEpicEscalation, streamevt.EpicEscalationPayload{
			Complexity: string(verdict.Complexity), Confidence: verdict.Confidence, Reason: verdict.Reason,
		})
	}
	return true
}

func (s *Service) epicOrchestrator(cfg epic.Config) *epic.Orchestrator {
	return epic.New(s.EpicBoard, s.EpicSpawner, s.Sessions, s.EpicFS, s.EpicRunsRoot, cfg)
}

// mergeEpicConfig fills zero fields of cfg from the Service's DefaultEpic,
// so a CLI `epic run --workers 5` only overrides what it names.
func (s *Service) mergeEpicConfig(cfg epic.Config) epic.Config {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = s.DefaultEpic.MaxRounds
	}
	if cfg.PlannerCount <= 0 {
		cfg.PlannerCount = s.DefaultEpic.PlannerCount
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = s.DefaultEpic.WorkerCount
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = s.DefaultEpic.MaxConcurrency
	}
	if cfg.AllowedTypes == nil {
		cfg.AllowedTypes = s.DefaultEpic.AllowedTypes
	}
	return cfg
}
