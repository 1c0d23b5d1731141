// Package epic implements the epic orchestrator (spec §4.11): a
// planner → workers → judge round loop that decomposes a mission into
// tasks on the message bus, dispatches them to isolated worker sessions,
// and iterates until a judge terminates. Grounded on the teacher's
// runtime/agent/runtime multi-phase run loop (plan, execute, evaluate)
// generalized from a single-agent turn loop to a multi-round, multi-agent
// pipeline, with the run directory's MISSION/CURRENT_STATE/MEMORY
// documents backed by afero.Fs in the manner of the pack's
// telnet2-opencode/go-memsh copy-on-write filesystem (cowfs.go), which is
// the only example in the corpus directly exercising afero for exactly
// this kind of small, path-addressed document storage.
package epic

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/plan"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/streamevt"
)

// Verdict is the judge's end-of-round decision (spec §4.11c).
type Verdict string

const (
	VerdictContinue   Verdict = "CONTINUE"
	VerdictFreshStart Verdict = "FRESH_START"
	VerdictComplete   Verdict = "COMPLETE"
)

// Defaults per spec §4.11.
const (
	DefaultMaxRounds      = 3
	DefaultPlannerCount   = 1
	DefaultWorkerCount    = 3
	DefaultMaxConcurrency = 3
	maxClaimRetries       = 5
)

const (
	plannerSpecialistTag = "planner"
	workerSpecialistTag  = "worker"
	judgeSpecialistTag   = "judge"
)

// Config tunes one orchestrator run. Zero values fall back to spec
// defaults in New.
type Config struct {
	MaxRounds      int
	PlannerCount   int
	WorkerCount    int
	MaxConcurrency int
	AllowedTypes   []string // task types workers claim; empty means any
}

// Result summarizes a completed (or aborted) run (spec §4.11 step 3).
type Result struct {
	RunID        string
	Rounds       int
	LastVerdict  Verdict
	CurrentState string
}

// taskSummary is one worker's completion report, folded into the judge's
// prompt and the round's MEMORY entry.
type taskSummary struct {
	TaskID  string
	Title   string
	Outcome string
	Summary string
}

// Orchestrator drives epic runs. Sessions is used only to read back a
// planner child's resulting plan after it terminates; the orchestrator
// never mutates session state directly (spec §5 "state store is sole
// arbiter of session mutation").
type Orchestrator struct {
	Board    bus.TaskBoard
	Spawner  *spawner.Spawner
	Sessions session.Store
	Events   *streamevt.Emitter // optional; nil disables event emission

	Fs       afero.Fs
	RunsRoot string

	Config Config
}

// New returns an Orchestrator with spec-default Config values filled in
// where cfg leaves them zero.
func New(board bus.TaskBoard, sp *spawner.Spawner, sessions session.Store, fs afero.Fs, runsRoot string, cfg Config) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.PlannerCount <= 0 {
		cfg.PlannerCount = DefaultPlannerCount
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Orchestrator{Board: board, Spawner: sp, Sessions: sessions, Fs: fs, RunsRoot: runsRoot, Config: cfg}
}

// Run executes one epic run to completion (judge COMPLETE), exhaustion of
// max rounds, or a fatal error (spec §4.11 steps 1-3).
func (o *Orchestrator) Run(ctx context.Context, mission string, scope []string) (Result, error) {
	runID := string(ids.NewRunID())
	rd := newRunDir(o.Fs, filepath.Join(o.RunsRoot, runID))
	if err := rd.writeMission(mission, scope); err != nil {
		return Result{}, fmt.Errorf("epic: create run directory: %w", err)
	}

	if o.Events != nil {
		ctx = streamevt.WithEmitter(ctx, o.Events)
	}

	root := ids.SessionID(runID)
	topic := taskTopic(runID)
	lastVerdict := VerdictContinue
	round := 0

	for round = 1; round <= o.Config.MaxRounds; round++ {
		o.emitRoundStarted(ctx, root, runID, round)

		currentState, _ := rd.readCurrentState()

		taskCount, err := o.planningPhase(ctx, root, runID, mission, round, currentState, topic)
		if err != nil {
			return Result{}, fmt.Errorf("epic: round %d planning: %w", round, err)
		}

		summaries := o.executionPhase(ctx, root, topic)

		verdict, judgeSummary, err := o.evaluationPhase(ctx, root, mission, currentState, summaries)
		if err != nil {
			return Result{}, fmt.Errorf("epic: round %d evaluation: %w", round, err)
		}
		lastVerdict = verdict

		if err := rd.writeCurrentState(judgeSummary); err != nil {
			return Result{}, fmt.Errorf("epic: round %d: write CURRENT_STATE: %w", round, err)
		}
		if err := rd.appendMemory(round, taskCount, summaries, verdict); err != nil {
			return Result{}, fmt.Errorf("epic: round %d: append MEMORY: %w", round, err)
		}

		o.emitRoundCompleted(ctx, root, runID, round, taskCount, verdict)

		if verdict == VerdictComplete {
			break
		}
		if verdict == VerdictFreshStart {
			if err := o.Board.Clear(ctx, topic); err != nil {
				return Result{}, fmt.Errorf("epic: round %d: clear tasks for FRESH_START: %w", round, err)
			}
		}
	}
	if round > o.Config.MaxRounds {
		round = o.Config.MaxRounds
	}
	finalState, _ := rd.readCurrentState()
	return Result{RunID: runID, Rounds: round, LastVerdict: lastVerdict, CurrentState: finalState}, nil
}

// planningPhase spawns PlannerCount planner agents, each producing a plan
// via the planner tool, and publishes every resulting plan item as a bus
// task (spec §4.11a). It returns the number of tasks published.
func (o *Orchestrator) planningPhase(ctx context.Context, root ids.SessionID, runID, mission string, round int, currentState, topic string) (int, error) {
	prompt := plannerPrompt(mission, round, currentState)

	type plannerOutcome struct {
		items []plan.Item
		err   error
	}
	outcomes := make([]plannerOutcome, o.Config.PlannerCount)
	var wg sync.WaitGroup
	for i := 0; i < o.Config.PlannerCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, childID, err := o.Spawner.Spawn(ctx, spawner.Request{
				ParentSession: root,
				SpecialistTag: plannerSpecialistTag,
				Mission:       prompt,
			})
			if err != nil {
				outcomes[i] = plannerOutcome{err: err}
				return
			}
			_ = result
			state, err := o.Sessions.Load(ctx, childID)
			if err != nil || state.Plan == nil {
				outcomes[i] = plannerOutcome{}
				return
			}
			outcomes[i] = plannerOutcome{items: state.Plan.Items}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, oc := range outcomes {
		if oc.err != nil {
			continue
		}
		for _, item := range oc.items {
			task := bus.Task{
				ID:       fmt.Sprintf("%s-r%d-%d", runID, round, item.Position),
				Topic:    topic,
				Type:     workerSpecialistTag,
				Priority: priorityFor(item),
				Payload:  item,
				Summary:  item.Description,
			}
			if _, err := o.Board.PublishTask(ctx, topic, task); err != nil {
				return total, fmt.Errorf("publish task for plan item %d: %w", item.Position, err)
			}
			total++
		}
	}
	return total, nil
}

// priorityFor derives a task priority from an item's dependencies: items
// with no declared dependencies get 10 and claim before the rest, which
// get 5.
func priorityFor(item plan.Item) int {
	if len(item.Dependencies) == 0 {
		return 10
	}
	return 5
}

// executionPhase spawns up to WorkerCount concurrent workers, each
// draining the bus until it returns empty, and collects their summaries
// (spec §4.11b).
func (o *Orchestrator) executionPhase(ctx context.Context, root ids.SessionID, topic string) []taskSummary {
	var mu sync.Mutex
	var summaries []taskSummary
	var wg sync.WaitGroup

	concurrency := o.Config.WorkerCount
	if o.Config.MaxConcurrency > 0 && o.Config.MaxConcurrency < concurrency {
		concurrency = o.Config.MaxConcurrency
	}
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		workerID := fmt.Sprintf("worker-%d", w)
		go func(workerID string) {
			defer wg.Done()
			for {
				task, ok, err := o.claimTaskWithRetry(ctx, topic, workerID)
				if err != nil || !ok {
					return
				}
				summary := o.runWorkerTask(ctx, root, task)
				mu.Lock()
				summaries = append(summaries, summary)
				mu.Unlock()
			}
		}(workerID)
	}
	wg.Wait()
	return summaries
}

// claimTaskWithRetry wraps Board.RequestTask with a bounded randomized
// backoff on transport errors (spec §4.11 "Orderings and tie-breaks").
// An in-process board's RequestTask is a single atomic read-and-claim, so
// in practice this loop exits on the first call; the retry exists for
// pluggable distributed backends where the primitive may race.
func (o *Orchestrator) claimTaskWithRetry(ctx context.Context, topic, workerID string) (bus.Task, bool, error) {
	var lastErr error
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		task, ok, err := o.Board.RequestTask(ctx, topic, workerID, o.Config.AllowedTypes)
		if err == nil {
			return task, ok, nil
		}
		lastErr = err
		backoff := time.Duration(50*(1<<attempt)) * time.Millisecond
		backoff += time.Duration(rand.Int63n(int64(backoff/2 + 1)))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return bus.Task{}, false, ctx.Err()
		}
	}
	return bus.Task{}, false, lastErr
}

func (o *Orchestrator) runWorkerTask(ctx context.Context, root ids.SessionID, task bus.Task) taskSummary {
	result, _, err := o.Spawner.Spawn(ctx, spawner.Request{
		ParentSession: root,
		SpecialistTag: workerSpecialistTag,
		Mission:       workerPrompt(task),
	})
	if err != nil {
		_ = o.Board.FailTask(ctx, task.ID, task.Version, err.Error())
		return taskSummary{TaskID: task.ID, Title: task.Summary, Outcome: "failed", Summary: err.Error()}
	}
	if result.Status != loop.StatusCompleted {
		msg := result.ErrorMessage
		if msg == "" {
			msg = string(result.Status)
		}
		_ = o.Board.FailTask(ctx, task.ID, task.Version, msg)
		return taskSummary{TaskID: task.ID, Title: task.Summary, Outcome: "failed", Summary: msg}
	}
	_ = o.Board.CompleteTask(ctx, task.ID, task.Version, result.FinalAnswer)
	return taskSummary{TaskID: task.ID, Title: task.Summary, Outcome: "completed", Summary: result.FinalAnswer}
}

// evaluationPhase spawns a single judge agent and parses its verdict
// (spec §4.11c). The spec's non-default "two judges, first completed
// wins" fan-out is not wired here since Config exposes no judge-count
// knob; the default path always spawns exactly one.
func (o *Orchestrator) evaluationPhase(ctx context.Context, root ids.SessionID, mission, currentState string, summaries []taskSummary) (Verdict, string, error) {
	result, _, err := o.Spawner.Spawn(ctx, spawner.Request{
		ParentSession: root,
		SpecialistTag: judgeSpecialistTag,
		Mission:       judgePrompt(mission, currentState, summaries),
	})
	if err != nil {
		return VerdictContinue, "", fmt.Errorf("judge spawn: %w", err)
	}
	return parseVerdict(result.FinalAnswer), result.FinalAnswer, nil
}

// parseVerdict extracts CONTINUE/FRESH_START/COMPLETE from the judge's
// free-text answer, defaulting to CONTINUE on anything unrecognized
// (spec §4.11c "Unknown responses default to CONTINUE").
func parseVerdict(answer string) Verdict {
	upper := strings.ToUpper(answer)
	switch {
	case strings.Contains(upper, string(VerdictComplete)):
		return VerdictComplete
	case strings.Contains(upper, string(VerdictFreshStart)):
		return VerdictFreshStart
	default:
		return VerdictContinue
	}
}

func taskTopic(runID string) string { return fmt.Sprintf("epic.%s.tasks", runID) }

func (o *Orchestrator) emitRoundStarted(ctx context.Context, sessionID ids.SessionID, runID string, round int) {
	if o.Events == nil {
		return
	}
	_ = o.Events.Emit(ctx, sessionID, streamevt.TypeRoundStarted, streamevt.RoundPayload{RunID: runID, RoundNumber: round})
}

func (o *Orchestrator) emitRoundCompleted(ctx context.Context, sessionID ids.SessionID, runID string, round, taskCount int, verdict Verdict) {
	if o.Events == nil {
		return
	}
	_ = o.Events.Emit(ctx, sessionID, streamevt.TypeRoundCompleted, streamevt.RoundPayload{
		RunID: runID, RoundNumber: round, TaskCount: taskCount, JudgeDecision: string(verdict),
	})
}
