// Package agentdef implements the agent definition registry and factory
// (spec §4.14): aggregates agent definitions from four sources into one
// model, validates tool/specialist references, and builds a ready-to-execute
// agent by resolving tools, wiring the state store, history manager,
// context builder, budgeter, and tool executor, and instantiating the
// selected planning strategy. Grounded on the teacher's
// runtime/agent/runtime package, which plays the analogous role of
// aggregating a Goa-DSL-generated agent spec plus user/plugin overrides
// into one runnable configuration; generalized here from compile-time Goa
// design packages to a plain four-source registry.
package agentdef

import (
	"context"
	"fmt"
	"sync"

	"github.com/rudi77/taskforge/internal/budget"
	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/history"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/plantool"
	"github.com/rudi77/taskforge/internal/promptctx"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/spawner"
	"github.com/rudi77/taskforge/internal/strategy"
	"github.com/rudi77/taskforge/internal/streamevt"
	"github.com/rudi77/taskforge/internal/toolexec"
	"github.com/rudi77/taskforge/internal/toolreg"
	"github.com/rudi77/taskforge/internal/toolresult"
)

// Source identifies where a definition was loaded from, bearing on whether
// it may be overridden (spec §4.14 "mutability").
type Source string

const (
	SourceConfig      Source = "config"
	SourceUserOverride Source = "user-override"
	SourcePlugin      Source = "plugin"
	SourceSlashCommand Source = "slash-command"
)

// Mutability records whether a definition can be changed at runtime.
type Mutability string

const (
	MutabilityFixed     Mutability = "fixed"
	MutabilityOverridable Mutability = "overridable"
)

// Identity fields (spec §4.14 "identity").
type Identity struct {
	AgentID    string
	Name       string
	Source     Source
	Mutability Mutability
}

// Behavior fields (spec §4.14 "behavior").
type Behavior struct {
	SystemPrompt     string
	SpecialistTag    string
	PlanningStrategy string // one of strategy.Name*
	MaxSteps         int
	ModelRoles       map[string]string // logical role -> provider model id
}

// Capabilities fields (spec §4.14 "capabilities").
type Capabilities struct {
	Tools      []string
	MCPServers []string
}

// AgentContext fields (spec §4.14 "context").
type AgentContext struct {
	BaseProfile string
	WorkDir     string
	IdentityCtx map[string]any
}

// Definition is the normalized model every source maps onto.
type Definition struct {
	Identity
	Behavior
	Capabilities
	AgentContext
}

// Registry aggregates Definitions from the four sources into one lookup,
// validating tool references and specialist tags against a Registry of
// registered tools (spec §4.14).
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
	specialists map[string]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{definitions: make(map[string]Definition), specialists: make(map[string]bool)}
}

// RegisterSpecialistTag marks tag as a known specialist for validation.
func (r *Registry) RegisterSpecialistTag(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specialists[tag] = true
}

// Add normalizes and stores one definition, validating its tool references
// against tools and its specialist tag (if any) against previously
// registered tags. A later definition with the same AgentID silently
// replaces the earlier one when either the new definition's source is
// SourceUserOverride or the earlier one is MutabilityOverridable; any other
// collision with an existing AgentID is an error.
func (r *Registry) Add(def Definition, tools *toolreg.Registry) error {
	for _, name := range def.Tools {
		if _, err := tools.Lookup(name); err != nil {
			return errs.Newf(errs.KindParamValidation, "agentdef: %s references unregistered tool %q", def.AgentID, name)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if def.SpecialistTag != "" && !r.specialists[def.SpecialistTag] {
		return errs.Newf(errs.KindParamValidation, "agentdef: %s has unknown specialist tag %q", def.AgentID, def.SpecialistTag)
	}
	if existing, ok := r.definitions[def.AgentID]; ok && existing.Mutability != MutabilityOverridable && def.Source != SourceUserOverride {
		return errs.Newf(errs.KindParamValidation, "agentdef: %s is already registered and is not overridable", def.AgentID)
	}
	r.definitions[def.AgentID] = def
	return nil
}

// Get returns the Definition for agentID.
func (r *Registry) Get(agentID string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[agentID]
	return d, ok
}

// BySpecialistTag returns a Definition carrying the given specialist tag,
// used by the spawner to resolve a spawn-by-tag request. When several
// definitions share the tag, which one is returned is not defined.
func (r *Registry) BySpecialistTag(tag string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.definitions {
		if d.SpecialistTag == tag {
			return d, true
		}
	}
	return Definition{}, false
}

// Deps bundles the process-wide collaborators the factory wires into every
// built agent.
type Deps struct {
	Tools     *toolreg.Registry
	Resolver    *toolreg.Resolver
	Sessions    session.Store
	Results     toolresult.Store
	Models      modelclient.RoleResolver
	Approval    toolexec.ApprovalPolicy
	Bus         bus.Bus
	PlanTopic   string
	Spawner     *spawner.Spawner
}

// Factory builds ready-to-execute Agents from Definitions.
type Factory struct {
	Registry *Registry
	Deps     Deps
}

// NewFactory returns a Factory over registry and deps.
func NewFactory(registry *Registry, deps Deps) *Factory {
	return &Factory{Registry: registry, Deps: deps}
}

// Agent is one built, runnable agent instance.
type Agent struct {
	def      Definition
	loop     *loop.Loop
	strategy loop.Strategy
	history  *history.Manager
	tools    []model.ToolDefinition
}

// Execute drives sessionID to a terminal ExecutionResult (satisfies
// spawner.Agent).
func (a *Agent) Execute(ctx context.Context, mission string, sessionID ids.SessionID) (loop.ExecutionResult, error) {
	return a.loop.Execute(ctx, mission, sessionID, ids.AgentIdent(a.def.AgentID), a.def.SystemPrompt, a.history, a.tools)
}

// Close runs the agent's cleanup (satisfies spawner.Agent). The base
// collaborators (model clients, stores) are process-wide and are not
// closed here; only per-agent resources would be.
func (a *Agent) Close(context.Context) error { return nil }

// StrategyName reports the planning strategy driving this agent.
func (a *Agent) StrategyName() string { return a.strategy.Name() }

// Build constructs an Agent from def.
func (f *Factory) Build(ctx context.Context, def Definition) (*Agent, error) {
	client, _, err := f.Deps.Models.Resolve(def.ModelRoles["default"])
	if err != nil {
		return nil, fmt.Errorf("agentdef: resolve default model role: %w", err)
	}

	toolDefs := make([]model.ToolDefinition, 0, len(def.Tools))
	for _, name := range def.Tools {
		spec, err := f.Deps.Tools.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("agentdef: build %s: %w", def.AgentID, err)
		}
		toolDefs = append(toolDefs, model.ToolDefinition{Name: spec.Name, Description: spec.Description, InputSchema: spec.InputSchema})
	}

	hist := history.New(f.Deps.Results)
	executor := toolexec.New(f.Deps.Tools, f.Deps.Resolver, hist, f.Deps.Approval)
	strat := strategy.New(def.PlanningStrategy)
	planTopic := f.Deps.PlanTopic
	if planTopic == "" {
		planTopic = fmt.Sprintf("session.%s.plan", def.AgentID)
	}

	l := loop.New(loop.Deps{
		Sessions:    f.Deps.Sessions,
		Model:       client,
		Budgeter:    budget.New(),
		Prompt:      promptctx.New(),
		Executor:    executor,
		ToolDeps:    toolreg.Deps{ModelResolver: f.Deps.Models, IdentityCtx: def.IdentityContext(), Spawner: f.Deps.Spawner, Registry: f.Deps.Tools},
		PlanMutator: plantool.NewMutator(f.Deps.Bus, planTopic),
		Events:      streamevt.FromContext(ctx),
		MaxSteps:    def.MaxSteps,
	}, strat)

	return &Agent{def: def, loop: l, strategy: strat, history: hist, tools: toolDefs}, nil
}

// BuildChild resolves specialistTag to a Definition and builds its Agent,
// merging identityCtx into the definition's own context (satisfies
// spawner.Factory).
func (f *Factory) BuildChild(ctx context.Context, specialistTag string, identityCtx map[string]any) (spawner.Agent, error) {
	def, ok := f.Registry.BySpecialistTag(specialistTag)
	if !ok {
		return nil, errs.Newf(errs.KindParamValidation, "agentdef: unknown specialist tag %q", specialistTag)
	}
	merged := make(map[string]any, len(def.IdentityContext())+len(identityCtx))
	for k, v := range def.IdentityContext() {
		merged[k] = v
	}
	for k, v := range identityCtx {
		merged[k] = v
	}
	def.AgentContext.IdentityCtx = merged
	return f.Build(ctx, def)
}

// IdentityContext returns the definition's identity context map, defaulting
// to an empty map rather than nil.
func (d Definition) IdentityContext() map[string]any {
	if d.AgentContext.IdentityCtx == nil {
		return map[string]any{}
	}
	return d.AgentContext.IdentityCtx
}
