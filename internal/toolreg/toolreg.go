// Package toolreg is the tool registry and resolver (spec §4.15): maps tool
// names to metadata and constructs runnable instances, injecting the model
// client, identity context, and sub-agent spawner each tool needs.
// Grounded on the teacher's runtime/agent/tools.ToolSpec metadata shape
// (name, description, tags, approval/parallelism-style flags) and
// runtime/agent/runtime/agent_tools.go's dependency-injecting instantiation
// pattern, generalized from Goa-DSL-generated specs to a plain runtime map.
package toolreg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/model"
)

// RiskLevel is a tool's approval-risk classification.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskHigh   RiskLevel = "high"
)

// Handler executes one resolved tool call and returns its raw output.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Spec is a tool's registered metadata (spec §4.15).
type Spec struct {
	Name               string
	Description        string
	InputSchema        json.RawMessage
	RiskLevel          RiskLevel
	SupportsParallelism bool
	Idempotent         bool
	Timeout            int // seconds; 0 uses the executor default
	Construct          func(deps Deps) (Handler, error)
}

// Deps bundles the dependencies a constructed tool handler may need.
type Deps struct {
	ModelResolver any // modelclient.RoleResolver; kept as any to avoid an import cycle with modelclient users that also import toolreg
	IdentityCtx   map[string]any
	Spawner       any // spawner.Spawner; same rationale
	Registry      *Registry
}

// Registry maps tool names to Specs. It becomes immutable once Seal is
// called; until then Register may add tools.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
	sealed bool
}

// New returns an empty, unsealed Registry.
func New() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds spec to the registry. Panics if called after Seal, since
// registration after startup would violate the immutability invariant.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("toolreg: cannot register after Seal")
	}
	r.specs[spec.Name] = spec
}

// Seal freezes the registry; no further Register calls are permitted.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the Spec for name, or errs.KindUnknownTool.
func (r *Registry) Lookup(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, errs.Newf(errs.KindUnknownTool, "unknown tool %q", name)
	}
	return spec, nil
}

// Definitions returns the ToolDefinition view of every registered tool, for
// inclusion in an LLM request.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ToolDefinition, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, model.ToolDefinition{Name: s.Name, Description: s.Description, InputSchema: s.InputSchema})
	}
	return out
}

// Resolver instantiates Handlers from registered Specs, injecting Deps.
type Resolver struct {
	registry *Registry
}

// NewResolver returns a Resolver over registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve constructs a Handler for name, or errs.KindUnknownTool if name
// isn't registered.
func (r *Resolver) Resolve(name string, deps Deps) (Spec, Handler, error) {
	spec, err := r.registry.Lookup(name)
	if err != nil {
		return Spec{}, nil, err
	}
	deps.Registry = r.registry
	handler, err := spec.Construct(deps)
	if err != nil {
		return Spec{}, nil, fmt.Errorf("toolreg: construct %q: %w", name, err)
	}
	return spec, handler, nil
}
