// Package config loads the process-wide configuration that wires every
// collaborator in internal/agentdef.Deps, internal/executor.Service, and
// internal/httpapi.Server from one YAML file: model providers and their
// role mappings, storage backend selection for sessions/tool results/the
// bus/liveness/workflows, agent profiles, and epic defaults. Grounded on
// the pack's haasonsaas-nexus internal/config package (a single yaml.v3
// struct tree, os.ExpandEnv environment interpolation, a defaults pass,
// then validation returning an aggregate error) scaled to this runtime's
// smaller surface.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the on-disk configuration tree.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Logging  LoggingConfig           `yaml:"logging"`
	Models   ModelsConfig            `yaml:"models"`
	Storage  StorageConfig           `yaml:"storage"`
	Epic        EpicConfig                  `yaml:"epic"`
	Profiles    map[string]ProfileConfig    `yaml:"profiles"`
	Definitions map[string]DefinitionConfig `yaml:"definitions"`
	Gateway     GatewayConfig               `yaml:"gateway"`
}

// GatewayConfig selects the workflow.Gateway send_request dispatches
// through (spec §4.18): "noop" and "log" need nothing further; "temporal"
// signals a running Temporal workflow execution per run id and requires
// HostPort (a Namespace of "" uses Temporal's "default").
type GatewayConfig struct {
	Kind      string `yaml:"kind"`
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

// ServerConfig configures the HTTP listener (internal/httpapi).
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// LoggingConfig configures structured logging verbosity and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ModelsConfig configures provider credentials and the logical role ->
// provider model mapping an agent definition's ModelRoles field resolves
// against (spec §4.14).
type ModelsConfig struct {
	// DefaultProvider selects which entry of Providers backs a role when the
	// role's own Providers entry does not set one explicitly.
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	// Roles maps a logical role name (default, planner, classifier,
	// summarizer, judge, reflection, ...) to a provider model id, qualified
	// as "provider:model" (e.g. "anthropic:claude-sonnet-4-5"). A bare model
	// id uses DefaultProvider.
	Roles map[string]string `yaml:"roles"`
}

// ProviderConfig configures one concrete LLM provider adapter.
type ProviderConfig struct {
	// Kind selects the adapter: "anthropic" or "bedrock".
	Kind         string `yaml:"kind"`
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	MaxTokens    int    `yaml:"max_tokens"`
	Region       string `yaml:"region"`
}

// StorageConfig selects the backend for each persistence seam spec §4.1,
// §4.2, §4.12, §4.13, and §4.18 leave pluggable.
type StorageConfig struct {
	Sessions    BackendConfig `yaml:"sessions"`
	ToolResults BackendConfig `yaml:"tool_results"`
	Bus         BackendConfig `yaml:"bus"`
	Liveness    BackendConfig `yaml:"liveness"`
	Workflows   BackendConfig `yaml:"workflows"`
	// RunsRoot is the filesystem root epic runs persist
	// MISSION/CURRENT_STATE/MEMORY documents under (spec §4.11, §6).
	RunsRoot string `yaml:"runs_root"`
}

// BackendConfig names a backend ("mem", "mongo", "redis", "nats", depending
// on the seam) plus its connection string; seams that don't use one of
// these fields simply leave it blank.
type BackendConfig struct {
	Kind string        `yaml:"kind"`
	DSN  string        `yaml:"dsn"`
	TTL  time.Duration `yaml:"ttl"`
}

// EpicConfig carries the default internal/epic.Config values applied to
// any run that does not override them explicitly (spec §4.11 "Zero values
// fall back to spec defaults").
type EpicConfig struct {
	MaxRounds      int      `yaml:"max_rounds"`
	PlannerCount   int      `yaml:"planner_count"`
	WorkerCount    int      `yaml:"worker_count"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	AllowedTypes   []string `yaml:"allowed_types"`
}

// ProfileConfig is one named profile: which agent definition to run and
// its auto-epic routing settings (spec §4.14, §4.16, §4.17).
type ProfileConfig struct {
	AgentID  string         `yaml:"agent_id"`
	AutoEpic AutoEpicConfig `yaml:"auto_epic"`
}

// AutoEpicConfig mirrors internal/executor.AutoEpicConfig on the wire.
type AutoEpicConfig struct {
	Enabled             bool    `yaml:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// Load reads path, expands ${VAR} / $VAR environment references, decodes
// strictly (unknown fields reject), applies defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Gateway.Kind == "" {
		cfg.Gateway.Kind = "noop"
	}
	if cfg.Models.DefaultProvider == "" {
		for name := range cfg.Models.Providers {
			cfg.Models.DefaultProvider = name
			break
		}
	}
	if cfg.Storage.Sessions.Kind == "" {
		cfg.Storage.Sessions.Kind = "mem"
	}
	if cfg.Storage.ToolResults.Kind == "" {
		cfg.Storage.ToolResults.Kind = "mem"
	}
	if cfg.Storage.ToolResults.TTL == 0 {
		cfg.Storage.ToolResults.TTL = 24 * time.Hour
	}
	if cfg.Storage.Bus.Kind == "" {
		cfg.Storage.Bus.Kind = "inproc"
	}
	if cfg.Storage.Liveness.Kind == "" {
		cfg.Storage.Liveness.Kind = "mem"
	}
	if cfg.Storage.Liveness.TTL == 0 {
		cfg.Storage.Liveness.TTL = 30 * time.Second
	}
	if cfg.Storage.Workflows.Kind == "" {
		cfg.Storage.Workflows.Kind = "mem"
	}
	if cfg.Storage.RunsRoot == "" {
		cfg.Storage.RunsRoot = "./runs"
	}
	if cfg.Epic.MaxRounds == 0 {
		cfg.Epic.MaxRounds = 3
	}
	if cfg.Epic.PlannerCount == 0 {
		cfg.Epic.PlannerCount = 1
	}
	if cfg.Epic.WorkerCount == 0 {
		cfg.Epic.WorkerCount = 3
	}
	if cfg.Epic.MaxConcurrency == 0 {
		cfg.Epic.MaxConcurrency = cfg.Epic.WorkerCount
	}
	for name, p := range cfg.Profiles {
		if p.AutoEpic.ConfidenceThreshold == 0 {
			p.AutoEpic.ConfidenceThreshold = 0.7
			cfg.Profiles[name] = p
		}
	}
}

// ValidationError aggregates every problem found so a user fixes a
// misconfigured file in one pass instead of one error at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	for name, p := range cfg.Providers() {
		switch p.Kind {
		case "anthropic", "bedrock":
		default:
			issues = append(issues, fmt.Sprintf("models.providers[%s].kind must be \"anthropic\" or \"bedrock\"", name))
		}
		if p.Kind == "anthropic" && strings.TrimSpace(p.APIKey) == "" {
			issues = append(issues, fmt.Sprintf("models.providers[%s].api_key is required for an anthropic provider", name))
		}
	}

	for role, ref := range cfg.Models.Roles {
		provider, _ := splitModelRef(ref, cfg.Models.DefaultProvider)
		if _, ok := cfg.Models.Providers[provider]; !ok {
			issues = append(issues, fmt.Sprintf("models.roles[%s] references unknown provider %q", role, provider))
		}
	}

	for _, b := range []struct {
		name string
		cfg  BackendConfig
		kinds []string
	}{
		{"storage.sessions", cfg.Storage.Sessions, []string{"mem", "mongo"}},
		{"storage.tool_results", cfg.Storage.ToolResults, []string{"mem", "redis"}},
		{"storage.bus", cfg.Storage.Bus, []string{"inproc", "nats"}},
		{"storage.liveness", cfg.Storage.Liveness, []string{"mem", "redis"}},
		{"storage.workflows", cfg.Storage.Workflows, []string{"mem", "redis"}},
	} {
		if !contains(b.kinds, b.cfg.Kind) {
			issues = append(issues, fmt.Sprintf("%s.kind must be one of %v, got %q", b.name, b.kinds, b.cfg.Kind))
		}
		if b.cfg.Kind == "mongo" || b.cfg.Kind == "redis" || b.cfg.Kind == "nats" {
			if strings.TrimSpace(b.cfg.DSN) == "" {
				issues = append(issues, fmt.Sprintf("%s.dsn is required for kind %q", b.name, b.cfg.Kind))
			}
		}
	}

	for name, p := range cfg.Profiles {
		if strings.TrimSpace(p.AgentID) == "" {
			issues = append(issues, fmt.Sprintf("profiles[%s].agent_id is required", name))
		}
		if p.AutoEpic.ConfidenceThreshold < 0 || p.AutoEpic.ConfidenceThreshold > 1 {
			issues = append(issues, fmt.Sprintf("profiles[%s].auto_epic.confidence_threshold must be in [0,1]", name))
		}
	}

	switch cfg.Gateway.Kind {
	case "noop", "log":
	case "temporal":
		if strings.TrimSpace(cfg.Gateway.HostPort) == "" {
			issues = append(issues, "gateway.host_port is required for gateway.kind \"temporal\"")
		}
	default:
		issues = append(issues, fmt.Sprintf("gateway.kind must be one of [noop log temporal], got %q", cfg.Gateway.Kind))
	}

	if cfg.Epic.MaxRounds < 1 {
		issues = append(issues, "epic.max_rounds must be >= 1")
	}
	if cfg.Epic.WorkerCount < 1 {
		issues = append(issues, "epic.worker_count must be >= 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Providers returns the configured provider map, never nil.
func (c *Config) Providers() map[string]ProviderConfig {
	if c.Models.Providers == nil {
		return map[string]ProviderConfig{}
	}
	return c.Models.Providers
}

// splitModelRef parses a "provider:model" role reference, defaulting to
// defaultProvider when the reference carries no provider prefix.
func splitModelRef(ref, defaultProvider string) (provider, model string) {
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return defaultProvider, ref
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
