package config

import (
	"github.com/rudi77/taskforge/internal/agentdef"
	"github.com/rudi77/taskforge/internal/toolreg"
)

// DefinitionConfig is one on-disk agent definition, the "configuration
// files" source of the four spec §4.14 aggregates. This package loads only
// this source; nothing in the repository reads user overrides, plugins or
// slash-command files into the Registry.
type DefinitionConfig struct {
	Name             string            `yaml:"name"`
	SystemPrompt     string            `yaml:"system_prompt"`
	SpecialistTag    string            `yaml:"specialist_tag"`
	PlanningStrategy string            `yaml:"planning_strategy"`
	MaxSteps         int               `yaml:"max_steps"`
	ModelRoles       map[string]string `yaml:"model_roles"`
	Tools            []string          `yaml:"tools"`
	MCPServers       []string          `yaml:"mcp_servers"`
	WorkDir          string            `yaml:"work_dir"`
	Overridable      bool              `yaml:"overridable"`
}

// BuildRegistry adds every configured definition to a fresh
// agentdef.Registry, validating tool references against tools.
func (c *Config) BuildRegistry(tools *toolreg.Registry) (*agentdef.Registry, error) {
	reg := agentdef.New()
	for tag := range c.specialistTags() {
		reg.RegisterSpecialistTag(tag)
	}
	for agentID, dc := range c.Definitions {
		mutability := agentdef.MutabilityFixed
		if dc.Overridable {
			mutability = agentdef.MutabilityOverridable
		}
		def := agentdef.Definition{
			Identity: agentdef.Identity{
				AgentID: agentID, Name: dc.Name, Source: agentdef.SourceConfig, Mutability: mutability,
			},
			Behavior: agentdef.Behavior{
				SystemPrompt: dc.SystemPrompt, SpecialistTag: dc.SpecialistTag,
				PlanningStrategy: dc.PlanningStrategy, MaxSteps: dc.MaxSteps, ModelRoles: dc.ModelRoles,
			},
			Capabilities: agentdef.Capabilities{Tools: dc.Tools, MCPServers: dc.MCPServers},
			AgentContext: agentdef.AgentContext{WorkDir: dc.WorkDir},
		}
		if err := reg.Add(def, tools); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (c *Config) specialistTags() map[string]struct{} {
	tags := make(map[string]struct{})
	for _, dc := range c.Definitions {
		if dc.SpecialistTag != "" {
			tags[dc.SpecialistTag] = struct{}{}
		}
	}
	return tags
}
