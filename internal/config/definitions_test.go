package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/agentdef"
	"github.com/rudi77/taskforge/internal/toolreg"
)

func TestBuildRegistryRegistersSpecialistTagsBeforeDefinitions(t *testing.T) {
	tools := toolreg.New()
	tools.Register(toolreg.Spec{Name: "search"})
	cfg := &Config{Definitions: map[string]DefinitionConfig{
		"researcher": {SpecialistTag: "research", Tools: []string{"search"}},
	}}

	reg, err := cfg.BuildRegistry(tools)
	require.NoError(t, err)

	def, ok := reg.BySpecialistTag("research")
	require.True(t, ok)
	assert.Equal(t, "researcher", def.AgentID)
}

func TestBuildRegistryPropagatesFieldsAndMutability(t *testing.T) {
	tools := toolreg.New()
	cfg := &Config{Definitions: map[string]DefinitionConfig{
		"fixed":       {Name: "Fixed", SystemPrompt: "sys", PlanningStrategy: "plan-then-execute", MaxSteps: 10},
		"overridable": {Name: "Flex", Overridable: true},
	}}

	reg, err := cfg.BuildRegistry(tools)
	require.NoError(t, err)

	fixed, ok := reg.Get("fixed")
	require.True(t, ok)
	assert.Equal(t, agentdef.MutabilityFixed, fixed.Mutability)
	assert.Equal(t, "sys", fixed.SystemPrompt)
	assert.Equal(t, 10, fixed.MaxSteps)

	overridable, ok := reg.Get("overridable")
	require.True(t, ok)
	assert.Equal(t, agentdef.MutabilityOverridable, overridable.Mutability)
}

func TestBuildRegistryFailsOnUnknownToolReference(t *testing.T) {
	cfg := &Config{Definitions: map[string]DefinitionConfig{
		"a": {Tools: []string{"missing-tool"}},
	}}
	_, err := cfg.BuildRegistry(toolreg.New())
	require.Error(t, err)
}
