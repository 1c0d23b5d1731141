package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/config"
)

func TestProfileForResolvesConfiguredProfile(t *testing.T) {
	cfg := &config.Config{Profiles: map[string]config.ProfileConfig{
		"default": {AgentID: "generalist", AutoEpic: config.AutoEpicConfig{Enabled: true, ConfidenceThreshold: 0.8}},
	}}

	prof, err := profileFor(cfg, "default")
	require.NoError(t, err)
	assert.Equal(t, "generalist", prof.AgentID)
	assert.True(t, prof.AutoEpic.Enabled)
	assert.Equal(t, 0.8, prof.AutoEpic.ConfidenceThreshold)
}

func TestProfileForUnknownNameReturnsError(t *testing.T) {
	cfg := &config.Config{Profiles: map[string]config.ProfileConfig{}}
	_, err := profileFor(cfg, "missing")
	require.Error(t, err)
}
