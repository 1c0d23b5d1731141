package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "run", "epic", "sessions", "workflows"} {
		assert.True(t, names[want], "expected subcommand %q", want)
	}
}

func TestRootCmdConfigFlagDefaultsToTaskforgeYAML(t *testing.T) {
	root := newRootCmd()
	flag := root.PersistentFlags().Lookup("config")
	if assert.NotNil(t, flag) {
		assert.Equal(t, defaultConfigPath, flag.DefValue)
	}
}

func TestSessionsCmdRegistersListShowDelete(t *testing.T) {
	cmd := newSessionsCmd(new(string))
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Use[:indexOrLen(c.Use, ' ')]] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
	assert.True(t, names["delete"])
}

func indexOrLen(s string, sep byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return i
		}
	}
	return len(s)
}

func TestEpicCmdRegistersRunSubcommand(t *testing.T) {
	cmd := newEpicCmd(new(string))
	subs := cmd.Commands()
	assert.Len(t, subs, 1)
	assert.Equal(t, "run", subs[0].Use[:indexOrLen(subs[0].Use, ' ')])
}

func TestWorkflowsCmdRegistersResumeSubcommand(t *testing.T) {
	cmd := newWorkflowsCmd(new(string))
	assert.Len(t, cmd.Commands(), 1)
	assert.Equal(t, "resume", cmd.Commands()[0].Use[:indexOrLen(cmd.Commands()[0].Use, ' ')])
}
