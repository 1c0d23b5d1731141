package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/loop"
)

func TestRunCmdRejectsMutuallyExclusiveEpicFlags(t *testing.T) {
	configPath := "unused.yaml"
	cmd := newRunCmd(&configPath)
	cmd.SetArgs([]string{"ship it", "--auto-epic", "--no-auto-epic"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestRunCmdRequiresExactlyOneMissionArg(t *testing.T) {
	configPath := "unused.yaml"
	cmd := newRunCmd(&configPath)
	cmd.SetArgs([]string{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	require.Error(t, cmd.Execute())
}

func TestPrintResultWritesIndentedJSON(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)

	err := printResult(root, loop.ExecutionResult{Status: loop.StatusCompleted, FinalAnswer: "done", Steps: 3})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "\"FinalAnswer\"")
	assert.Contains(t, out.String(), "done")
}
