package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/executor"
)

func TestDecodeExecuteRequestRequiresMission(t *testing.T) {
	req := httptest.NewRequest("POST", "/execute", strings.NewReader(`{"mission":""}`))
	_, err := decodeExecuteRequest(req)
	require.Error(t, err)
}

func TestDecodeExecuteRequestRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/execute", strings.NewReader(`not json`))
	_, err := decodeExecuteRequest(req)
	require.Error(t, err)
}

func TestDecodeExecuteRequestParsesProfileAndForceMode(t *testing.T) {
	req := httptest.NewRequest("POST", "/execute", strings.NewReader(
		`{"mission":"ship it","session_id":"s1","profile":{"agent_id":"generalist","auto_epic":{"enabled":true,"confidence_threshold":0.9}},"force_mode":"epic"}`))
	got, err := decodeExecuteRequest(req)
	require.NoError(t, err)

	assert.Equal(t, "ship it", got.Mission)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, executor.ForceMode("epic"), got.ForceMode)

	profile := got.Profile.toProfile()
	assert.Equal(t, "generalist", profile.AgentID)
	assert.True(t, profile.AutoEpic.Enabled)
	assert.Equal(t, 0.9, profile.AutoEpic.ConfidenceThreshold)
}
