package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripsJSONPayloads(t *testing.T) {
	data, err := encode(map[string]any{"task_id": "t1", "count": float64(3)})
	require.NoError(t, err)

	decoded, err := decode(data)
	require.NoError(t, err)

	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t1", m["task_id"])
	assert.Equal(t, float64(3), m["count"])
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestClearIsANoOpThatAlwaysSucceeds(t *testing.T) {
	b := &Bus{}
	assert.NoError(t, b.Clear("any-topic"))
}
