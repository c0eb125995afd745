package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info().Msg("hidden")
	logger.Warn().Str("device_id", "d1").Msg("Shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Shown", entry["message"])
	assert.Equal(t, "d1", entry["device_id"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "chatty", "")

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
