package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	log.WithFields(map[string]interface{}{"component": "populator"}).
		Warn(fmt.Errorf("dial tcp: timeout"), "cache unavailable", "key", "prod/exampleuniversity/role_features/r1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cache unavailable", entry["message"])
	assert.Equal(t, "populator", entry["component"])
	assert.Equal(t, "prod/exampleuniversity/role_features/r1", entry["key"])
	assert.Equal(t, "dial tcp: timeout", entry["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: ErrorLevel, Output: &buf})

	log.Info("ignored")
	log.Debug("ignored")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}
