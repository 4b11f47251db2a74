package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Development: false, Output: &buf})

	l.Info("webhook processed", "outcome", "applied")
	l.Debug("hidden at info level")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "webhook processed", record["msg"])
	assert.Equal(t, "applied", record["outcome"])
	assert.Same(t, l, slog.Default())
}

func TestInitDevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Development: true, Output: &buf})

	l.Debug("debug line", "k", "v")

	assert.Contains(t, buf.String(), "msg=\"debug line\"")
	assert.Contains(t, buf.String(), "k=v")
}
