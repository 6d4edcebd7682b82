package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/env"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithConsole(&buf))

	log.Info("Model loaded", "model_id", "flan-t5")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Model loaded", record["msg"])
	assert.Equal(t, "flan-t5", record["model_id"])
}

func TestNew_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithConsole(&buf))

	log.Debug("noise")

	assert.Empty(t, buf.String())
}

func TestNew_DevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Test, WithConsole(&buf), WithLevel(slog.LevelWarn))

	log.Info("hidden")
	log.Warn("shown", "stage", "intent")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "intent")
}

func TestNew_LogToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribepod.log")

	var buf bytes.Buffer
	log := New(env.Test, WithConsole(&buf), WithLogToFile(true), WithLogFile(path))

	log.Info("to both sinks")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}
