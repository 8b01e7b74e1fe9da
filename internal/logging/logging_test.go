package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFanout(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "automation.log")

	logger, closeLog, err := Setup(Options{Console: &console, Level: "info", File: file})
	require.NoError(t, err)

	run := logger.With("execution_id", "abc")
	run.Debug("row skipped", "row", 3)
	run.Info("run finished", "status", "COMPLETED")
	require.NoError(t, closeLog())

	assert.NotContains(t, console.String(), "row skipped")
	assert.Contains(t, console.String(), "run finished")
	assert.Contains(t, console.String(), "execution_id=abc")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "row skipped", rec["msg"])
	assert.Equal(t, "abc", rec["execution_id"])
}

func TestSetupWithoutFile(t *testing.T) {
	var console bytes.Buffer
	logger, closeLog, err := Setup(Options{Console: &console, Level: "debug"})
	require.NoError(t, err)
	logger.Debug("visible")
	assert.NoError(t, closeLog())
	assert.Contains(t, console.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestFanoutGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(Fanout(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)).WithGroup("step")

	logger.Info("ok", "id", "login")
	assert.Contains(t, a.String(), `"step":{"id":"login"}`)
	assert.Empty(t, b.String())
}
