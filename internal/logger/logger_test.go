package logger

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileLogger builds a logger writing to a temp file and restores the
// package-level log state when the test ends
func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.log")
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		GlobalLogging = nil
	})
	return NewLogger(&LoggingConfig{Level: level, File: path}), path
}

func TestNewLoggerWritesToConfiguredFile(t *testing.T) {
	l, path := newFileLogger(t, "debug")

	l.Info("instance message")
	LogInfo("global message %d", 7)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "instance message")
	assert.Contains(t, string(data), "global message 7")
	assert.True(t, IsDebugEnabled())
}

func TestLoggerLevelFiltering(t *testing.T) {
	l, path := newFileLogger(t, "warn")

	l.Debug("below threshold")
	l.Warn("at threshold")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "at threshold")
	assert.False(t, IsDebugEnabled())
}
