package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetDebugLogger(t *testing.T) func() {
	t.Helper()

	globalDebugLogger.mu.Lock()
	prevFile := globalDebugLogger.file
	prevBuffer := append([]byte(nil), globalDebugLogger.buffer...)
	prevDiscard := globalDebugLogger.discard
	globalDebugLogger.file = nil
	globalDebugLogger.buffer = nil
	globalDebugLogger.discard = false
	globalDebugLogger.mu.Unlock()
	prevLevel := globalLevel.Level()

	return func() {
		globalDebugLogger.mu.Lock()
		if globalDebugLogger.file != nil {
			_ = globalDebugLogger.file.Close()
		}
		globalDebugLogger.file = prevFile
		globalDebugLogger.buffer = prevBuffer
		globalDebugLogger.discard = prevDiscard
		globalDebugLogger.mu.Unlock()
		globalLevel.SetLevel(prevLevel)
	}
}

func TestSetFileFailureDiscardsLogs(t *testing.T) {
	restore := resetDebugLogger(t)
	t.Cleanup(restore)

	unwritableDir := t.TempDir()
	require.NoError(t, os.Chmod(unwritableDir, 0o500)) //nolint:gosec
	t.Cleanup(func() {
		_ = os.Chmod(unwritableDir, 0o700) //nolint:gosec
	})
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	logPath := filepath.Join(unwritableDir, "debug.log")
	require.Error(t, SetFile(logPath))

	globalDebugLogger.mu.Lock()
	assert.True(t, globalDebugLogger.discard)
	assert.Empty(t, globalDebugLogger.buffer)
	globalDebugLogger.mu.Unlock()

	Errorf("should be discarded")

	globalDebugLogger.mu.Lock()
	defer globalDebugLogger.mu.Unlock()
	assert.Empty(t, globalDebugLogger.buffer)
}

func TestBufferedMessagesFlushToFile(t *testing.T) {
	restore := resetDebugLogger(t)
	t.Cleanup(restore)

	SetLevel("debug")
	Infof("rescan started for %d paths", 3)

	logPath := filepath.Join(t.TempDir(), "debug.log")
	require.NoError(t, SetFile(logPath))
	Warnf("gate %s", "busy")
	require.NoError(t, Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rescan started for 3 paths")
	assert.Contains(t, string(data), "gate busy")
	assert.Contains(t, string(data), "WARN")
}

func TestSetLevelFiltersMessages(t *testing.T) {
	restore := resetDebugLogger(t)
	t.Cleanup(restore)

	SetLevel("warn")
	assert.Equal(t, "warn", Level())
	Debugf("hidden")
	Infof("hidden too")

	globalDebugLogger.mu.Lock()
	assert.Empty(t, globalDebugLogger.buffer)
	globalDebugLogger.mu.Unlock()

	SetLevel("nonsense")
	assert.Equal(t, "info", Level())
}
