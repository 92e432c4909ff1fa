package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_UsesDataDir(t *testing.T) {
	cfg := DefaultConfig("/tmp/sovereign-data")
	assert.Equal(t, "/tmp/sovereign-data/sovereign.log", cfg.FilePath)
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.WriteToStderr)
}

func TestSetup_CreatesLogFileAndWritesJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:         "info",
		FilePath:      filepath.Join(dir, "sovereign.log"),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("daemon started", "component", "daemon")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	var entry map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	require.True(t, scanner.Scan())
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "daemon started", entry["msg"])
	assert.Equal(t, "daemon", entry["component"])
}

func TestSetup_RespectsLevelFilter(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:    "warn",
		FilePath: filepath.Join(dir, "sovereign.log"),
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("should not appear")
	logger.Warn("should appear")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
			assert.Equal(t, tt.want, LevelFromString(tt.input))
		})
	}
}

func TestSetupDefault_InstallsGlobalLogger(t *testing.T) {
	dir := t.TempDir()
	cleanup, err := SetupDefault(dir)
	require.NoError(t, err)
	defer cleanup()

	slog.Info("via default logger")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "sovereign.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "via default logger")
}
