package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/bailiff/internal/setup/config"
	"github.com/robalyx/bailiff/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRotatesSessions(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	for _, name := range []string{"2024-01-01_00-00-00.000", "2024-01-02_00-00-00.000", "2024-01-03_00-00-00.000"} {
		require.NoError(t, os.Mkdir(filepath.Join(logDir, name), 0o755))
	}

	manager := telemetry.NewManager(telemetry.ServiceBot, logDir, &config.Debug{
		LogLevel:      "info",
		MaxLogsToKeep: 2,
		MaxLogLines:   100,
	}, false)

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)
	mainLogger.Info("hello")
	dbLogger.Info("query")
	require.NoError(t, mainLogger.Sync())

	sessions, err := filepath.Glob(filepath.Join(logDir, "*"))
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Contains(t, sessions, filepath.Join(logDir, "2024-01-03_00-00-00.000"))

	data, err := os.ReadFile(filepath.Join(manager.GetCurrentSessionDir(), "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), manager.GetInstanceID())
}

func TestManagerRejectsBadLevel(t *testing.T) {
	t.Parallel()

	manager := telemetry.NewManager(telemetry.ServiceDB, t.TempDir(), &config.Debug{LogLevel: "loud"}, false)
	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}
