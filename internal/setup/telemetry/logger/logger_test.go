package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/bailiff/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferOrder(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(3)
	assert.Nil(t, rb.Lines())

	for i := range 5 {
		rb.Add(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, rb.Lines())
	assert.Equal(t, 5, rb.TotalSeen())

	rb.ResetSeen()
	assert.Equal(t, 3, rb.TotalSeen())
}

func TestLogRotatorCapsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	rotator := logger.NewLogRotator(file, 4, path)
	for i := range 8 {
		_, err := fmt.Fprintf(rotator, "line %d\n", i)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line 4\nline 5\nline 6\nline 7\n", string(data))
}

func TestLogRotatorUncapped(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	rotator := logger.NewLogRotator(&sb, 0, "")

	for i := range 10 {
		_, err := fmt.Fprintf(rotator, "line %d\n", i)
		require.NoError(t, err)
	}

	assert.Equal(t, 10, strings.Count(sb.String(), "\n"))
}
