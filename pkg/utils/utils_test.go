package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ann@example.com"))
	assert.Error(t, ValidateEmail("ann@"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("ann.o-tator_1"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("has space"))
}

func TestValidateImagePath(t *testing.T) {
	assert.NoError(t, ValidateImagePath("images/batch-1/cat.png"))
	assert.NoError(t, ValidateImagePath("s3://bucket/dog..jpg"))
	assert.Error(t, ValidateImagePath("  "))
	assert.Error(t, ValidateImagePath("../etc/passwd"))
	assert.Error(t, ValidateImagePath(`images\..\secret.png`))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString(" hel\x00lo\n"))
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp"`)
	assert.Contains(t, string(b), `"msg":"hello"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(0))
}
