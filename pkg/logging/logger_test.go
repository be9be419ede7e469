package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger := New(level)
		assert.NotNil(t, logger, "level %q", level)
		assert.NotNil(t, logger.Logger)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
}

func TestNewWithFileCreatesDailyFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewWithFile("info", dir)
	require.NoError(t, err)
	logger.Info("hello", "key", "value")

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewWithFileEmptyDir(t *testing.T) {
	logger, err := NewWithFile("info", "")
	require.NoError(t, err)
	require.NotNil(t, logger)
}
