// =====================================
// File: internal/logger/logger_test.go
// =====================================
package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewVerbosity(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))

	dbg, err := New(Config{Development: true})
	require.NoError(t, err)
	assert.True(t, dbg.Core().Enabled(zapcore.DebugLevel))
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.log")

	log, err := New(Config{LogFile: path})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hello"`)
	assert.Contains(t, string(data), `"timestamp"`)
}
