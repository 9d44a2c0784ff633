package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestInitializeWithConsole(t *testing.T) {
	defer func() { Log = zap.NewNop() }()

	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "engagement.log")
	require.NoError(t, InitializeWithConsole("warn", logFile, &console))

	Log.Info("dropped below level")
	Log.Warn("Engagement update dropped", WithPostID("post-1"), WithReason("buffer_full"))
	require.NoError(t, Close())

	assert.NotContains(t, console.String(), "dropped below level")
	assert.Contains(t, console.String(), "Engagement update dropped")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"post_id":"post-1"`)
	assert.Contains(t, string(data), `"reason":"buffer_full"`)
}
