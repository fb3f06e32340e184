package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/magefree/mage-rules-go/internal/config"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("debug"))
	assert.Equal(t, zapcore.WarnLevel, Level("warn"))
	assert.Equal(t, zapcore.ErrorLevel, Level("error"))
	assert.Equal(t, zapcore.InfoLevel, Level("verbose"))
}

func TestNew(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := New(config.LoggingConfig{Level: "warn", Format: format})
		require.NoError(t, err, format)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel), format)
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel), format)
	}
}
