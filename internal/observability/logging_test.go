package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/gap-pos/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "DEBUG"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "chatty", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_RejectsUnknownFormat(t *testing.T) {
	_, err := NewLogger(config.LoggerConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestInitialFields(t *testing.T) {
	assert.Nil(t, initialFields(nil))
	assert.Equal(t, map[string]interface{}{"service": "gap-pos", "attempt": int64(2)},
		initialFields([]zap.Field{zap.String("service", "gap-pos"), zap.Int64("attempt", 2)}))
}
