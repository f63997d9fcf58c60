package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("json logger at info", func(t *testing.T) {
		logger, err := New(config.Log{Level: "info", Format: "json"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("console logger at debug", func(t *testing.T) {
		logger, err := New(config.Log{Level: "DEBUG", Format: "console"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(config.Log{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := New(config.Log{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel(config.Log{Level: "debug"}))
	assert.Equal(t, gormlogger.Warn, GormLevel(config.Log{Level: "info"}))
	assert.Equal(t, gormlogger.Error, GormLevel(config.Log{Level: "error"}))
}
