package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaplus/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("json with file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "mediaplus.log")
		logger, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: file, MaxSizeMB: 1})
		require.NoError(t, err)

		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

		logger.WithField("component", "test").Info("hello")
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"test"`)
	})

	t.Run("text", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"})
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Level: "chatty"})
		assert.Error(t, err)
	})
}
