package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpelzel/kinet/internal/config"
)

func TestSetup_Levels(t *testing.T) {
	logger := log.New()

	closer, err := Setup(logger, config.LogConfig{Level: "warn", Format: "text"}, false)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)

	_, err = Setup(logger, config.LogConfig{Level: "warn", Format: "json"}, true)
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, logger.GetLevel(), "--debug wins")
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)
}

func TestSetup_Invalid(t *testing.T) {
	_, err := Setup(log.New(), config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)

	_, err = Setup(log.New(), config.LogConfig{Level: "info", Format: "xml"}, false)
	assert.Error(t, err)
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinet.log")
	logger := log.New()

	closer, err := Setup(logger, config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, false)
	require.NoError(t, err)

	logger.WithField("supply", "10.0.0.9").Info("discovered supply")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"supply":"10.0.0.9"`)
	assert.Contains(t, string(data), `"msg":"discovered supply"`)
}
