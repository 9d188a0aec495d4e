package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger_Levels(t *testing.T) {
	logger := SetupLogger(&LoggingOpts{Debug: false, Service: "test"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	debugLogger := SetupLogger(&LoggingOpts{Debug: true, JSON: true})
	assert.True(t, debugLogger.Enabled(context.Background(), slog.LevelDebug))
}
