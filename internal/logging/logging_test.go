package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/radio-control/netctl/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"console debug", config.LogConfig{Level: "debug", Format: "console", Development: true}, zapcore.DebugLevel, false},
		{"bad level", config.LogConfig{Level: "loud", Format: "json"}, 0, true},
		{"bad format", config.LogConfig{Level: "info", Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			if tt.level > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.level-1))
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, err := New(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
