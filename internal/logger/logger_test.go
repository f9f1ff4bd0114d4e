package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		mode      string
		debug     bool
		wantDebug bool
	}{
		{"dev", true, true},
		{"dev", false, false},
		{"", true, true},
		{"production", false, false},
		{"console", false, false},
		{"PROD", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			l, err := New(tt.mode, tt.debug)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, l.Core().Enabled(zap.DebugLevel))
			assert.True(t, l.Core().Enabled(zap.InfoLevel))
		})
	}
}

func TestMustAndSync(t *testing.T) {
	var l *zap.Logger
	require.NotPanics(t, func() { l = Must("dev", false) })
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.NotPanics(t, func() {
		Sync(l.Named("ws"))
		Sync(nil)
	})
}
