package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid json", config: &Config{Level: "info", Format: "json"}, wantErr: false},
		{name: "valid console", config: &Config{Level: "debug", Format: "console"}, wantErr: false},
		{name: "bad format", config: &Config{Level: "info", Format: "xml"}, wantErr: true},
		{name: "bad level", config: &Config{Level: "loud", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithRequestID(ctx, "req-123")
	ctx = WithUserID(ctx, "user-7")
	fields := ContextFields(ctx)
	assert.Len(t, fields, 2)
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx), "missing logger falls back to nop")

	logger := NewNop()
	ctx = WithLogger(ctx, logger)
	assert.Same(t, logger, FromContext(ctx))
}
