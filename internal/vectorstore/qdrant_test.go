package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "document_chunks", wantErr: false},
		{name: "valid with digits", input: "chunks_v2", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "uppercase", input: "Chunks", wantErr: true},
		{name: "path traversal", input: "../etc", wantErr: true},
		{name: "spaces", input: "my chunks", wantErr: true},
		{name: "too long", input: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("plain error")))

	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(grpccodes.Aborted, "aborted")))
	assert.True(t, IsTransientError(status.Error(grpccodes.ResourceExhausted, "busy")))

	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "missing")))
	assert.False(t, IsTransientError(status.Error(grpccodes.PermissionDenied, "denied")))
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := &Config{Collection: "document_chunks", VectorSize: 1536}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.NoError(t, cfg.Validate())

	bad := &Config{Host: "localhost", Port: 6334, Collection: "Bad Name", VectorSize: 1536}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCollectionName)

	missing := &Config{Host: "localhost", Port: 6334, VectorSize: 1536}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidConfig)
}
