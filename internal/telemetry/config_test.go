package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docsearchd/internal/config"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "disabled skips validation", mutate: func(c *Config) {
			c.Enabled = false
			c.Endpoint = ""
		}},
		{name: "enabled requires endpoint", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = ""
		}, wantErr: true},
		{name: "unknown protocol rejected", mutate: func(c *Config) {
			c.Enabled = true
			c.Protocol = "thrift"
		}, wantErr: true},
		{name: "insecure remote endpoint rejected", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = true
		}, wantErr: true},
		{name: "secure remote endpoint allowed", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}},
		{name: "sampling rate out of range", mutate: func(c *Config) {
			c.Enabled = true
			c.Sampling.Rate = 1.5
		}, wantErr: true},
		{name: "zero export interval rejected", mutate: func(c *Config) {
			c.Enabled = true
			c.Metrics.ExportInterval = config.Duration(0)
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	local := []string{"localhost:4317", "127.0.0.1:4317", "[::1]:4317", "::1"}
	for _, endpoint := range local {
		cfg := &Config{Endpoint: endpoint}
		assert.True(t, cfg.isLocalEndpoint(), endpoint)
	}

	remote := []string{"collector.example.com:4317", "10.0.0.5:4317"}
	for _, endpoint := range remote {
		cfg := &Config{Endpoint: endpoint}
		assert.False(t, cfg.isLocalEndpoint(), endpoint)
	}
}

func TestNewDisabledIsNoop(t *testing.T) {
	cfg := NewDefaultConfig()
	require.False(t, cfg.Enabled)

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, tel.Degraded())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}
