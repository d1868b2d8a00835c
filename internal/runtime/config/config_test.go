package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultListenAddr, c.ListenAddr)
	assert.Equal(t, DefaultEventsTopic, c.EventsTopic)
	assert.Equal(t, DefaultCacheTTL, c.CacheTTL)
	assert.Equal(t, DefaultOutboundQueueSize, c.OutboundQueueSize)
	assert.True(t, c.MetricsEnabled)
	require.NoError(t, c.Validate())
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := &Config{
		ListenAddr:        ":9999",
		EventsTopic:       "custom.topic",
		CacheTTL:          5 * time.Second,
		OutboundQueueSize: 8,
	}
	c.ApplyDefaults()

	assert.Equal(t, ":9999", c.ListenAddr)
	assert.Equal(t, "custom.topic", c.EventsTopic)
	assert.Equal(t, 5*time.Second, c.CacheTTL)
	assert.Equal(t, 8, c.OutboundQueueSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults pass", mutate: func(*Config) {}},
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.ListenAddr = "" },
			wantErr: "listen address is required",
		},
		{
			name:    "missing events topic",
			mutate:  func(c *Config) { c.EventsTopic = "" },
			wantErr: "events topic is required",
		},
		{
			name:    "negative cache TTL",
			mutate:  func(c *Config) { c.CacheTTL = -time.Second },
			wantErr: "cache TTL cannot be negative",
		},
		{
			name:    "negative queue size",
			mutate:  func(c *Config) { c.OutboundQueueSize = -1 },
			wantErr: "outbound queue size cannot be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := &Config{CacheTTL: -1, OutboundQueueSize: -1}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen address is required")
	assert.Contains(t, err.Error(), "events topic is required")
	assert.Contains(t, err.Error(), "cache TTL cannot be negative")
	assert.Contains(t, err.Error(), "outbound queue size cannot be negative")
}

func TestStringRedactsJWTSecret(t *testing.T) {
	c := Default()
	c.JWTSecret = "hunter2"

	s := c.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "REDACTED")
}
