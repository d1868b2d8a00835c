// Package config groups the settings required to run the gateway service.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultListenAddr        = ":8080"
	DefaultEventsTopic       = "gateway.domain-events"
	DefaultCacheTTL          = time.Minute
	DefaultOutboundQueueSize = 64
)

// Config carries the knobs of the gateway process. The zero value is not
// usable; call ApplyDefaults or construct through Default.
type Config struct {
	// ListenAddr is the address the HTTP server (REST reads, WebSocket
	// endpoint, metrics) binds to.
	ListenAddr string

	// EventsTopic is the bus topic carrying domain events from the CRUD
	// layer into the dispatcher.
	EventsTopic string

	// CacheTTL bounds the age of read-through cache entries. One TTL is
	// shared by every entry.
	CacheTTL time.Duration

	// OutboundQueueSize bounds each session's outbound envelope queue.
	// On overflow the oldest pending envelope is dropped.
	OutboundQueueSize int

	// MetricsEnabled toggles Prometheus collector registration and the
	// /metrics route.
	MetricsEnabled bool

	// SQLitePath locates the catalog database. Empty selects the
	// in-memory catalog store.
	SQLitePath string

	// JWTSecret verifies user tokens on the authenticated read routes.
	JWTSecret string
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{MetricsEnabled: true}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.EventsTopic == "" {
		c.EventsTopic = DefaultEventsTopic
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.OutboundQueueSize == 0 {
		c.OutboundQueueSize = DefaultOutboundQueueSize
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.EventsTopic == "" {
		errs = append(errs, errors.New("events topic is required"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache TTL cannot be negative"))
	}
	if c.OutboundQueueSize < 0 {
		errs = append(errs, errors.New("outbound queue size cannot be negative"))
	}

	return errors.Join(errs...)
}

func (c Config) String() string {
	redacted := c
	if redacted.JWTSecret != "" {
		redacted.JWTSecret = "***REDACTED***"
	}
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(redacted))
}
