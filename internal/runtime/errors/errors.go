// Package errors holds the sentinel errors shared across the gateway
// runtime packages.
package errors

import sterrors "errors"

var (
	ErrResolverRequired  = sterrors.New("gateway: catalog resolver is required")
	ErrPublisherRequired = sterrors.New("gateway: publisher is required")
	ErrTopicRequired     = sterrors.New("gateway: topic is required")
	ErrSessionClosed     = sterrors.New("gateway: session is closed")
)
