// Package transport defines the session contract between the gateway core
// and the concrete connection transports. The registry and dispatcher only
// ever see a Session; they never inspect it beyond send and liveness.
package transport

import (
	"context"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
)

// Message is the single inbound message type a client can send: the login
// request that drives the authentication handshake. Events is kept
// untyped on purpose: the handshake validates its shape itself and
// reports malformed values back over the session.
type Message struct {
	Auth   string `json:"auth"`
	Events any    `json:"events"`
}

// Session is one client's connection. Implementations assign the id, own
// the underlying I/O, and must make Send safe for concurrent use. Send is
// fire-and-forget: it must never block on a slow client.
type Session interface {
	// ID is the opaque session identifier, unique for the lifetime of
	// the session.
	ID() string

	// Receive blocks until the next login message arrives or the session
	// disconnects, in which case it returns a non-nil error.
	Receive() (Message, error)

	// Send pushes an envelope to the client. Sending on a closed session
	// returns an error; callers treat delivery failures as no-ops.
	Send(env envelope.Envelope) error

	// IsOpen reports current transport liveness.
	IsOpen() bool

	Close() error
}

// Handler consumes an accepted session. Transports call it once per
// connection, typically on a dedicated goroutine.
type Handler func(ctx context.Context, session Session)
