// Package channel provides an in-memory session transport. It backs the
// test suites and lets other processes embed the gateway without a network
// hop.
package channel

import (
	"sync"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	errspkg "github.com/simobotlist/gateway/internal/runtime/errors"
	"github.com/simobotlist/gateway/internal/runtime/ids"
	"github.com/simobotlist/gateway/transport"
)

// deliveredBuffer bounds the notification channel; Sent keeps the full
// history regardless.
const deliveredBuffer = 64

// Session is an in-memory transport.Session. The "client side" of the
// session is driven with Login and Disconnect; envelopes pushed by the
// gateway are recorded and surfaced on Delivered.
type Session struct {
	id string

	mu   sync.Mutex
	open bool
	sent []envelope.Envelope

	inbound   chan transport.Message
	delivered chan envelope.Envelope
	closeOnce sync.Once
}

var _ transport.Session = (*Session)(nil)

// NewSession creates an open in-memory session with a transport-assigned id.
func NewSession() *Session {
	return &Session{
		id:        ids.NewULID(),
		open:      true,
		inbound:   make(chan transport.Message, 8),
		delivered: make(chan envelope.Envelope, deliveredBuffer),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Receive() (transport.Message, error) {
	msg, ok := <-s.inbound
	if !ok {
		return transport.Message{}, errspkg.ErrSessionClosed
	}
	return msg, nil
}

func (s *Session) Send(env envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errspkg.ErrSessionClosed
	}
	s.sent = append(s.sent, env)
	select {
	case s.delivered <- env:
	default:
	}
	return nil
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Close tears the session down. Receive unblocks with ErrSessionClosed and
// later Sends fail. The channel is closed inside the critical section so a
// concurrent Login can never send on it afterwards.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.open = false
		close(s.inbound)
		s.mu.Unlock()
	})
	return nil
}

// Login injects a login message as if the client had sent it. Logins after
// close are discarded. The send happens under the lock, so callers must
// keep Receive draining; the inbound buffer absorbs short bursts.
func (s *Session) Login(auth string, events any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.inbound <- transport.Message{Auth: auth, Events: events}
}

// Disconnect simulates the client dropping the connection.
func (s *Session) Disconnect() {
	s.Close()
}

// Delivered surfaces envelopes as the gateway sends them.
func (s *Session) Delivered() <-chan envelope.Envelope {
	return s.delivered
}

// Sent returns a snapshot of every envelope sent so far, in order.
func (s *Session) Sent() []envelope.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]envelope.Envelope, len(s.sent))
	copy(out, s.sent)
	return out
}
