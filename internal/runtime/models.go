package runtime

import (
	"context"
	"sync"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	"github.com/simobotlist/gateway/transport"
)

// Subscription records the credential and event codes committed by a
// successful handshake. Events keeps the submitted order, duplicates
// included.
type Subscription struct {
	Credential string
	Events     []envelope.Event
}

// subscribedTo reports membership of event in the subscription set.
func (s *Subscription) subscribedTo(event envelope.Event) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Entry tracks one transport session and its authentication state. An
// entry is created unauthenticated and connected; the handshake flips
// authenticated and attaches the subscription, the disconnect signal
// clears connected. The two never race on the same entry in intended
// usage, but the per-entry mutex keeps dispatcher snapshots consistent
// regardless.
type Entry struct {
	id      string
	session transport.Session

	mu            sync.Mutex
	authenticated bool
	connected     bool
	subscription  *Subscription
}

func (e *Entry) ID() string { return e.id }

// Session returns the opaque transport handle.
func (e *Entry) Session() transport.Session { return e.session }

func (e *Entry) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticated
}

func (e *Entry) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Subscription returns a copy of the committed subscription, or nil while
// the entry is unauthenticated.
func (e *Entry) Subscription() *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subscription == nil {
		return nil
	}
	events := make([]envelope.Event, len(e.subscription.Events))
	copy(events, e.subscription.Events)
	return &Subscription{Credential: e.subscription.Credential, Events: events}
}

// snapshot reads the dispatch-relevant state in one critical section.
func (e *Entry) snapshot() (authenticated, connected bool, sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticated, e.connected, e.subscription
}

func (e *Entry) commit(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authenticated = true
	e.subscription = &sub
}

func (e *Entry) markDisconnected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
}

// BotRecord is the catalog record resolved during the handshake: the
// identifier plus every public field to be echoed in the Ready payload.
// It is the resolver's responsibility to keep secrets out of Fields.
type BotRecord struct {
	ID     string
	Fields map[string]any
}

// View projects the record for the Ready payload, with the identifier
// under the stable "id" key and everything else carried through.
func (r *BotRecord) View() map[string]any {
	view := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		view[k] = v
	}
	view["id"] = r.ID
	return view
}

// CatalogResolver is the external collaborator that owns bot records. It
// is consulted once per login attempt; absence is reported as (nil, nil).
type CatalogResolver interface {
	FindBotByCredential(ctx context.Context, credential string) (*BotRecord, error)
}

// CatalogResolverFunc adapts a function to the CatalogResolver interface.
type CatalogResolverFunc func(ctx context.Context, credential string) (*BotRecord, error)

func (f CatalogResolverFunc) FindBotByCredential(ctx context.Context, credential string) (*BotRecord, error) {
	return f(ctx, credential)
}
