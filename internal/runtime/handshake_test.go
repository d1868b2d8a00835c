package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport"
	"github.com/simobotlist/gateway/transport/channel"
)

func staticResolver(records map[string]*BotRecord) CatalogResolver {
	return CatalogResolverFunc(func(_ context.Context, credential string) (*BotRecord, error) {
		return records[credential], nil
	})
}

func newTestHandshake(resolver CatalogResolver) (*Handshake, *Registry) {
	registry := NewRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewHandshake(registry, resolver, logging.Nop(), metrics), registry
}

func login(h *Handshake, registry *Registry, session *channel.Session, auth string, events any) string {
	id := registry.Admit(session)
	h.Login(context.Background(), session, id, transport.Message{Auth: auth, Events: events})
	return id
}

func TestHandshakeSuccess(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510", Fields: map[string]any{"username": "vote-watcher"}},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "secret-key", []any{float64(35), float64(30)})

	sent := session.Sent()
	require.Len(t, sent, 2)

	assert.Equal(t, envelope.OpcodeHello, sent[0].Type)
	assert.Equal(t, envelope.HelloAck{Auth: "secret-key"}, sent[0].Payload)

	assert.Equal(t, envelope.OpcodePayload, sent[1].Type)
	require.NotNil(t, sent[1].EventType)
	assert.Equal(t, envelope.EventReady, *sent[1].EventType)

	ready, ok := sent[1].Payload.(envelope.Ready)
	require.True(t, ok)
	assert.Equal(t, []envelope.Event{envelope.EventVoteAdd, envelope.EventBotCreate}, ready.Events)
	assert.Equal(t, "4510", ready.Bot["id"])
	assert.Equal(t, "vote-watcher", ready.Bot["username"])

	entry := registry.Find(id)
	require.NotNil(t, entry)
	assert.True(t, entry.Authenticated())
	sub := entry.Subscription()
	require.NotNil(t, sub)
	assert.Equal(t, "secret-key", sub.Credential)
	assert.Equal(t, []envelope.Event{envelope.EventVoteAdd, envelope.EventBotCreate}, sub.Events)
}

func TestHandshakeHelloPrecedesEveryOutcome(t *testing.T) {
	resolver := staticResolver(nil)
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	login(h, registry, session, "bad-key", []any{})

	sent := session.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, envelope.OpcodeHello, sent[0].Type)
}

func TestHandshakeInvalidCredential(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "wrong-key", []any{float64(35)})

	sent := session.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, envelope.OpcodeInvalidConnection, sent[1].Type)
	assert.Equal(t, envelope.ErrInvalidAuth, sent[1].Payload)

	// A rejected login leaves the entry anonymous but still tracked.
	entry := registry.Find(id)
	require.NotNil(t, entry)
	assert.False(t, entry.Authenticated())
	assert.Nil(t, entry.Subscription())
}

func TestHandshakeResolverError(t *testing.T) {
	resolver := CatalogResolverFunc(func(context.Context, string) (*BotRecord, error) {
		return nil, errors.New("store unavailable")
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "secret-key", []any{float64(35)})

	sent := session.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, envelope.OpcodeInvalidConnection, sent[1].Type)
	assert.Equal(t, envelope.ErrInvalidAuth, sent[1].Payload)
	assert.False(t, registry.Find(id).Authenticated())
}

func TestHandshakeMalformedEvents(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})

	tests := []struct {
		name   string
		events any
	}{
		{name: "not a sequence", events: "35"},
		{name: "nil", events: nil},
		{name: "object", events: map[string]any{"0": float64(35)}},
		{name: "string element", events: []any{float64(35), "30"}},
		{name: "fractional element", events: []any{1.5}},
		{name: "boolean element", events: []any{true}},
		{name: "nested sequence", events: []any{[]any{float64(35)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, registry := newTestHandshake(resolver)
			session := channel.NewSession()

			id := login(h, registry, session, "secret-key", tt.events)

			sent := session.Sent()
			require.Len(t, sent, 2)
			assert.Equal(t, envelope.OpcodeInvalidConnection, sent[1].Type)
			assert.Equal(t, envelope.ErrInvalidEvents, sent[1].Payload)
			assert.False(t, registry.Find(id).Authenticated())
		})
	}
}

func TestHandshakeEmptyEventsIsValid(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "secret-key", []any{})

	entry := registry.Find(id)
	assert.True(t, entry.Authenticated())
	assert.Empty(t, entry.Subscription().Events)
}

func TestHandshakeUncataloguedCodesAreAccepted(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "secret-key", []any{float64(99), float64(-3)})

	entry := registry.Find(id)
	require.True(t, entry.Authenticated())
	assert.Equal(t, []envelope.Event{99, -3}, entry.Subscription().Events)
}

func TestHandshakeKeepsDuplicatesAndOrder(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := login(h, registry, session, "secret-key", []int{35, 35, 30, 35})

	assert.Equal(t,
		[]envelope.Event{35, 35, 30, 35},
		registry.Find(id).Subscription().Events)
}

func TestHandshakeUnknownConnection(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := registry.Admit(session)
	registry.Remove(id)
	h.Login(context.Background(), session, id, transport.Message{Auth: "secret-key", Events: []any{}})

	sent := session.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, envelope.OpcodeInvalidConnection, sent[1].Type)
	assert.Equal(t, envelope.ErrUnknownConnection, sent[1].Payload)
}

func TestHandshakeRepeatLoginReplacesSubscription(t *testing.T) {
	resolver := staticResolver(map[string]*BotRecord{
		"key-a": {ID: "1"},
		"key-b": {ID: "2"},
	})
	h, registry := newTestHandshake(resolver)
	session := channel.NewSession()

	id := registry.Admit(session)
	h.Login(context.Background(), session, id, transport.Message{Auth: "key-a", Events: []int{35}})
	h.Login(context.Background(), session, id, transport.Message{Auth: "key-b", Events: []int{30, 31}})

	sub := registry.Find(id).Subscription()
	require.NotNil(t, sub)
	assert.Equal(t, "key-b", sub.Credential)
	assert.Equal(t, []envelope.Event{30, 31}, sub.Events)
}

func TestIntegerEvents(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []envelope.Event
		ok   bool
	}{
		{name: "typed events", in: []envelope.Event{35, 30}, want: []envelope.Event{35, 30}, ok: true},
		{name: "ints", in: []int{1, 2, 3}, want: []envelope.Event{1, 2, 3}, ok: true},
		{name: "decoded floats", in: []any{float64(10), float64(20)}, want: []envelope.Event{10, 20}, ok: true},
		{name: "mixed integers", in: []any{1, int64(2), float64(3)}, want: []envelope.Event{1, 2, 3}, ok: true},
		{name: "empty", in: []any{}, want: []envelope.Event{}, ok: true},
		{name: "fraction", in: []any{0.5}, ok: false},
		{name: "string", in: []any{"35"}, ok: false},
		{name: "scalar", in: 35, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := integerEvents(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
