package runtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/simobotlist/gateway/internal/runtime/config"
	"github.com/simobotlist/gateway/internal/runtime/envelope"
	errspkg "github.com/simobotlist/gateway/internal/runtime/errors"
	"github.com/simobotlist/gateway/transport/channel"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	resolver := staticResolver(map[string]*BotRecord{
		"secret-key": {ID: "4510", Fields: map[string]any{"username": "vote-watcher"}},
		"other-key":  {ID: "7000", Fields: map[string]any{"username": "observer"}},
	})

	// A persistent bus replays messages published before Subscribe, so the
	// tests need no sleep between Start and the first Publish.
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	svc, err := NewService(nil, nil, Dependencies{
		Resolver:   resolver,
		Publisher:  bus,
		Subscriber: bus,
	})
	require.NoError(t, err)
	return svc
}

// awaitEvent blocks until the session receives a Payload envelope for the
// given event, skipping handshake traffic before it.
func awaitEvent(t *testing.T, session *channel.Session, event envelope.Event) envelope.Envelope {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-session.Delivered():
			if env.Type == envelope.OpcodePayload && env.EventType != nil && *env.EventType == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %v", event)
		}
	}
}

func TestNewServiceRequiresResolver(t *testing.T) {
	_, err := NewService(nil, nil, Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrResolverRequired)
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	conf := configpkg.Default()
	conf.CacheTTL = -time.Second

	resolver := staticResolver(nil)
	_, err := NewService(conf, nil, Dependencies{Resolver: resolver})
	assert.Error(t, err)
}

func TestNewServiceIsReusableWithinAProcess(t *testing.T) {
	resolver := staticResolver(nil)

	// Metrics default to a private registry, so building several services
	// with the default config must not collide on collector registration.
	for i := 0; i < 3; i++ {
		_, err := NewService(nil, nil, Dependencies{Resolver: resolver})
		require.NoError(t, err)
	}
}

func TestServiceSessionLifecycle(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := channel.NewSession()
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.HandleSession(ctx, session)
	}()

	session.Login("secret-key", []int{int(envelope.EventVoteAdd)})

	ready := awaitEvent(t, session, envelope.EventReady)
	body, ok := ready.Payload.(envelope.Ready)
	require.True(t, ok)
	assert.Equal(t, []envelope.Event{envelope.EventVoteAdd}, body.Events)
	assert.Equal(t, "4510", body.Bot["id"])

	assert.Equal(t, 1, svc.Connections())

	session.Disconnect()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session handler did not return after disconnect")
	}

	// The entry survives the disconnect with its authentication intact.
	assert.Zero(t, svc.Connections())
	entry := svc.Registry().Find(session.ID())
	require.NotNil(t, entry)
	assert.True(t, entry.Authenticated())
	assert.False(t, entry.Connected())
}

func TestServiceBusRoundTrip(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.Start(ctx) }()

	session := channel.NewSession()
	go svc.HandleSession(ctx, session)
	session.Login("secret-key", []int{int(envelope.EventVoteAdd)})
	awaitEvent(t, session, envelope.EventReady)

	payload, err := json.Marshal(map[string]any{"user": "123", "bot": "4510"})
	require.NoError(t, err)
	require.NoError(t, svc.Producer().Publish(ctx, DomainEvent{
		Event:   envelope.EventVoteAdd,
		Payload: payload,
	}))

	env := awaitEvent(t, session, envelope.EventVoteAdd)
	got, ok := env.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", got["user"])
	assert.Equal(t, "4510", got["bot"])
}

func TestServiceBusCredentialRouting(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.Start(ctx) }()

	mine := channel.NewSession()
	go svc.HandleSession(ctx, mine)
	mine.Login("secret-key", []int{int(envelope.EventBotUpdate)})
	awaitEvent(t, mine, envelope.EventReady)

	other := channel.NewSession()
	go svc.HandleSession(ctx, other)
	other.Login("other-key", []int{int(envelope.EventBotUpdate)})
	awaitEvent(t, other, envelope.EventReady)

	payload, err := json.Marshal(map[string]any{"id": "4510"})
	require.NoError(t, err)
	require.NoError(t, svc.Producer().Publish(ctx, DomainEvent{
		Event:      envelope.EventBotUpdate,
		Credential: "secret-key",
		Payload:    payload,
	}))

	awaitEvent(t, mine, envelope.EventBotUpdate)

	// The other credential's session must see nothing beyond its own
	// handshake traffic.
	select {
	case env := <-other.Delivered():
		t.Fatalf("unexpected envelope for other credential: %+v", env)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServiceDirectPublish(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := channel.NewSession()
	go svc.HandleSession(ctx, session)
	session.Login("secret-key", []int{int(envelope.EventFeedbackAdd)})
	awaitEvent(t, session, envelope.EventReady)

	delivered := svc.Publish(ctx, envelope.EventFeedbackAdd, nil, map[string]any{"note": "great"})
	assert.Equal(t, 1, delivered)
}

func TestServiceMalformedBusMessageIsDropped(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.Start(ctx) }()

	session := channel.NewSession()
	go svc.HandleSession(ctx, session)
	session.Login("secret-key", []int{int(envelope.EventVoteAdd)})
	awaitEvent(t, session, envelope.EventReady)

	// A message whose body never parses is acked and dropped. Producer
	// refuses to marshal garbage, so the poisoned body goes onto the
	// topic directly; the next well-formed event must still arrive.
	poisoned := message.NewMessage(watermill.NewUUID(), []byte(`{broken`))
	require.NoError(t, svc.producer.publisher.Publish(svc.conf.EventsTopic, poisoned))
	require.NoError(t, svc.Producer().Publish(ctx, DomainEvent{
		Event:   envelope.EventVoteAdd,
		Payload: json.RawMessage(`{"user":"123"}`),
	}))

	env := awaitEvent(t, session, envelope.EventVoteAdd)
	got, ok := env.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", got["user"])
}

func TestProducerRejectsUnmarshalablePayload(t *testing.T) {
	svc := newTestService(t)

	err := svc.Producer().Publish(context.Background(), DomainEvent{
		Event:   envelope.EventVoteAdd,
		Payload: json.RawMessage(`{broken`),
	})
	assert.Error(t, err)
}

func TestServiceContextCancellationClosesSessions(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	session := channel.NewSession()
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.HandleSession(ctx, session)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session handler did not return after context cancellation")
	}
	assert.False(t, session.IsOpen())
}
