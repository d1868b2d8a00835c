package runtime

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport/channel"
)

func newTestDispatcher() (*Dispatcher, *Registry) {
	registry := NewRegistry()
	return NewDispatcher(registry, logging.Nop(), NewMetrics(prometheus.NewRegistry())), registry
}

// subscribe admits a session and commits a subscription directly,
// bypassing the login protocol.
func subscribe(registry *Registry, session *channel.Session, credential string, events ...envelope.Event) string {
	id := registry.Admit(session)
	registry.Find(id).commit(Subscription{Credential: credential, Events: events})
	return id
}

func TestDispatcherDeliversToSubscribedEntries(t *testing.T) {
	d, registry := newTestDispatcher()

	votes := channel.NewSession()
	subscribe(registry, votes, "key-a", envelope.EventVoteAdd)
	bots := channel.NewSession()
	subscribe(registry, bots, "key-b", envelope.EventBotCreate)
	both := channel.NewSession()
	subscribe(registry, both, "key-c", envelope.EventVoteAdd, envelope.EventBotCreate)

	payload := map[string]any{"user": "123"}
	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, nil, payload)

	assert.Equal(t, 2, delivered)
	require.Len(t, votes.Sent(), 1)
	assert.Empty(t, bots.Sent())
	require.Len(t, both.Sent(), 1)

	env := votes.Sent()[0]
	assert.Equal(t, envelope.OpcodePayload, env.Type)
	require.NotNil(t, env.EventType)
	assert.Equal(t, envelope.EventVoteAdd, *env.EventType)
	assert.Equal(t, payload, env.Payload)
}

func TestDispatcherSkipsAnonymousEntries(t *testing.T) {
	d, registry := newTestDispatcher()

	anonymous := channel.NewSession()
	registry.Admit(anonymous)

	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, nil, nil)

	assert.Zero(t, delivered)
	assert.Empty(t, anonymous.Sent())
}

func TestDispatcherSkipsDisconnectedEntries(t *testing.T) {
	d, registry := newTestDispatcher()

	session := channel.NewSession()
	id := subscribe(registry, session, "key-a", envelope.EventVoteAdd)
	registry.MarkDisconnected(id)

	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, nil, nil)

	assert.Zero(t, delivered)
	assert.Empty(t, session.Sent())
}

func TestDispatcherSkipsUnsubscribedEvent(t *testing.T) {
	d, registry := newTestDispatcher()

	session := channel.NewSession()
	subscribe(registry, session, "key-a", envelope.EventTeamCreate, envelope.EventTeamUpdate)

	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, nil, nil)

	assert.Zero(t, delivered)
	assert.Empty(t, session.Sent())
}

func TestDispatcherCredentialSelector(t *testing.T) {
	d, registry := newTestDispatcher()

	mine := channel.NewSession()
	subscribe(registry, mine, "key-a", envelope.EventVoteAdd)
	other := channel.NewSession()
	subscribe(registry, other, "key-b", envelope.EventVoteAdd)

	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, SelectCredential("key-a"), nil)

	assert.Equal(t, 1, delivered)
	assert.Len(t, mine.Sent(), 1)
	assert.Empty(t, other.Sent())
}

func TestDispatcherSendFailureIsolation(t *testing.T) {
	d, registry := newTestDispatcher()

	dead := channel.NewSession()
	subscribe(registry, dead, "key-a", envelope.EventVoteAdd)
	alive := channel.NewSession()
	subscribe(registry, alive, "key-b", envelope.EventVoteAdd)

	// Close the transport without marking the entry disconnected, so the
	// dispatcher still attempts the send and hits the failure path.
	require.NoError(t, dead.Close())

	delivered := d.Publish(context.Background(), envelope.EventVoteAdd, nil, nil)

	assert.Equal(t, 1, delivered)
	assert.Len(t, alive.Sent(), 1)
	assert.Empty(t, dead.Sent())
}

func TestDispatcherNoSubscribersIsANoop(t *testing.T) {
	d, _ := newTestDispatcher()
	assert.Zero(t, d.Publish(context.Background(), envelope.EventVoteAdd, nil, nil))
}

func TestSelectCredentialWithoutSubscription(t *testing.T) {
	registry := NewRegistry()
	id := registry.Admit(channel.NewSession())

	selector := SelectCredential("key-a")
	assert.False(t, selector(registry.Find(id)))
}
