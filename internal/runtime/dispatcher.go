package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	"github.com/simobotlist/gateway/internal/runtime/logging"
)

// TargetSelector narrows the recipient set of a publish beyond the
// subscription check. A nil selector matches every entry. Different event
// families supply different addressing rules, so the rule travels with
// the publish call.
type TargetSelector func(*Entry) bool

// SelectCredential matches entries whose committed subscription carries
// the given credential.
func SelectCredential(credential string) TargetSelector {
	return func(entry *Entry) bool {
		sub := entry.Subscription()
		return sub != nil && sub.Credential == credential
	}
}

// Dispatcher fans domain events out to the matching registry entries.
// Delivery is best-effort and per-entry independent; there is no
// acknowledgment, cross-entry ordering, or retry.
type Dispatcher struct {
	registry *Registry
	logger   logging.ServiceLogger
	metrics  *Metrics
}

func NewDispatcher(registry *Registry, logger logging.ServiceLogger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger, metrics: metrics}
}

// Publish sends a Payload envelope for event to every entry that is
// authenticated, connected, subscribed to the event, and accepted by the
// selector. It returns the number of successful deliveries.
func (d *Dispatcher) Publish(ctx context.Context, event envelope.Event, selector TargetSelector, payload any) int {
	tracer := otel.Tracer("gateway-dispatcher")
	_, span := tracer.Start(ctx, "Publish")
	defer span.End()
	span.SetAttributes(
		attribute.Int("event.code", int(event)),
		attribute.String("event.name", event.String()),
	)

	env := envelope.NewPayload(event, payload)
	delivered := 0

	for _, entry := range d.registry.All() {
		authenticated, connected, sub := entry.snapshot()
		if !authenticated || !connected || !sub.subscribedTo(event) {
			continue
		}
		if selector != nil && !selector(entry) {
			continue
		}

		// A send to a disconnected or failing transport is dropped
		// silently; one slow or dead client never affects the rest.
		if err := entry.Session().Send(env); err != nil {
			d.metrics.EnvelopesDropped.Inc()
			d.logger.Debug("envelope dropped", logging.LogFields{
				"connection_id": entry.ID(),
				"event":         event.String(),
				"error":         err.Error(),
			})
			continue
		}
		delivered++
		d.metrics.EnvelopesDelivered.WithLabelValues(event.String()).Inc()
	}

	span.SetAttributes(attribute.Int("delivered", delivered))
	return delivered
}
