package runtime

import (
	"context"
	"encoding/json"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport"
)

// Handshake runs the login protocol that upgrades an anonymous session
// into an identified, subscribed client. Every failure branch is terminal
// for the attempt only: the session stays open and tracked, and a later
// login message restarts the protocol from the beginning.
type Handshake struct {
	registry *Registry
	resolver CatalogResolver
	logger   logging.ServiceLogger
	metrics  *Metrics
}

func NewHandshake(registry *Registry, resolver CatalogResolver, logger logging.ServiceLogger, metrics *Metrics) *Handshake {
	return &Handshake{
		registry: registry,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Login processes one login message on the given session. Outcomes are
// communicated only to the session itself; send failures are ignored (a
// closed transport turns them into no-ops).
func (h *Handshake) Login(ctx context.Context, session transport.Session, id string, msg transport.Message) {
	tracer := otel.Tracer("gateway-handshake")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	span.SetAttributes(attribute.String("connection.id", id))

	// Acknowledge receipt before anything is checked. Hello signals
	// nothing about credential validity.
	_ = session.Send(envelope.NewHello(msg.Auth))

	record, err := h.resolver.FindBotByCredential(ctx, msg.Auth)
	if err != nil {
		h.logger.Error("credential lookup failed", err, logging.LogFields{"connection_id": id})
		h.fail(session, envelope.ErrInvalidAuth, LoginResultResolverError)
		return
	}
	if record == nil {
		h.fail(session, envelope.ErrInvalidAuth, LoginResultInvalidAuth)
		return
	}

	events, ok := integerEvents(msg.Events)
	if !ok {
		h.fail(session, envelope.ErrInvalidEvents, LoginResultInvalidEvents)
		return
	}

	// The credential lookup is a suspension point; the entry may have
	// been removed while it was pending.
	entry := h.registry.Find(id)
	if entry == nil {
		h.fail(session, envelope.ErrUnknownConnection, LoginResultUnknownConnection)
		return
	}

	entry.commit(Subscription{Credential: msg.Auth, Events: events})

	h.metrics.Logins.WithLabelValues(LoginResultOK).Inc()
	h.logger.Info("session authenticated", logging.LogFields{
		"connection_id": id,
		"bot_id":        record.ID,
		"events":        len(events),
	})

	_ = session.Send(envelope.NewPayload(envelope.EventReady, envelope.Ready{
		Events: events,
		Bot:    record.View(),
	}))
}

func (h *Handshake) fail(session transport.Session, body envelope.ErrorBody, result string) {
	h.metrics.Logins.WithLabelValues(result).Inc()
	_ = session.Send(envelope.NewInvalidConnection(body))
}

// integerEvents validates that the submitted events value is an ordered
// sequence whose every element is an integer, and converts it. Any
// integer is accepted, catalogued or not; order and duplicates are kept
// verbatim.
func integerEvents(v any) ([]envelope.Event, bool) {
	switch seq := v.(type) {
	case []envelope.Event:
		out := make([]envelope.Event, len(seq))
		copy(out, seq)
		return out, true
	case []int:
		out := make([]envelope.Event, len(seq))
		for i, n := range seq {
			out[i] = envelope.Event(n)
		}
		return out, true
	case []any:
		out := make([]envelope.Event, 0, len(seq))
		for _, elem := range seq {
			n, ok := integerValue(elem)
			if !ok {
				return nil, false
			}
			out = append(out, envelope.Event(n))
		}
		return out, true
	default:
		return nil, false
	}
}

func integerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case envelope.Event:
		return int64(n), true
	default:
		return 0, false
	}
}
