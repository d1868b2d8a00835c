package runtime

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/simobotlist/gateway/internal/runtime/envelope"
	errspkg "github.com/simobotlist/gateway/internal/runtime/errors"
	"github.com/simobotlist/gateway/internal/runtime/ids"
	"github.com/simobotlist/gateway/internal/runtime/jsoncodec"
	"github.com/simobotlist/gateway/internal/runtime/logging"
)

// DomainEvent is the bus message the catalog CRUD layer emits when a
// record changes. Credential, when set, narrows delivery to the sessions
// authenticated with that credential; empty means every subscriber of the
// event code.
type DomainEvent struct {
	Event      envelope.Event  `json:"event"`
	Credential string          `json:"credential,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// selector translates the event's addressing into a TargetSelector.
func (e DomainEvent) selector() TargetSelector {
	if e.Credential == "" {
		return nil
	}
	return SelectCredential(e.Credential)
}

// Producer publishes domain events onto the bus topic the gateway
// subscribes to. It is handed to the CRUD layer so record changes reach
// the dispatcher without touching gateway internals.
type Producer struct {
	publisher message.Publisher
	topic     string
}

func NewProducer(publisher message.Publisher, topic string) (*Producer, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	return &Producer{publisher: publisher, topic: topic}, nil
}

// Publish marshals the event and hands it to the bus. A nil payload is
// allowed; some events carry no body.
func (p *Producer) Publish(ctx context.Context, event DomainEvent) error {
	body, err := jsoncodec.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(ids.NewULID(), body)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return p.publisher.Publish(p.topic, msg)
}

// consumeDomainEvents drains the subscription channel, routing each bus
// message through the dispatcher. Malformed messages are acked and
// dropped; a poisoned message must never wedge the topic.
func (s *Service) consumeDomainEvents(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var event DomainEvent
		if err := jsoncodec.Unmarshal(msg.Payload, &event); err != nil {
			s.logger.Error("dropping malformed domain event", err, logging.LogFields{
				"message_uuid": msg.UUID,
			})
			msg.Ack()
			continue
		}

		var payload any
		if len(event.Payload) > 0 {
			if err := jsoncodec.Unmarshal(event.Payload, &payload); err != nil {
				s.logger.Error("dropping domain event with malformed payload", err, logging.LogFields{
					"message_uuid": msg.UUID,
					"event":        event.Event.String(),
				})
				msg.Ack()
				continue
			}
		}

		s.dispatcher.Publish(ctx, event.Event, event.selector(), payload)
		msg.Ack()
	}
}
