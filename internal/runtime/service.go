package runtime

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/simobotlist/gateway/internal/runtime/config"
	"github.com/simobotlist/gateway/internal/runtime/envelope"
	errspkg "github.com/simobotlist/gateway/internal/runtime/errors"
	"github.com/simobotlist/gateway/internal/runtime/logging"
	"github.com/simobotlist/gateway/transport"
)

// Dependencies holds the collaborators the Service needs. Resolver is
// mandatory; the bus and metrics registerer default to an in-process
// gochannel transport and the global Prometheus registry.
type Dependencies struct {
	Resolver   CatalogResolver
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Registerer prometheus.Registerer
}

// Service owns the registry, handshake, and dispatcher, and bridges the
// domain-event bus onto connected sessions. It is explicitly constructed
// and carries no package-level state; the intended lifecycle is
// init-at-startup, no teardown beyond context cancellation.
type Service struct {
	conf   *configpkg.Config
	logger logging.ServiceLogger

	registry   *Registry
	handshake  *Handshake
	dispatcher *Dispatcher
	metrics    *Metrics

	producer   *Producer
	subscriber message.Subscriber
}

// NewService wires a gateway service. The configuration is validated and
// defaulted in place.
func NewService(conf *configpkg.Config, log logging.ServiceLogger, deps Dependencies) (*Service, error) {
	if conf == nil {
		conf = configpkg.Default()
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	if deps.Resolver == nil {
		return nil, errspkg.ErrResolverRequired
	}

	publisher := deps.Publisher
	subscriber := deps.Subscriber
	if publisher == nil || subscriber == nil {
		// The in-memory gochannel bus is the default and only built-in
		// bus transport.
		bus := gochannel.NewGoChannel(gochannel.Config{}, logging.NewWatermillAdapter(log))
		if publisher == nil {
			publisher = bus
		}
		if subscriber == nil {
			subscriber = bus
		}
	}

	// A nil registerer gets a private registry rather than the global one,
	// so constructing several services in one process never trips duplicate
	// collector registration. Processes that scrape /metrics pass the
	// default registerer explicitly.
	var metrics *Metrics
	if conf.MetricsEnabled && deps.Registerer != nil {
		metrics = NewMetrics(deps.Registerer)
	} else {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	registry := NewRegistry()
	producer, err := NewProducer(publisher, conf.EventsTopic)
	if err != nil {
		return nil, err
	}

	s := &Service{
		conf:       conf,
		logger:     log,
		registry:   registry,
		handshake:  NewHandshake(registry, deps.Resolver, log, metrics),
		dispatcher: NewDispatcher(registry, log, metrics),
		metrics:    metrics,
		producer:   producer,
		subscriber: subscriber,
	}

	log.Info("gateway service created", logging.LogFields{
		"events_topic": conf.EventsTopic,
		"config":       conf,
	})
	return s, nil
}

// Start subscribes to the domain-event topic and blocks routing bus
// messages into the dispatcher until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.conf.EventsTopic)
	if err != nil {
		return err
	}

	s.logger.Info("gateway consuming domain events", logging.LogFields{
		"topic": s.conf.EventsTopic,
	})
	s.consumeDomainEvents(ctx, messages)
	return ctx.Err()
}

// HandleSession admits the session into the registry and serves its
// inbound messages until it disconnects. Each login message runs the full
// handshake; a read error is the disconnect signal. Transports call this
// once per connection.
func (s *Service) HandleSession(ctx context.Context, session transport.Session) {
	id := s.registry.Admit(session)
	s.metrics.ConnectionsAdmitted.Inc()
	s.metrics.ConnectionsActive.Inc()
	s.logger.Debug("session admitted", logging.LogFields{"connection_id": id})

	// Tear the session down when the server context ends.
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	for {
		msg, err := session.Receive()
		if err != nil {
			s.registry.MarkDisconnected(id)
			s.metrics.ConnectionsActive.Dec()
			s.logger.Debug("session disconnected", logging.LogFields{"connection_id": id})
			return
		}
		s.handshake.Login(ctx, session, id, msg)
	}
}

// Publish fans an event out to matching sessions directly, bypassing the
// bus. In-process callers that already hold the Service use this; remote
// collaborators go through the Producer.
func (s *Service) Publish(ctx context.Context, event envelope.Event, selector TargetSelector, payload any) int {
	return s.dispatcher.Publish(ctx, event, selector, payload)
}

// Producer returns the bus producer bound to the configured topic.
func (s *Service) Producer() *Producer { return s.producer }

// Registry exposes the connection registry for inspection and external
// cleanup.
func (s *Service) Registry() *Registry { return s.registry }

// Connections reports the number of currently connected sessions.
func (s *Service) Connections() int { return s.registry.Connected() }

// Metrics exposes the service's collectors so the HTTP layer can count
// cache lookups alongside gateway traffic.
func (s *Service) Metrics() *Metrics { return s.metrics }
