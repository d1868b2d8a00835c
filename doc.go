// Package gateway is the real-time event gateway of the simobotlist
// catalog service. It tracks long-lived client sessions in a connection
// registry, authenticates them with the login handshake (api-key
// resolution against the bot catalog, subscription validation, Ready
// commit), and fans domain events out to the authenticated, connected,
// subscribed sessions.
//
// Domain events reach the dispatcher over a Watermill topic: the CRUD
// layer publishes DomainEvent messages through a Producer and the
// Service's bus loop routes them onto matching sessions. The built-in
// transport is the in-memory gochannel bus; the gateway is single-process
// and delivery is best-effort, with no acknowledgments, replay, or
// cross-process fan-out.
//
// Sessions arrive through the transport packages: transport/websocket
// serves a gorilla/websocket endpoint with a bounded per-session outbound
// queue, and transport/channel provides in-memory sessions for tests and
// embedding. The read-through cache used by the hot HTTP read paths lives
// in internal/runtime/cache and is re-exported here via NewCache.
//
// A minimal embedding fills Config, constructs a Service with a catalog
// resolver, runs Start on a background context, and hands accepted
// sessions to Service.HandleSession; see examples/embedded for a
// copy/paste snippet.
package gateway
