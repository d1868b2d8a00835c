package gateway

import (
	"time"

	runtimepkg "github.com/simobotlist/gateway/internal/runtime"
	cachepkg "github.com/simobotlist/gateway/internal/runtime/cache"
	configpkg "github.com/simobotlist/gateway/internal/runtime/config"
	"github.com/simobotlist/gateway/internal/runtime/envelope"
	loggingpkg "github.com/simobotlist/gateway/internal/runtime/logging"
	transportpkg "github.com/simobotlist/gateway/transport"
)

type (
	Config       = configpkg.Config
	Service      = runtimepkg.Service
	Dependencies = runtimepkg.Dependencies

	Registry       = runtimepkg.Registry
	Entry          = runtimepkg.Entry
	Subscription   = runtimepkg.Subscription
	Dispatcher     = runtimepkg.Dispatcher
	TargetSelector = runtimepkg.TargetSelector
	Handshake      = runtimepkg.Handshake

	Producer    = runtimepkg.Producer
	DomainEvent = runtimepkg.DomainEvent

	CatalogResolver     = runtimepkg.CatalogResolver
	CatalogResolverFunc = runtimepkg.CatalogResolverFunc
	BotRecord           = runtimepkg.BotRecord

	Envelope  = envelope.Envelope
	Opcode    = envelope.Opcode
	Event     = envelope.Event
	Ready     = envelope.Ready
	HelloAck  = envelope.HelloAck
	ErrorBody = envelope.ErrorBody

	Cache[K comparable, V any] = cachepkg.Cache[K, V]

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	Session        = transportpkg.Session
	SessionHandler = transportpkg.Handler
	LoginMessage   = transportpkg.Message
)

// Framing opcodes.
const (
	OpcodePayload           = envelope.OpcodePayload
	OpcodeHello             = envelope.OpcodeHello
	OpcodeInvalidConnection = envelope.OpcodeInvalidConnection
)

// Session-lifecycle events.
const (
	EventError = envelope.EventError
	EventHello = envelope.EventHello
	EventReady = envelope.EventReady
)

// Account-lifecycle events.
const (
	EventUserUpdate              = envelope.EventUserUpdate
	EventBulkDeleteNotifications = envelope.EventBulkDeleteNotifications
	EventNotificationDelete      = envelope.EventNotificationDelete
	EventNotificationCreate      = envelope.EventNotificationCreate
)

// Team-lifecycle events.
const (
	EventTeamCreate            = envelope.EventTeamCreate
	EventTeamDelete            = envelope.EventTeamDelete
	EventTeamUpdate            = envelope.EventTeamUpdate
	EventTeamOwnershipTransfer = envelope.EventTeamOwnershipTransfer
	EventMemberJoin            = envelope.EventMemberJoin
	EventTeamBotRemove         = envelope.EventTeamBotRemove
	EventMemberLeave           = envelope.EventMemberLeave
	EventTeamMemberUpdate      = envelope.EventTeamMemberUpdate
	EventInviteCodeUpdate      = envelope.EventInviteCodeUpdate
	EventTeamBotAdd            = envelope.EventTeamBotAdd
	EventAuditLogEntryCreate   = envelope.EventAuditLogEntryCreate
)

// Catalog-lifecycle events.
const (
	EventBotCreate      = envelope.EventBotCreate
	EventBotDelete      = envelope.EventBotDelete
	EventBotUpdate      = envelope.EventBotUpdate
	EventFeedbackDelete = envelope.EventFeedbackDelete
	EventFeedbackUpdate = envelope.EventFeedbackUpdate
	EventVoteAdd        = envelope.EventVoteAdd
	EventFeedbackAdd    = envelope.EventFeedbackAdd
)

var (
	NewService  = runtimepkg.NewService
	NewRegistry = runtimepkg.NewRegistry
	NewProducer = runtimepkg.NewProducer

	SelectCredential = runtimepkg.SelectCredential

	NewHello             = envelope.NewHello
	NewInvalidConnection = envelope.NewInvalidConnection
	NewPayload           = envelope.NewPayload

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop
)

// NewCache creates a read-through cache with the given TTL. Generic
// functions cannot be aliased through a var, so this thin wrapper
// forwards to the cache package.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return cachepkg.New[K, V](ttl)
}
