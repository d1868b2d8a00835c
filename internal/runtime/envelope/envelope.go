// Package envelope defines the wire protocol spoken over gateway sessions:
// the three-field message wrapper, the framing opcodes, and the closed
// catalog of domain event codes.
package envelope

// Opcode is the transport-level framing type of an envelope.
type Opcode int

const (
	OpcodePayload Opcode = iota
	OpcodeHello
	OpcodeInvalidConnection
)

func (o Opcode) String() string {
	switch o {
	case OpcodePayload:
		return "payload"
	case OpcodeHello:
		return "hello"
	case OpcodeInvalidConnection:
		return "invalid_connection"
	default:
		return "unknown"
	}
}

// Event is a domain event code. The catalog is closed; gaps between the
// groups are reserved. Clients may subscribe to any integer, catalogued or
// not; codes outside the catalog simply never match a published event.
type Event int

const (
	EventError Event = iota
	EventHello
	EventReady
	EventUserUpdate
	EventBulkDeleteNotifications
	EventNotificationDelete
	EventNotificationCreate
)

const (
	EventTeamCreate Event = iota + 10
	EventTeamDelete
	EventTeamUpdate
	EventTeamOwnershipTransfer
	EventMemberJoin
	EventTeamBotRemove
	EventMemberLeave
	EventTeamMemberUpdate
	EventInviteCodeUpdate
	EventTeamBotAdd
	EventAuditLogEntryCreate
)

const (
	EventBotCreate Event = iota + 30
	EventBotDelete
	EventBotUpdate
	EventFeedbackDelete
	EventFeedbackUpdate
	EventVoteAdd
	EventFeedbackAdd
)

var eventNames = map[Event]string{
	EventError:                   "error",
	EventHello:                   "hello",
	EventReady:                   "ready",
	EventUserUpdate:              "userUpdate",
	EventBulkDeleteNotifications: "bulkDeleteNotifications",
	EventNotificationDelete:      "notificationDelete",
	EventNotificationCreate:      "notificationCreate",
	EventTeamCreate:              "teamCreate",
	EventTeamDelete:              "teamDelete",
	EventTeamUpdate:              "teamUpdate",
	EventTeamOwnershipTransfer:   "teamOwnershipTransfer",
	EventMemberJoin:              "memberJoin",
	EventTeamBotRemove:           "teamBotRemove",
	EventMemberLeave:             "memberLeave",
	EventTeamMemberUpdate:        "teamMemberUpdate",
	EventInviteCodeUpdate:        "inviteCodeUpdate",
	EventTeamBotAdd:              "teamBotAdd",
	EventAuditLogEntryCreate:     "auditLogEntryCreate",
	EventBotCreate:               "botCreate",
	EventBotDelete:               "botDelete",
	EventBotUpdate:               "botUpdate",
	EventFeedbackDelete:          "feedbackDelete",
	EventFeedbackUpdate:          "feedbackUpdate",
	EventVoteAdd:                 "voteAdd",
	EventFeedbackAdd:             "feedbackAdd",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "uncatalogued"
}

// Catalogued reports whether the code belongs to the closed event catalog.
func (e Event) Catalogued() bool {
	_, ok := eventNames[e]
	return ok
}

// Envelope is the wrapper sent over a session. EventType is present only
// for OpcodePayload frames; Hello and InvalidConnection are framing-only.
type Envelope struct {
	Type      Opcode `json:"type"`
	EventType *Event `json:"event_type"`
	Payload   any    `json:"payload"`
}

// NewHello builds the acknowledgment-of-receipt frame sent as soon as a
// login message arrives. It echoes the submitted credential and signals
// nothing about its validity.
func NewHello(auth string) Envelope {
	return Envelope{Type: OpcodeHello, Payload: HelloAck{Auth: auth}}
}

// NewInvalidConnection builds a handshake failure frame.
func NewInvalidConnection(body ErrorBody) Envelope {
	return Envelope{Type: OpcodeInvalidConnection, Payload: body}
}

// NewPayload builds a domain event frame.
func NewPayload(event Event, payload any) Envelope {
	et := event
	return Envelope{Type: OpcodePayload, EventType: &et, Payload: payload}
}

// HelloAck echoes the credential submitted with a login message.
type HelloAck struct {
	Auth string `json:"auth"`
}

// ErrorBody is the fixed payload of an InvalidConnection frame.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// The three handshake failure bodies. The codes are part of the public
// protocol; clients match on them.
var (
	ErrInvalidAuth = ErrorBody{
		Code:    "INVALID_AUTH",
		Message: "the provided api key does not match any bot",
	}
	ErrInvalidEvents = ErrorBody{
		Code:    "INVALID_EVENTS",
		Message: "events must be an array of integer event codes",
	}
	ErrUnknownConnection = ErrorBody{
		Code:    "UNKNOWN_CONNECTION",
		Message: "the connection is no longer tracked by the gateway",
	}
)

// Ready is the payload of the terminal handshake success frame.
type Ready struct {
	Events []Event        `json:"events"`
	Bot    map[string]any `json:"bot"`
}
