package transport

import (
	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

// Message type tags on the wire.
const (
	TypeSessionOpen      = "session_open"
	TypeSubmitEvent      = "submit_event"
	TypeDeleteEvent      = "delete_event"
	TypeAck              = "ack"
	TypeReject           = "reject"
	TypeDeleteAck        = "delete_ack"
	TypeEventCreated     = "event_created"
	TypeEventDeleted     = "event_deleted"
	TypeRefreshRequested = "timeline_refresh_requested"
)

// Message is the wire envelope for both directions of the channel. Type
// selects which fields are populated.
type Message struct {
	Type string `json:"type"`

	// session_open
	MatchID    string `json:"matchId,omitempty"`
	OperatorID string `json:"operatorId,omitempty"`

	// submit_event / event_created
	Event *model.MatchEvent `json:"event,omitempty"`

	// ack / reject / delete_event / delete_ack
	ClientID    uuid.UUID         `json:"clientId,omitempty"`
	ServerID    string            `json:"serverId,omitempty"`
	DuplicateOf string            `json:"duplicateOf,omitempty"`
	TeamStatus  string            `json:"teamStatus,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Events pushed by the server and acks are routed to these callbacks.
// Nil callbacks are skipped. All callbacks run on the read goroutine, so
// they must hand off rather than block.
type Callbacks struct {
	OnAck              func(model.Ack)
	OnReject           func(clientID uuid.UUID, reason string, fields map[string]string)
	OnDeleteAck        func(clientID uuid.UUID)
	OnEventCreated     func(model.MatchEvent)
	OnEventDeleted     func(serverID string)
	OnRefreshRequested func()
	OnConnectionChange func(connected bool)
}
