package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of match event being recorded.
type EventType string

const (
	EventTypePass         EventType = "pass"
	EventTypeShot         EventType = "shot"
	EventTypeCard         EventType = "card"
	EventTypeSubstitution EventType = "substitution"
	EventTypeStoppage     EventType = "game_stoppage"
	EventTypePhaseChange  EventType = "phase_change"
	EventTypeVarReview    EventType = "var_review"
)

// DeliveryStatus tracks an event's confirmation state against the server.
type DeliveryStatus uint8

const (
	DeliveryPending DeliveryStatus = iota
	DeliveryConfirmed
	DeliveryRejected
)

// String returns the lowercase name of the delivery status.
func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliveryConfirmed:
		return "confirmed"
	case DeliveryRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MatchEvent is a single play-by-play entry on the timeline.
// ClientID is the sole key before the server acknowledges; ServerID is
// canonical once assigned.
type MatchEvent struct {
	ClientID    uuid.UUID      `json:"clientId"`
	ServerID    string         `json:"serverId,omitempty"`
	Type        EventType      `json:"type"`
	TeamID      string         `json:"teamId"`
	PlayerID    string         `json:"playerId,omitempty"`
	Period      int            `json:"period"`
	MatchClock  ClockStamp     `json:"matchClock"`
	Data        EventData      `json:"data"`
	Notes       string         `json:"notes,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      DeliveryStatus `json:"status"`
	DuplicateOf string         `json:"duplicateOf,omitempty"`
}

// Confirmed reports whether the server has acknowledged this event.
func (e *MatchEvent) Confirmed() bool {
	return e.Status == DeliveryConfirmed && e.ServerID != ""
}

// EventData holds the type-specific payload of a match event. Exactly one
// field is set, matching the event Type.
type EventData struct {
	Pass         *PassData         `json:"pass,omitempty"`
	Shot         *ShotData         `json:"shot,omitempty"`
	Card         *CardData         `json:"card,omitempty"`
	Substitution *SubstitutionData `json:"substitution,omitempty"`
	Stoppage     *StoppageData     `json:"stoppage,omitempty"`
	VarReview    *VarReviewData    `json:"varReview,omitempty"`
}

// PassData describes a pass event.
type PassData struct {
	RecipientID string `json:"recipientId,omitempty"`
	Completed   bool   `json:"completed"`
}

// ShotData describes a shot event.
type ShotData struct {
	OnTarget bool   `json:"onTarget"`
	Outcome  string `json:"outcome,omitempty"`
}

// CardData describes a disciplinary card event. Auto marks the synthetic
// red the engine issues alongside a second yellow.
type CardData struct {
	Card   CardType `json:"card"`
	Reason string   `json:"reason,omitempty"`
	Auto   bool     `json:"auto,omitempty"`
}

// SubstitutionData describes a substitution event.
type SubstitutionData struct {
	PlayerOffID string `json:"playerOffId"`
	PlayerOnID  string `json:"playerOnId"`
}

// StoppageData describes a game stoppage event.
type StoppageData struct {
	Reason string `json:"reason,omitempty"`
}

// VarReviewData describes a VAR review event.
type VarReviewData struct {
	Decision string `json:"decision,omitempty"`
}

// EventDraft is an unsubmitted event produced by the action flow. The
// reconciliation engine assigns the client id and timestamp on submit.
type EventDraft struct {
	Type       EventType  `json:"type"`
	TeamID     string     `json:"teamId"`
	PlayerID   string     `json:"playerId,omitempty"`
	Period     int        `json:"period"`
	MatchClock ClockStamp `json:"matchClock"`
	Data       EventData  `json:"data"`
	Notes      string     `json:"notes,omitempty"`
}

// Ack is the server's response to a submitted event.
type Ack struct {
	ClientID    uuid.UUID `json:"clientId"`
	ServerID    string    `json:"serverId,omitempty"`
	DuplicateOf string    `json:"duplicateOf,omitempty"`
	TeamStatus  string    `json:"teamStatus,omitempty"`
}

// PendingAck tracks an event between send and ack/reject.
type PendingAck struct {
	AttemptCount int       `json:"attemptCount"`
	SentAt       time.Time `json:"sentAt"`
}

// Player is a roster entry.
type Player struct {
	ID          string `json:"id"`
	TeamID      string `json:"teamId"`
	Name        string `json:"name"`
	ShirtNumber int    `json:"shirtNumber"`
}

// MatchSnapshot is the server's authoritative view of a match, fetched at
// session start and on resync.
type MatchSnapshot struct {
	MatchID            string       `json:"matchId"`
	Status             MatchPhase   `json:"status"`
	PeriodStartAnchor  *time.Time   `json:"periodStartAnchor,omitempty"`
	AccumulatedSeconds float64      `json:"accumulatedSeconds"`
	Clock              ClockState   `json:"clock"`
	Rosters            []Player     `json:"rosters"`
	Events             []MatchEvent `json:"events,omitempty"`
}
