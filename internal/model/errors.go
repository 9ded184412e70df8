package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotConnected is returned when an operation needs the transport channel
// and it is down.
var ErrNotConnected = errors.New("transport not connected")

// TransportError wraps a network failure. Entries affected by one stay
// pending and are retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DuplicateEventError reports that a draft matches an existing timeline
// entry on (team, type, period, clock). It is a reconciliation outcome,
// not a hard failure.
type DuplicateEventError struct {
	ExistingClientID uuid.UUID
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("duplicate of event %s", e.ExistingClientID)
}

// ValidationError is a server-rejected draft with field-level reasons.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s (%d field errors)", e.Message, len(e.Fields))
}

// TransitionGuardError reports a phase change blocked by a minimum-duration
// guard, carrying the remaining time.
type TransitionGuardError struct {
	From      MatchPhase
	To        MatchPhase
	Remaining time.Duration
}

func (e *TransitionGuardError) Error() string {
	return fmt.Sprintf("transition %s -> %s blocked: %s remaining", e.From, e.To, e.Remaining)
}

// PlayerExpelledError blocks any submission for a player already sent off.
type PlayerExpelledError struct {
	PlayerID string
}

func (e *PlayerExpelledError) Error() string {
	return fmt.Sprintf("player %s is expelled", e.PlayerID)
}

// UndoUnavailableError reports that undo cannot proceed, either because
// nothing is undoable or because a server-side delete would be required
// while disconnected.
type UndoUnavailableError struct {
	Reason string
}

func (e *UndoUnavailableError) Error() string {
	return fmt.Sprintf("undo unavailable: %s", e.Reason)
}

// ResetBlockedError refuses a local reset while unconfirmed work exists.
type ResetBlockedError struct {
	PendingAcks int
	Unsent      int
}

func (e *ResetBlockedError) Error() string {
	return fmt.Sprintf("reset blocked: %d pending acks, %d unsent events", e.PendingAcks, e.Unsent)
}
