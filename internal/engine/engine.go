// Package engine implements the event reconciliation engine: optimistic
// submission, pending-ack tracking, duplicate detection, undo (including
// cascading undo) and session hydration. All timeline mutation flows
// through the engine so its invariants hold under a reordering,
// at-least-once network.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/metric"

	"github.com/matchdesk/console/internal/discipline"
	"github.com/matchdesk/console/internal/model"
	"github.com/matchdesk/console/internal/timeline"
)

// Sender is the narrow transport surface the engine submits through.
type Sender interface {
	SubmitEvent(ev model.MatchEvent) error
	DeleteEvent(clientID uuid.UUID, serverID string) error
	Connected() bool
}

// Journal is the durable offline queue keyed by client id. Events created
// while disconnected survive a restart and are resent with the same
// identity.
type Journal interface {
	Append(ev model.MatchEvent) error
	MarkConfirmed(clientID uuid.UUID, serverID string) error
	Delete(clientID uuid.UUID) error
	Unsent() ([]model.MatchEvent, error)
	UnsentCount() (int, error)
	Clear() error
}

// Engine is the single writer of Timeline, PendingAck, UndoStack and the
// derived disciplinary state.
type Engine struct {
	mu sync.Mutex

	timeline *timeline.Timeline
	pending  map[uuid.UUID]model.PendingAck
	undo     []uuid.UUID
	disc     discipline.State

	// pendingDeletes tracks undo targets whose server-side delete is in
	// flight; local removal waits for the delete ack.
	pendingDeletes map[uuid.UUID]struct{}

	sender  Sender
	journal Journal
	clk     clockwork.Clock
	newID   func() uuid.UUID
	logger  *slog.Logger

	// OTel metrics
	submitted  metric.Int64Counter
	acksMerged metric.Int64Counter
	duplicates metric.Int64Counter
	replays    metric.Int64Counter
	ackLatency metric.Float64Histogram
}

// New creates an engine. The journal may be nil when offline durability is
// disabled.
func New(sender Sender, journal Journal, clk clockwork.Clock, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		timeline:       timeline.New(),
		pending:        make(map[uuid.UUID]model.PendingAck),
		disc:           discipline.State{},
		pendingDeletes: make(map[uuid.UUID]struct{}),
		sender:         sender,
		journal:        journal,
		clk:            clk,
		newID:          uuid.New,
		logger:         logger,
	}

	m := meter()
	var err error

	e.submitted, err = m.Int64Counter(
		"engine.events.submitted",
		metric.WithDescription("Events optimistically appended and transmitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating submitted counter: %w", err)
	}

	e.acksMerged, err = m.Int64Counter(
		"engine.acks.merged",
		metric.WithDescription("Server acks merged into the timeline"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating acks counter: %w", err)
	}

	e.duplicates, err = m.Int64Counter(
		"engine.events.duplicates",
		metric.WithDescription("Events flagged as duplicates locally or by the server"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duplicates counter: %w", err)
	}

	e.replays, err = m.Int64Counter(
		"engine.journal.replays",
		metric.WithDescription("Journal entries resent after a restart or reconnect"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating replays counter: %w", err)
	}

	e.ackLatency, err = m.Float64Histogram(
		"engine.ack.latency",
		metric.WithDescription("Seconds between send and ack merge"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ack latency histogram: %w", err)
	}

	return e, nil
}

// Events returns the timeline in canonical order.
func (e *Engine) Events() []model.MatchEvent {
	return e.timeline.Events()
}

// Discipline returns the current derived card state.
func (e *Engine) Discipline() discipline.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disc
}

// PendingCount returns the number of events awaiting an ack. Always
// visible to the operator so they never guess whether an action landed.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// UnsentCount returns the number of journal entries not yet transmitted.
func (e *Engine) UnsentCount() int {
	if e.journal == nil {
		return 0
	}
	n, err := e.journal.UnsentCount()
	if err != nil {
		e.logger.Warn("Failed to count unsent journal entries", "error", err)
		return 0
	}
	return n
}

// recomputeLocked re-derives disciplinary state from the timeline. Called
// after every mutation; no derived cache survives one.
func (e *Engine) recomputeLocked() {
	e.disc = discipline.Fold(e.timeline.Events())
}

// journalAppend writes an event to the offline journal, logging rather
// than failing the submission on journal errors.
func (e *Engine) journalAppend(ev model.MatchEvent) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(ev); err != nil {
		e.logger.Warn("Failed to journal event", "clientId", ev.ClientID, "error", err)
	}
}

func (e *Engine) journalConfirm(clientID uuid.UUID, serverID string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.MarkConfirmed(clientID, serverID); err != nil {
		e.logger.Warn("Failed to mark journal entry confirmed", "clientId", clientID, "error", err)
	}
}

func (e *Engine) journalDelete(clientID uuid.UUID) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Delete(clientID); err != nil {
		e.logger.Warn("Failed to delete journal entry", "clientId", clientID, "error", err)
	}
}

func (e *Engine) countSubmitted(n int64)  { e.submitted.Add(context.Background(), n) }
func (e *Engine) countAckMerged()         { e.acksMerged.Add(context.Background(), 1) }
func (e *Engine) countDuplicate()         { e.duplicates.Add(context.Background(), 1) }
func (e *Engine) countReplay()            { e.replays.Add(context.Background(), 1) }
func (e *Engine) observeAckLatency(s float64) {
	e.ackLatency.Record(context.Background(), s)
}
