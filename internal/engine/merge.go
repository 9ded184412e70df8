package engine

import (
	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

// MergeAck folds a server acknowledgment into the timeline. The merge is
// idempotent and keyed by client id: duplicate ack delivery and acks
// arriving out of send order leave the same state behind.
func (e *Engine) MergeAck(ack model.Ack) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, ok := e.timeline.Get(ack.ClientID)
	if !ok {
		// Ack for an event we no longer hold (undone, or superseded by a
		// hydration). At-least-once delivery makes this normal.
		e.logger.Debug("Ack for unknown client id", "clientId", ack.ClientID)
		return
	}

	if ev.Confirmed() || ev.DuplicateOf != "" {
		return
	}

	if pa, inFlight := e.pending[ack.ClientID]; inFlight {
		e.observeAckLatency(e.clk.Now().Sub(pa.SentAt).Seconds())
	}
	delete(e.pending, ack.ClientID)

	if ack.DuplicateOf != "" {
		// The server already holds this action; highlight the local row
		// as a duplicate instead of creating a second visible entry.
		e.timeline.Update(ack.ClientID, func(stored *model.MatchEvent) {
			stored.DuplicateOf = ack.DuplicateOf
			stored.Status = model.DeliveryConfirmed
		})
		e.journalDelete(ack.ClientID)
		e.countDuplicate()
		e.logger.Info("Server flagged duplicate event",
			"clientId", ack.ClientID, "duplicateOf", ack.DuplicateOf)
		return
	}

	e.timeline.Update(ack.ClientID, func(stored *model.MatchEvent) {
		stored.ServerID = ack.ServerID
		stored.Status = model.DeliveryConfirmed
	})
	e.journalConfirm(ack.ClientID, ack.ServerID)
	e.countAckMerged()
}

// Reject marks a server-rejected event. The entry is never silently
// dropped; it stays on the timeline until the operator deletes or retries.
func (e *Engine) Reject(clientID uuid.UUID, reason string, fields map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.pending, clientID)
	found := e.timeline.Update(clientID, func(stored *model.MatchEvent) {
		stored.Status = model.DeliveryRejected
	})
	if !found {
		return
	}
	e.logger.Warn("Event rejected by server",
		"clientId", clientID, "reason", reason, "fieldErrors", len(fields))
}

// HandleEventCreated merges a server-pushed event. Our own submissions
// echo back with their client id and are ignored; events from other
// sources are inserted as confirmed.
func (e *Engine) HandleEventCreated(ev model.MatchEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.timeline.Get(ev.ClientID); exists {
		return
	}
	ev.Status = model.DeliveryConfirmed
	e.timeline.Insert(ev)
	e.recomputeLocked()
}

// HandleEventDeleted removes an event deleted server-side (admin delete or
// a delete we requested that was broadcast before its ack).
func (e *Engine) HandleEventDeleted(serverID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range e.timeline.Events() {
		if ev.ServerID == serverID {
			e.removeLocked(ev.ClientID)
			e.recomputeLocked()
			return
		}
	}
}

// HandleDeleteAck completes an undo whose target needed a server-side
// delete: only now is the entry removed locally.
func (e *Engine) HandleDeleteAck(clientID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, waiting := e.pendingDeletes[clientID]; !waiting {
		return
	}
	delete(e.pendingDeletes, clientID)
	e.removeLocked(clientID)
	e.recomputeLocked()
}

// removeLocked deletes an event from the timeline, the pending-ack map,
// the journal and the undo stack.
func (e *Engine) removeLocked(clientID uuid.UUID) {
	e.timeline.Remove(clientID)
	delete(e.pending, clientID)
	e.journalDelete(clientID)

	for i := len(e.undo) - 1; i >= 0; i-- {
		if e.undo[i] == clientID {
			e.undo = append(e.undo[:i], e.undo[i+1:]...)
			break
		}
	}
}
