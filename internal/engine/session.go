package engine

import (
	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

// Hydrate replaces the timeline with a server snapshot while carrying
// local unconfirmed work forward under its original client ids. Snapshots
// are last-write-wins; a slow fetch superseded by a newer one simply
// overwrites.
func (e *Engine) Hydrate(snap model.MatchSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var unconfirmed []model.MatchEvent
	for _, ev := range e.timeline.Events() {
		if !ev.Confirmed() && ev.DuplicateOf == "" {
			unconfirmed = append(unconfirmed, ev)
		}
	}

	snapshotIDs := make(map[uuid.UUID]struct{}, len(snap.Events))
	serverEvents := make([]model.MatchEvent, len(snap.Events))
	for i, ev := range snap.Events {
		ev.Status = model.DeliveryConfirmed
		serverEvents[i] = ev
		snapshotIDs[ev.ClientID] = struct{}{}
	}

	e.timeline.ReplaceAll(serverEvents)

	// Local events the server does not know yet go back on the timeline
	// and remain pending.
	for _, ev := range unconfirmed {
		if _, known := snapshotIDs[ev.ClientID]; known {
			// The server caught up; the snapshot copy is canonical.
			delete(e.pending, ev.ClientID)
			continue
		}
		e.timeline.Insert(ev)
	}

	// Drop bookkeeping for events that no longer exist.
	kept := e.undo[:0]
	for _, id := range e.undo {
		if _, ok := e.timeline.Get(id); ok {
			kept = append(kept, id)
		}
	}
	e.undo = kept

	for id := range e.pending {
		if ev, ok := e.timeline.Get(id); !ok || ev.Confirmed() {
			delete(e.pending, id)
		}
	}
	e.pendingDeletes = make(map[uuid.UUID]struct{})

	e.recomputeLocked()
	e.logger.Info("Timeline hydrated",
		"matchId", snap.MatchID, "serverEvents", len(serverEvents),
		"carriedPending", len(unconfirmed))
}

// CanReset reports whether a reset would be permitted right now. It
// returns a ResetBlockedError while pending acks or unsent journal
// entries exist and force is not set. Callers that reset remote state
// alongside the engine should check this before touching the server.
func (e *Engine) CanReset(force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pendingCount, unsent := e.unconfirmedLocked()
	if !force && (pendingCount > 0 || unsent > 0) {
		return &model.ResetBlockedError{PendingAcks: pendingCount, Unsent: unsent}
	}
	return nil
}

func (e *Engine) unconfirmedLocked() (pendingCount, unsent int) {
	pendingCount = len(e.pending)
	if e.journal != nil {
		if n, err := e.journal.UnsentCount(); err == nil {
			unsent = n
		}
	}
	return pendingCount, unsent
}

// Reset clears all session state. It is refused while pending acks or
// unsent journal entries exist, unless force is set — the audited admin
// override — in which case the override and operator are logged.
func (e *Engine) Reset(force bool, operatorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pendingCount, unsent := e.unconfirmedLocked()
	if pendingCount > 0 || unsent > 0 {
		if !force {
			return &model.ResetBlockedError{PendingAcks: pendingCount, Unsent: unsent}
		}
		e.logger.Warn("Force reset overriding unconfirmed work",
			"operatorId", operatorID, "pendingAcks", pendingCount, "unsent", unsent)
	}

	e.timeline.Clear()
	e.pending = make(map[uuid.UUID]model.PendingAck)
	e.pendingDeletes = make(map[uuid.UUID]struct{})
	e.undo = e.undo[:0]
	if e.journal != nil {
		if err := e.journal.Clear(); err != nil {
			e.logger.Warn("Failed to clear journal on reset", "error", err)
		}
	}
	e.recomputeLocked()

	e.logger.Info("Session state reset", "operatorId", operatorID, "forced", force)
	return nil
}

// ReplayJournal loads unconfirmed journal entries — events recorded
// offline or never acked — back onto the timeline and retransmits them
// under their original identity. Safe to call on startup and after every
// reconnect; the server deduplicates by client id.
func (e *Engine) ReplayJournal() int {
	if e.journal == nil {
		return 0
	}

	entries, err := e.journal.Unsent()
	if err != nil {
		e.logger.Warn("Failed to load journal for replay", "error", err)
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	replayed := 0
	for _, ev := range entries {
		if _, exists := e.timeline.Get(ev.ClientID); !exists {
			ev.Status = model.DeliveryPending
			e.timeline.Insert(ev)
		}
		pa := e.pending[ev.ClientID]
		pa.AttemptCount++
		pa.SentAt = e.clk.Now()
		e.pending[ev.ClientID] = pa

		if err := e.sender.SubmitEvent(ev); err != nil {
			e.logger.Warn("Journal replay transmission failed",
				"clientId", ev.ClientID, "error", err)
			continue
		}
		e.countReplay()
		replayed++
	}

	if len(entries) > 0 {
		e.recomputeLocked()
		e.logger.Info("Journal replayed", "entries", replayed, "loaded", len(entries))
	}
	return replayed
}
