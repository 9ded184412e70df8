package engine

import (
	"github.com/matchdesk/console/internal/model"
)

// Undo reverses the operator's most recent action. Events unknown to the
// server are deleted purely locally; anything the server may hold is
// deleted remotely first, with local removal deferred to the delete ack.
// Undoing an auto-issued red also removes its paired second yellow as one
// atomic unit — removing only the red would leave a phantom second yellow.
func (e *Engine) Undo() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pendingDeletes) > 0 {
		return &model.UndoUnavailableError{Reason: "previous undo still awaiting delete ack"}
	}

	// Drop stale stack entries whose events are already gone.
	var target model.MatchEvent
	for {
		if len(e.undo) == 0 {
			return &model.UndoUnavailableError{Reason: "nothing to undo"}
		}
		top := e.undo[len(e.undo)-1]
		ev, ok := e.timeline.Get(top)
		if ok {
			target = ev
			break
		}
		e.undo = e.undo[:len(e.undo)-1]
	}

	unit := []model.MatchEvent{target}
	if pair, ok := e.cascadePairLocked(target); ok {
		unit = append(unit, pair)
	}

	needsRemote := false
	for _, ev := range unit {
		_, inFlight := e.pending[ev.ClientID]
		if ev.ServerID != "" || inFlight {
			needsRemote = true
		}
	}

	if needsRemote && !e.sender.Connected() {
		// Never assume a remote delete succeeded while disconnected.
		return &model.UndoUnavailableError{Reason: "disconnected; undo requires server confirmation"}
	}

	for _, ev := range unit {
		_, inFlight := e.pending[ev.ClientID]
		if ev.ServerID == "" && !inFlight {
			e.removeLocked(ev.ClientID)
			continue
		}
		if err := e.sender.DeleteEvent(ev.ClientID, ev.ServerID); err != nil {
			return &model.TransportError{Op: "undo delete", Err: err}
		}
		e.pendingDeletes[ev.ClientID] = struct{}{}
	}

	e.recomputeLocked()
	return nil
}

// cascadePairLocked returns the Yellow(Second) paired with an auto-issued
// red: the event immediately preceding it in canonical order, for the same
// player, team and period.
func (e *Engine) cascadePairLocked(target model.MatchEvent) (model.MatchEvent, bool) {
	if target.Type != model.EventTypeCard ||
		target.Data.Card == nil ||
		target.Data.Card.Card != model.CardRed ||
		!target.Data.Card.Auto {
		return model.MatchEvent{}, false
	}

	events := e.timeline.Events()
	for i := range events {
		if events[i].ClientID != target.ClientID {
			continue
		}
		if i == 0 {
			return model.MatchEvent{}, false
		}
		prev := events[i-1]
		if prev.Type == model.EventTypeCard &&
			prev.Data.Card != nil &&
			prev.Data.Card.Card == model.CardYellowSecond &&
			prev.PlayerID == target.PlayerID &&
			prev.TeamID == target.TeamID &&
			prev.Period == target.Period {
			return prev, true
		}
		return model.MatchEvent{}, false
	}
	return model.MatchEvent{}, false
}
