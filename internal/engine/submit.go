package engine

import (
	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

// Submit validates a draft, optimistically appends it to the timeline,
// records a pending ack and transmits it. The returned client id stays
// stable across retries. A second yellow for a player escalates into a
// Yellow(Second) plus a synthetic Red as one unit.
func (e *Engine) Submit(draft model.EventDraft) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if draft.PlayerID != "" && e.disc.Expelled(draft.PlayerID) {
		return uuid.Nil, &model.PlayerExpelledError{PlayerID: draft.PlayerID}
	}

	if existing, dup := e.timeline.FindDuplicate(draft.TeamID, draft.Type, draft.Period, draft.MatchClock); dup {
		e.countDuplicate()
		return uuid.Nil, &model.DuplicateEventError{ExistingClientID: existing}
	}

	events := e.resolveEscalationLocked(draft)

	primary := events[0].ClientID
	for _, ev := range events {
		stored := e.timeline.Insert(ev)
		e.pending[stored.ClientID] = model.PendingAck{AttemptCount: 1, SentAt: e.clk.Now()}
		e.undo = append(e.undo, stored.ClientID)
		e.journalAppend(stored)

		if err := e.sender.SubmitEvent(stored); err != nil {
			// The entry stays pending and journaled; replay picks it up.
			e.logger.Warn("Submit transmission failed, event queued",
				"clientId", stored.ClientID, "error", err)
		}
	}

	e.countSubmitted(int64(len(events)))
	e.recomputeLocked()
	return primary, nil
}

// resolveEscalationLocked turns a plain yellow for a player who already
// holds one into the Yellow(Second)+Red pair, offset by 1ms and 2ms from
// the submitted clock so ordering stays deterministic.
func (e *Engine) resolveEscalationLocked(draft model.EventDraft) []model.MatchEvent {
	isYellow := draft.Type == model.EventTypeCard &&
		draft.Data.Card != nil &&
		draft.Data.Card.Card == model.CardYellow

	if !isYellow || draft.PlayerID == "" || e.disc[draft.PlayerID].YellowCount != 1 {
		return []model.MatchEvent{e.buildEvent(draft)}
	}

	second := draft
	second.MatchClock = draft.MatchClock + 1
	second.Data = model.EventData{Card: &model.CardData{
		Card:   model.CardYellowSecond,
		Reason: draft.Data.Card.Reason,
	}}

	red := draft
	red.MatchClock = draft.MatchClock + 2
	red.Data = model.EventData{Card: &model.CardData{
		Card: model.CardRed,
		Auto: true,
	}}

	e.logger.Info("Second yellow escalated to expulsion",
		"playerId", draft.PlayerID, "teamId", draft.TeamID, "period", draft.Period)

	return []model.MatchEvent{e.buildEvent(second), e.buildEvent(red)}
}

// buildEvent stamps a draft with identity, time and pending status.
func (e *Engine) buildEvent(draft model.EventDraft) model.MatchEvent {
	return model.MatchEvent{
		ClientID:   e.newID(),
		Type:       draft.Type,
		TeamID:     draft.TeamID,
		PlayerID:   draft.PlayerID,
		Period:     draft.Period,
		MatchClock: draft.MatchClock,
		Data:       draft.Data,
		Notes:      draft.Notes,
		Timestamp:  e.clk.Now(),
		Status:     model.DeliveryPending,
	}
}

// Retry re-transmits a pending or rejected event under its original client
// id.
func (e *Engine) Retry(clientID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, ok := e.timeline.Get(clientID)
	if !ok {
		return &model.UndoUnavailableError{Reason: "no such event"}
	}
	if ev.Confirmed() {
		return nil
	}

	pa := e.pending[clientID]
	pa.AttemptCount++
	pa.SentAt = e.clk.Now()
	e.pending[clientID] = pa

	e.timeline.Update(clientID, func(stored *model.MatchEvent) {
		stored.Status = model.DeliveryPending
	})

	ev.Status = model.DeliveryPending
	if err := e.sender.SubmitEvent(ev); err != nil {
		return &model.TransportError{Op: "retry", Err: err}
	}
	return nil
}

// UpdateNotes edits the free-text notes of an event in place.
func (e *Engine) UpdateNotes(clientID uuid.UUID, notes string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Update(clientID, func(ev *model.MatchEvent) {
		ev.Notes = notes
	})
}
