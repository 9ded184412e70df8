package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchdesk/console/internal/model"
)

type fakeSender struct {
	sent      []model.MatchEvent
	deleted   []uuid.UUID
	connected bool
	sendErr   error
	deleteErr error
}

func (f *fakeSender) SubmitEvent(ev model.MatchEvent) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeSender) DeleteEvent(clientID uuid.UUID, _ string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, clientID)
	return nil
}

func (f *fakeSender) Connected() bool { return f.connected }

type fakeJournal struct {
	entries   map[uuid.UUID]model.MatchEvent
	confirmed map[uuid.UUID]string
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		entries:   make(map[uuid.UUID]model.MatchEvent),
		confirmed: make(map[uuid.UUID]string),
	}
}

func (j *fakeJournal) Append(ev model.MatchEvent) error {
	j.entries[ev.ClientID] = ev
	return nil
}

func (j *fakeJournal) MarkConfirmed(clientID uuid.UUID, serverID string) error {
	j.confirmed[clientID] = serverID
	return nil
}

func (j *fakeJournal) Delete(clientID uuid.UUID) error {
	delete(j.entries, clientID)
	delete(j.confirmed, clientID)
	return nil
}

func (j *fakeJournal) Unsent() ([]model.MatchEvent, error) {
	var out []model.MatchEvent
	for id, ev := range j.entries {
		if _, ok := j.confirmed[id]; !ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (j *fakeJournal) UnsentCount() (int, error) {
	entries, _ := j.Unsent()
	return len(entries), nil
}

func (j *fakeJournal) Clear() error {
	j.entries = make(map[uuid.UUID]model.MatchEvent)
	j.confirmed = make(map[uuid.UUID]string)
	return nil
}

func newTestEngine(t *testing.T, sender *fakeSender, journal Journal) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(sender, journal, clockwork.NewFakeClock(), logger)
	require.NoError(t, err)
	return e
}

func yellowDraft(playerID string, clock model.ClockStamp) model.EventDraft {
	return model.EventDraft{
		Type:       model.EventTypeCard,
		TeamID:     "home",
		PlayerID:   playerID,
		Period:     1,
		MatchClock: clock,
		Data:       model.EventData{Card: &model.CardData{Card: model.CardYellow}},
	}
}

func passDraft(clock model.ClockStamp) model.EventDraft {
	return model.EventDraft{
		Type:       model.EventTypePass,
		TeamID:     "home",
		PlayerID:   "p1",
		Period:     1,
		MatchClock: clock,
		Data:       model.EventData{Pass: &model.PassData{Completed: true}},
	}
}

func TestSubmit_OptimisticAppend(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ClientID)
	assert.Equal(t, model.DeliveryPending, events[0].Status)
	assert.Equal(t, 1, e.PendingCount())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, id, sender.sent[0].ClientID)
}

func TestSubmit_TransmissionFailureKeepsEventPending(t *testing.T) {
	sender := &fakeSender{connected: false, sendErr: errors.New("broken pipe")}
	journal := newFakeJournal()
	e := newTestEngine(t, sender, journal)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err, "submission never fails on transport errors")

	assert.Equal(t, 1, e.PendingCount())
	assert.Equal(t, 1, e.UnsentCount())
	_, journaled := journal.entries[id]
	assert.True(t, journaled)
}

func TestSubmit_LocalDuplicateSuppressed(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	first, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	_, err = e.Submit(passDraft(10_000))
	var dupErr *model.DuplicateEventError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, first, dupErr.ExistingClientID)
	assert.Len(t, e.Events(), 1)
}

func TestSubmit_SecondYellowEscalates(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	_, err := e.Submit(yellowDraft("p1", 10_000))
	require.NoError(t, err)
	secondID, err := e.Submit(yellowDraft("p1", 50_000))
	require.NoError(t, err)

	events := e.Events()
	require.Len(t, events, 3)
	assert.Equal(t, model.CardYellow, events[0].Data.Card.Card)
	assert.Equal(t, model.CardYellowSecond, events[1].Data.Card.Card)
	assert.Equal(t, secondID, events[1].ClientID)
	assert.Equal(t, model.CardRed, events[2].Data.Card.Card)
	assert.True(t, events[2].Data.Card.Auto)

	// Deterministic 1ms spacing between the pair.
	assert.Equal(t, events[1].MatchClock+1, events[2].MatchClock)

	assert.True(t, e.Discipline().Expelled("p1"))

	// A third submission for the expelled player is refused.
	_, err = e.Submit(yellowDraft("p1", 90_000))
	var expErr *model.PlayerExpelledError
	require.ErrorAs(t, err, &expErr)
}

func TestMergeAck_Idempotent(t *testing.T) {
	sender := &fakeSender{connected: true}
	journal := newFakeJournal()
	e := newTestEngine(t, sender, journal)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	ack := model.Ack{ClientID: id, ServerID: "srv-1"}
	e.MergeAck(ack)
	e.MergeAck(ack)
	e.MergeAck(model.Ack{ClientID: id, ServerID: "srv-other"})

	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "srv-1", events[0].ServerID, "first ack wins, repeats ignored")
	assert.Zero(t, e.PendingCount())
	assert.Equal(t, "srv-1", journal.confirmed[id])
}

func TestMergeAck_UnknownClientIDIgnored(t *testing.T) {
	e := newTestEngine(t, &fakeSender{connected: true}, nil)
	e.MergeAck(model.Ack{ClientID: uuid.New(), ServerID: "srv-1"})
	assert.Empty(t, e.Events())
}

func TestMergeAck_ServerDuplicate(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	e.MergeAck(model.Ack{ClientID: id, DuplicateOf: "srv-77"})

	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "srv-77", events[0].DuplicateOf)
	assert.Zero(t, e.PendingCount())
}

func TestReject_EntryStaysVisible(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	e.Reject(id, "unknown player", map[string]string{"playerId": "not on roster"})

	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.DeliveryRejected, events[0].Status)
	assert.Zero(t, e.PendingCount())
}

func TestRetry_KeepsClientID(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	e.Reject(id, "transient", nil)

	require.NoError(t, e.Retry(id))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, id, sender.sent[1].ClientID)

	events := e.Events()
	assert.Equal(t, model.DeliveryPending, events[0].Status)
}

func TestUndo_UnconfirmedAfterRejectRemovesLocally(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	// Reject clears the pending ack; the server holds nothing.
	e.Reject(id, "bad", nil)

	require.NoError(t, e.Undo())
	assert.Empty(t, e.Events())
	assert.Empty(t, sender.deleted, "local-only undo must not call the server")
}

func TestUndo_ConfirmedWaitsForDeleteAck(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	e.MergeAck(model.Ack{ClientID: id, ServerID: "srv-1"})

	require.NoError(t, e.Undo())
	assert.Len(t, e.Events(), 1, "entry stays until the delete ack")
	require.Len(t, sender.deleted, 1)

	e.HandleDeleteAck(id)
	assert.Empty(t, e.Events())
}

func TestUndo_DisconnectedRefusedForConfirmedEvent(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	e.MergeAck(model.Ack{ClientID: id, ServerID: "srv-1"})

	sender.connected = false
	err = e.Undo()
	var undoErr *model.UndoUnavailableError
	require.ErrorAs(t, err, &undoErr)
	assert.Len(t, e.Events(), 1)
}

func TestUndo_CascadesAutoRedPair(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	_, err := e.Submit(yellowDraft("p1", 10_000))
	require.NoError(t, err)
	_, err = e.Submit(yellowDraft("p1", 50_000))
	require.NoError(t, err)
	require.Len(t, e.Events(), 3)

	// All three pending: undo of the top (auto red) takes the paired second
	// yellow with it, via server deletes since acks are in flight.
	require.NoError(t, e.Undo())
	assert.Len(t, sender.deleted, 2)

	events := e.Events()
	for _, ev := range events[1:] {
		e.HandleDeleteAck(ev.ClientID)
	}

	events = e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.CardYellow, events[0].Data.Card.Card)
	assert.False(t, e.Discipline().Expelled("p1"), "expulsion reversed with the pair")
}

func TestUndo_NothingToUndo(t *testing.T) {
	e := newTestEngine(t, &fakeSender{connected: true}, nil)
	var undoErr *model.UndoUnavailableError
	require.ErrorAs(t, e.Undo(), &undoErr)
}

func TestHandleEventCreated_IgnoresOwnEcho(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	echo := sender.sent[0]
	echo.ServerID = "srv-1"
	e.HandleEventCreated(echo)
	assert.Len(t, e.Events(), 1)

	other := model.MatchEvent{
		ClientID:   uuid.New(),
		ServerID:   "srv-2",
		Type:       model.EventTypeShot,
		TeamID:     "away",
		Period:     1,
		MatchClock: 20_000,
		Data:       model.EventData{Shot: &model.ShotData{OnTarget: true}},
	}
	e.HandleEventCreated(other)
	require.Len(t, e.Events(), 2)
	assert.Equal(t, id, e.Events()[0].ClientID)
}

func TestHandleEventDeleted_RemovesByServerID(t *testing.T) {
	e := newTestEngine(t, &fakeSender{connected: true}, nil)

	ev := model.MatchEvent{
		ClientID:   uuid.New(),
		ServerID:   "srv-9",
		Type:       model.EventTypePass,
		TeamID:     "home",
		Period:     1,
		MatchClock: 10_000,
	}
	e.HandleEventCreated(ev)
	require.Len(t, e.Events(), 1)

	e.HandleEventDeleted("srv-9")
	assert.Empty(t, e.Events())

	e.HandleEventDeleted("srv-unknown")
}

func TestHydrate_CarriesUnconfirmedForward(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	confirmedID, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	e.MergeAck(model.Ack{ClientID: confirmedID, ServerID: "srv-1"})

	pendingID, err := e.Submit(passDraft(20_000))
	require.NoError(t, err)

	snap := model.MatchSnapshot{
		MatchID: "m-1",
		Events: []model.MatchEvent{
			{ClientID: confirmedID, ServerID: "srv-1", Type: model.EventTypePass,
				TeamID: "home", Period: 1, MatchClock: 10_000},
			{ClientID: uuid.New(), ServerID: "srv-5", Type: model.EventTypeShot,
				TeamID: "away", Period: 1, MatchClock: 15_000},
		},
	}
	e.Hydrate(snap)

	events := e.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 1, e.PendingCount(), "pending local event survives hydration")

	got, ok := e.timeline.Get(pendingID)
	require.True(t, ok)
	assert.Equal(t, model.DeliveryPending, got.Status)
}

func TestHydrate_SnapshotAbsorbsCaughtUpEvent(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	// The snapshot already contains our submission: its copy is canonical
	// and the pending ack is dropped.
	e.Hydrate(model.MatchSnapshot{Events: []model.MatchEvent{
		{ClientID: id, ServerID: "srv-1", Type: model.EventTypePass,
			TeamID: "home", Period: 1, MatchClock: 10_000},
	}})

	assert.Zero(t, e.PendingCount())
	events := e.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "srv-1", events[0].ServerID)
}

func TestReset_BlockedWithPendingWork(t *testing.T) {
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, nil)

	_, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	err = e.Reset(false, "op-1")
	var blocked *model.ResetBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 1, blocked.PendingAcks)

	require.NoError(t, e.Reset(true, "op-1"))
	assert.Empty(t, e.Events())
	assert.Zero(t, e.PendingCount())
}

func TestCanReset_GuardsWithoutMutating(t *testing.T) {
	journal := newFakeJournal()
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, journal)

	require.NoError(t, e.CanReset(false), "clean session passes")

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	err = e.CanReset(false)
	var blocked *model.ResetBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 1, blocked.PendingAcks)
	assert.Equal(t, 1, blocked.Unsent)

	// The dry run leaves the session untouched.
	_, ok := e.timeline.Get(id)
	assert.True(t, ok)
	assert.Equal(t, 1, e.PendingCount())

	assert.NoError(t, e.CanReset(true), "force bypasses the guard")
}

func TestReplayJournal_ResendsUnderOriginalIdentity(t *testing.T) {
	journal := newFakeJournal()
	sender := &fakeSender{connected: false, sendErr: errors.New("down")}
	e := newTestEngine(t, sender, journal)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)
	require.Empty(t, sender.sent)

	sender.sendErr = nil
	sender.connected = true
	replayed := e.ReplayJournal()

	assert.Equal(t, 1, replayed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, id, sender.sent[0].ClientID, "replay keeps the client id")
	assert.Len(t, e.Events(), 1, "replay does not duplicate the timeline entry")
}

func TestReplayJournal_AfterRestart(t *testing.T) {
	journal := newFakeJournal()
	offline := &fakeSender{connected: false, sendErr: errors.New("down")}
	first := newTestEngine(t, offline, journal)

	id, err := first.Submit(passDraft(10_000))
	require.NoError(t, err)

	// A fresh engine over the same journal stands in for a restart.
	sender := &fakeSender{connected: true}
	second := newTestEngine(t, sender, journal)
	require.Empty(t, second.Events())

	replayed := second.ReplayJournal()
	assert.Equal(t, 1, replayed)
	events := second.Events()
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ClientID)
	assert.Equal(t, model.DeliveryPending, events[0].Status)

	second.MergeAck(model.Ack{ClientID: id, ServerID: "srv-1"})
	unsent, err := journal.UnsentCount()
	require.NoError(t, err)
	assert.Zero(t, unsent)
}

func TestPendingAckTracksAttempts(t *testing.T) {
	journal := newFakeJournal()
	sender := &fakeSender{connected: true}
	e := newTestEngine(t, sender, journal)

	id, err := e.Submit(passDraft(10_000))
	require.NoError(t, err)

	e.mu.Lock()
	attempts := e.pending[id].AttemptCount
	e.mu.Unlock()
	assert.Equal(t, 1, attempts)

	require.NoError(t, e.Retry(id))
	e.mu.Lock()
	attempts = e.pending[id].AttemptCount
	e.mu.Unlock()
	assert.Equal(t, 2, attempts)
}
