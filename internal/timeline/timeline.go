// Package timeline holds the canonically ordered sequence of match events.
// Canonical order is (period asc, match clock asc, insertion index asc) —
// never arrival order, since the network may reorder delivery.
package timeline

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

type entry struct {
	event model.MatchEvent
	seq   uint64
	// offsetMs is the collision offset added to the event's clock so ties
	// at an identical display clock stay distinguishable. The semantic
	// clock is event.MatchClock minus offsetMs.
	offsetMs int64
}

// Timeline is a single-writer, many-reader ordered event container. All
// mutation flows through the reconciliation engine.
type Timeline struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[uuid.UUID]int // index into entries
	nextSeq uint64
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{
		byID: make(map[uuid.UUID]int),
	}
}

// less orders entries canonically.
func less(a, b *entry) bool {
	if a.event.Period != b.event.Period {
		return a.event.Period < b.event.Period
	}
	if a.event.MatchClock != b.event.MatchClock {
		return a.event.MatchClock < b.event.MatchClock
	}
	return a.seq < b.seq
}

// Insert adds an event in canonical position and returns the stored copy.
// If another entry in the same period already occupies the same clock, the
// new event's clock is pushed forward by 1ms steps until unique.
func (t *Timeline) Insert(ev model.MatchEvent) model.MatchEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	var offset int64
	for t.clockTakenLocked(ev.Period, ev.MatchClock) {
		ev.MatchClock++
		offset++
	}

	e := entry{event: ev, seq: t.nextSeq, offsetMs: offset}
	t.nextSeq++

	pos := sort.Search(len(t.entries), func(i int) bool {
		return !less(&t.entries[i], &e)
	})
	t.entries = append(t.entries, entry{})
	copy(t.entries[pos+1:], t.entries[pos:])
	t.entries[pos] = e
	t.reindexLocked(pos)

	return ev
}

// Remove deletes the event with the given client id.
func (t *Timeline) Remove(clientID uuid.UUID) (model.MatchEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[clientID]
	if !ok {
		return model.MatchEvent{}, false
	}
	ev := t.entries[idx].event
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	delete(t.byID, clientID)
	t.reindexLocked(idx)
	return ev, true
}

// Get returns a copy of the event with the given client id.
func (t *Timeline) Get(clientID uuid.UUID) (model.MatchEvent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, ok := t.byID[clientID]
	if !ok {
		return model.MatchEvent{}, false
	}
	return t.entries[idx].event, true
}

// Update applies fn to the stored event with the given client id. Fields
// that participate in ordering (period, clock) must not be changed by fn.
func (t *Timeline) Update(clientID uuid.UUID, fn func(*model.MatchEvent)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.byID[clientID]
	if !ok {
		return false
	}
	fn(&t.entries[idx].event)
	return true
}

// Events returns all events in canonical order.
func (t *Timeline) Events() []model.MatchEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.MatchEvent, len(t.entries))
	for i := range t.entries {
		out[i] = t.entries[i].event
	}
	return out
}

// Len returns the number of events.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// FindDuplicate looks for an existing entry with the same team, type,
// period and semantic clock (collision offsets are ignored so a retried
// draft still matches the entry it collided into).
func (t *Timeline) FindDuplicate(teamID string, typ model.EventType, period int, clock model.ClockStamp) (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.entries {
		e := &t.entries[i]
		if e.event.TeamID == teamID &&
			e.event.Type == typ &&
			e.event.Period == period &&
			e.event.MatchClock-model.ClockStamp(e.offsetMs) == clock {
			return e.event.ClientID, true
		}
	}
	return uuid.Nil, false
}

// ReplaceAll swaps the timeline contents for a hydrated snapshot. Events
// are re-sequenced in the order given, then kept canonically sorted.
func (t *Timeline) ReplaceAll(events []model.MatchEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]entry, 0, len(events))
	t.byID = make(map[uuid.UUID]int, len(events))
	t.nextSeq = 0

	for _, ev := range events {
		t.entries = append(t.entries, entry{event: ev, seq: t.nextSeq})
		t.nextSeq++
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return less(&t.entries[i], &t.entries[j])
	})
	t.reindexLocked(0)
}

// Clear removes all events.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
	t.byID = make(map[uuid.UUID]int)
	t.nextSeq = 0
}

func (t *Timeline) clockTakenLocked(period int, clock model.ClockStamp) bool {
	for i := range t.entries {
		if t.entries[i].event.Period == period && t.entries[i].event.MatchClock == clock {
			return true
		}
	}
	return false
}

// reindexLocked rebuilds byID from position from onward.
func (t *Timeline) reindexLocked(from int) {
	for i := from; i < len(t.entries); i++ {
		t.byID[t.entries[i].event.ClientID] = i
	}
}
