// Package discipline derives per-player card state as a pure fold over the
// card subsequence of the canonical timeline. No cache survives a timeline
// mutation; callers re-fold after every change.
package discipline

import "github.com/matchdesk/console/internal/model"

// PlayerState is the accumulated card state for one player.
type PlayerState struct {
	YellowCount int
	HasRed      bool

	// suppressNextRed absorbs the auto-issued red that follows a second
	// yellow so the pair does not double-count.
	suppressNextRed int
}

// Expelled reports whether the player must leave the pitch.
func (s PlayerState) Expelled() bool {
	return s.HasRed || s.YellowCount >= 2
}

// State maps player id to accumulated card state.
type State map[string]PlayerState

// Expelled reports whether the given player is expelled. Unknown players
// are not expelled.
func (st State) Expelled(playerID string) bool {
	return st[playerID].Expelled()
}

// Fold computes disciplinary state from events in canonical order. Events
// that are not cards, or cards without a player, are skipped.
func Fold(events []model.MatchEvent) State {
	st := make(State)
	for i := range events {
		ev := &events[i]
		if ev.Type != model.EventTypeCard || ev.Data.Card == nil || ev.PlayerID == "" {
			continue
		}

		ps := st[ev.PlayerID]
		switch ev.Data.Card.Card {
		case model.CardYellow:
			ps.YellowCount++
		case model.CardYellowSecond:
			ps.YellowCount++
			ps.HasRed = true
			ps.suppressNextRed++
		case model.CardRed:
			if ps.suppressNextRed > 0 {
				ps.suppressNextRed--
			} else {
				ps.HasRed = true
			}
		case model.CardCancelled:
			// Reverse the most recent still-active card: a red paired with
			// a yellow comes off together, otherwise whichever is present.
			// Decrements floor at zero; a stray cancel is a no-op.
			switch {
			case ps.HasRed && ps.YellowCount > 0:
				ps.HasRed = false
				ps.YellowCount--
			case ps.HasRed:
				ps.HasRed = false
			case ps.YellowCount > 0:
				ps.YellowCount--
			}
		}
		st[ev.PlayerID] = ps
	}
	return st
}
