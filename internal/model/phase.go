package model

import "fmt"

// MatchPhase is the match-level period state.
type MatchPhase uint8

const (
	PhasePending MatchPhase = iota
	PhaseLiveFirstHalf
	PhaseHalftime
	PhaseLiveSecondHalf
	PhaseFulltime
	PhaseLiveExtraFirst
	PhaseExtraHalftime
	PhaseLiveExtraSecond
	PhasePenalties
	PhaseCompleted
	PhaseAbandoned
)

var phaseNames = map[MatchPhase]string{
	PhasePending:         "pending",
	PhaseLiveFirstHalf:   "live_first_half",
	PhaseHalftime:        "halftime",
	PhaseLiveSecondHalf:  "live_second_half",
	PhaseFulltime:        "fulltime",
	PhaseLiveExtraFirst:  "live_extra_first",
	PhaseExtraHalftime:   "extra_halftime",
	PhaseLiveExtraSecond: "live_extra_second",
	PhasePenalties:       "penalties",
	PhaseCompleted:       "completed",
	PhaseAbandoned:       "abandoned",
}

// String returns the wire name of the phase.
func (p MatchPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// ParseMatchPhase converts a wire name back to a MatchPhase.
func ParseMatchPhase(s string) (MatchPhase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown match phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p MatchPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *MatchPhase) UnmarshalText(text []byte) error {
	parsed, err := ParseMatchPhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Live reports whether the phase is one of the live playing periods.
func (p MatchPhase) Live() bool {
	switch p {
	case PhaseLiveFirstHalf, PhaseLiveSecondHalf, PhaseLiveExtraFirst, PhaseLiveExtraSecond:
		return true
	default:
		return false
	}
}

// Terminal reports whether the phase has no exits.
func (p MatchPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// Period returns the period number events in this phase carry.
// Halves are 1 and 2, extra-time halves 3 and 4, penalties 5.
func (p MatchPhase) Period() int {
	switch p {
	case PhaseLiveFirstHalf, PhaseHalftime:
		return 1
	case PhaseLiveSecondHalf, PhaseFulltime:
		return 2
	case PhaseLiveExtraFirst, PhaseExtraHalftime:
		return 3
	case PhaseLiveExtraSecond:
		return 4
	case PhasePenalties:
		return 5
	default:
		return 0
	}
}
