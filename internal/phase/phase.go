// Package phase implements the match period state machine with
// minimum-duration guards on forward transitions out of live phases.
package phase

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matchdesk/console/internal/model"
)

// transitions is the closed set of allowed phase changes. Phases absent
// from the map are terminal.
var transitions = map[model.MatchPhase][]model.MatchPhase{
	model.PhasePending:         {model.PhaseLiveFirstHalf},
	model.PhaseLiveFirstHalf:   {model.PhaseHalftime},
	model.PhaseHalftime:        {model.PhaseLiveSecondHalf},
	model.PhaseLiveSecondHalf:  {model.PhaseFulltime},
	model.PhaseFulltime:        {model.PhaseLiveExtraFirst, model.PhasePenalties, model.PhaseCompleted},
	model.PhaseLiveExtraFirst:  {model.PhaseExtraHalftime},
	model.PhaseExtraHalftime:   {model.PhaseLiveExtraSecond},
	model.PhaseLiveExtraSecond: {model.PhasePenalties, model.PhaseCompleted},
	model.PhasePenalties:       {model.PhaseCompleted},
}

// minimumDurations guards forward transitions out of live phases.
var minimumDurations = map[model.MatchPhase]time.Duration{
	model.PhaseLiveFirstHalf:   45 * time.Minute,
	model.PhaseLiveSecondHalf:  45 * time.Minute,
	model.PhaseLiveExtraFirst:  15 * time.Minute,
	model.PhaseLiveExtraSecond: 15 * time.Minute,
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to model.MatchPhase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine tracks the current phase and its start anchor. Transitions are
// applied optimistically; server confirmation is the caller's concern and
// a failed confirmation surfaces a retry rather than a silent revert.
type Machine struct {
	mu           sync.RWMutex
	clk          clockwork.Clock
	current      model.MatchPhase
	phaseStart   *time.Time
	bypassGuards bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithGuardBypass disables minimum-duration guards. Intended for
// controlled test environments only; the default always enforces guards.
func WithGuardBypass() Option {
	return func(m *Machine) {
		m.bypassGuards = true
	}
}

// NewMachine creates a phase machine starting in Pending.
func NewMachine(clk clockwork.Clock, opts ...Option) *Machine {
	m := &Machine{clk: clk, current: model.PhasePending}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the current phase.
func (m *Machine) Current() model.MatchPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// PhaseStart returns the current phase's start anchor, if any.
func (m *Machine) PhaseStart() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phaseStart == nil {
		return nil
	}
	t := *m.phaseStart
	return &t
}

// Transition moves to the target phase. Disallowed targets and guarded
// transitions return typed errors; on success a live target gets a fresh
// start anchor.
func (m *Machine) Transition(to model.MatchPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.current, to) {
		return fmt.Errorf("cannot transition from %s to %s", m.current, to)
	}

	if !m.bypassGuards {
		if err := m.checkGuardLocked(to); err != nil {
			return err
		}
	}

	now := m.clk.Now()
	m.current = to
	if to.Live() {
		m.phaseStart = &now
	} else {
		m.phaseStart = nil
	}
	return nil
}

// checkGuardLocked enforces the minimum elapsed global time from the
// current live phase's start anchor.
func (m *Machine) checkGuardLocked(to model.MatchPhase) error {
	min, guarded := minimumDurations[m.current]
	if !guarded {
		return nil
	}
	// No anchor means the phase start was never observed locally; the
	// guard cannot be meaningfully enforced, so the transition proceeds.
	if m.phaseStart == nil {
		return nil
	}
	elapsed := m.clk.Now().Sub(*m.phaseStart)
	if elapsed < min {
		return &model.TransitionGuardError{
			From:      m.current,
			To:        to,
			Remaining: min - elapsed,
		}
	}
	return nil
}

// Hydrate replaces the machine's view from a server snapshot, applying the
// degenerate normalization: a match with zero accumulated time and no
// period anchor is Pending no matter what its stored status claims, so a
// hard-reset match never renders as finished.
func (m *Machine) Hydrate(snap model.MatchSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Normalize(snap)
	if snap.PeriodStartAnchor != nil && m.current.Live() {
		t := *snap.PeriodStartAnchor
		m.phaseStart = &t
	} else {
		m.phaseStart = nil
	}
}

// Normalize returns the phase a snapshot should be treated as.
func Normalize(snap model.MatchSnapshot) model.MatchPhase {
	if snap.AccumulatedSeconds == 0 && snap.PeriodStartAnchor == nil && snap.Status != model.PhaseAbandoned {
		return model.PhasePending
	}
	return snap.Status
}
