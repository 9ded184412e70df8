// Package clock computes match time from server anchors plus local
// wall-clock. Values are pure functions of (state, now); nothing here
// stores a running counter, so a missed tick can never introduce drift.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matchdesk/console/internal/model"
)

// Elapsed returns the wall-clock seconds since the period anchor. A missing
// anchor or a future anchor yields zero; clock math never errors.
func Elapsed(st model.ClockState, now time.Time) float64 {
	if st.PeriodStartAnchor == nil {
		return 0
	}
	d := now.Sub(*st.PeriodStartAnchor).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// EffectiveSeconds returns total effective time. The anchored delta only
// accrues while the clock is running in EFFECTIVE mode.
func EffectiveSeconds(st model.ClockState, now time.Time) float64 {
	total := st.AccumulatedEffectiveS
	if st.IsRunning && st.Mode == model.ClockEffective {
		total += Elapsed(st, now)
	}
	return total
}

// IneffectiveSeconds returns total ineffective (stoppage) time.
func IneffectiveSeconds(st model.ClockState, now time.Time) float64 {
	total := st.AccumulatedIneffectiveS
	if st.IsRunning && st.Mode == model.ClockIneffective {
		total += Elapsed(st, now)
	}
	return total
}

// VarSeconds returns total VAR review time. VAR is an independent overlay:
// it keeps advancing while active even if the main clock is stopped, unless
// explicitly paused. One formula covers every toggle path:
// accumulated_at_toggle + max(0, delta_since_toggle - paused_during_active).
func VarSeconds(st model.ClockState, now time.Time) float64 {
	total := st.AccumulatedVarS
	if !st.VarActive || st.VarStartAnchor == nil {
		return total
	}

	paused := st.VarPausedS
	if st.VarPauseAnchor != nil {
		if d := now.Sub(*st.VarPauseAnchor).Seconds(); d > 0 {
			paused += d
		}
	}

	delta := now.Sub(*st.VarStartAnchor).Seconds() - paused
	if delta < 0 {
		delta = 0
	}
	return total + delta
}

// PeriodClock returns the display clock for the current period. With a
// valid anchor this is the wall-clock elapsed since period start; without
// one the clock is paused at the accumulated value.
func PeriodClock(st model.ClockState, now time.Time) model.ClockStamp {
	if st.PeriodStartAnchor != nil && st.IsRunning {
		return model.ClockStampFromDuration(now.Sub(*st.PeriodStartAnchor))
	}
	accumulated := st.AccumulatedEffectiveS + st.AccumulatedIneffectiveS
	return model.ClockStampFromDuration(time.Duration(accumulated * float64(time.Second)))
}

// Reading is a point-in-time view of all derived clock values.
type Reading struct {
	EffectiveS   float64
	IneffectiveS float64
	VarS         float64
	PeriodClock  model.ClockStamp
	Mode         model.ClockMode
	VarActive    bool
	Running      bool
}

// Engine owns the live ClockState and folds anchor deltas into the
// accumulators at each toggle. It is the single writer of clock state;
// reads recompute from anchors on demand.
type Engine struct {
	mu    sync.RWMutex
	clk   clockwork.Clock
	state model.ClockState
}

// NewEngine creates a clock engine using the given time source. Production
// passes clockwork.NewRealClock(); tests pass a fake.
func NewEngine(clk clockwork.Clock) *Engine {
	return &Engine{clk: clk}
}

// SetState replaces the clock state from a hydrated server snapshot.
// Last write wins; a superseded resync simply overwrites.
func (e *Engine) SetState(st model.ClockState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
}

// State returns a copy of the current clock state.
func (e *Engine) State() model.ClockState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Read computes all derived values at the engine's current time.
func (e *Engine) Read() Reading {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := e.clk.Now()
	return Reading{
		EffectiveS:   EffectiveSeconds(e.state, now),
		IneffectiveS: IneffectiveSeconds(e.state, now),
		VarS:         VarSeconds(e.state, now),
		PeriodClock:  PeriodClock(e.state, now),
		Mode:         e.state.Mode,
		VarActive:    e.state.VarActive,
		Running:      e.state.IsRunning,
	}
}

// Start anchors the clock at now and marks it running. A no-op when
// already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.IsRunning {
		return
	}
	now := e.clk.Now()
	e.state.PeriodStartAnchor = &now
	e.state.IsRunning = true
}

// Stop folds the anchored delta into the current mode's accumulator and
// halts the clock.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsRunning {
		return
	}
	e.foldLocked(e.clk.Now())
	e.state.IsRunning = false
	e.state.PeriodStartAnchor = nil
}

// SetMode switches between effective and ineffective time. The elapsed
// delta up to the switch is folded into the outgoing mode's accumulator
// and the anchor restarts, so the two never overlap.
func (e *Engine) SetMode(mode model.ClockMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Mode == mode {
		return
	}
	now := e.clk.Now()
	if e.state.IsRunning {
		e.foldLocked(now)
		e.state.PeriodStartAnchor = &now
	}
	e.state.Mode = mode
}

// StartVar begins a VAR review overlay. A no-op if already active.
func (e *Engine) StartVar() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.VarActive {
		return
	}
	now := e.clk.Now()
	e.state.VarActive = true
	e.state.VarStartAnchor = &now
	e.state.VarPausedS = 0
	e.state.VarPauseAnchor = nil
}

// PauseVar suspends VAR time accrual without ending the review.
func (e *Engine) PauseVar() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.VarActive || e.state.VarPauseAnchor != nil {
		return
	}
	now := e.clk.Now()
	e.state.VarPauseAnchor = &now
}

// ResumeVar resumes a paused VAR review, folding the pause span into the
// paused-seconds accumulator.
func (e *Engine) ResumeVar() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.VarActive || e.state.VarPauseAnchor == nil {
		return
	}
	now := e.clk.Now()
	if d := now.Sub(*e.state.VarPauseAnchor).Seconds(); d > 0 {
		e.state.VarPausedS += d
	}
	e.state.VarPauseAnchor = nil
}

// EndVar closes the VAR overlay, folding the active span into the VAR
// accumulator.
func (e *Engine) EndVar() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.VarActive {
		return
	}
	e.state.AccumulatedVarS = VarSeconds(e.state, e.clk.Now())
	e.state.VarActive = false
	e.state.VarStartAnchor = nil
	e.state.VarPausedS = 0
	e.state.VarPauseAnchor = nil
}

// foldLocked moves the anchored delta into the accumulator for the current
// mode and clears the anchor. Caller holds the lock.
func (e *Engine) foldLocked(now time.Time) {
	elapsed := Elapsed(e.state, now)
	switch e.state.Mode {
	case model.ClockEffective:
		e.state.AccumulatedEffectiveS += elapsed
	case model.ClockIneffective:
		e.state.AccumulatedIneffectiveS += elapsed
	}
	e.state.PeriodStartAnchor = nil
}
