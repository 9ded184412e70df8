package phase

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchdesk/console/internal/model"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.PhasePending, model.PhaseLiveFirstHalf))
	assert.True(t, CanTransition(model.PhaseFulltime, model.PhasePenalties))
	assert.True(t, CanTransition(model.PhaseFulltime, model.PhaseCompleted))

	assert.False(t, CanTransition(model.PhasePending, model.PhaseHalftime))
	assert.False(t, CanTransition(model.PhaseLiveFirstHalf, model.PhaseLiveSecondHalf))
	assert.False(t, CanTransition(model.PhaseCompleted, model.PhaseLiveFirstHalf))
	assert.False(t, CanTransition(model.PhaseAbandoned, model.PhasePending))
}

func TestTransition_HappyPath(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)

	require.NoError(t, m.Transition(model.PhaseLiveFirstHalf))
	assert.Equal(t, model.PhaseLiveFirstHalf, m.Current())
	require.NotNil(t, m.PhaseStart())

	clk.Advance(45 * time.Minute)
	require.NoError(t, m.Transition(model.PhaseHalftime))
	assert.Nil(t, m.PhaseStart(), "non-live phases carry no anchor")
}

func TestTransition_GuardBlocksEarlyHalftime(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)
	require.NoError(t, m.Transition(model.PhaseLiveFirstHalf))

	clk.Advance(44 * time.Minute)
	err := m.Transition(model.PhaseHalftime)

	var guardErr *model.TransitionGuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, model.PhaseLiveFirstHalf, guardErr.From)
	assert.Equal(t, model.PhaseHalftime, guardErr.To)
	assert.Equal(t, time.Minute, guardErr.Remaining)
	assert.Equal(t, model.PhaseLiveFirstHalf, m.Current(), "blocked transition leaves state alone")
}

func TestTransition_GuardPassesAtExactMinimum(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)
	require.NoError(t, m.Transition(model.PhaseLiveFirstHalf))

	clk.Advance(45 * time.Minute)
	assert.NoError(t, m.Transition(model.PhaseHalftime))
}

func TestTransition_ExtraTimeGuard(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)
	m.Hydrate(model.MatchSnapshot{
		Status:             model.PhaseFulltime,
		AccumulatedSeconds: 5400,
	})

	require.NoError(t, m.Transition(model.PhaseLiveExtraFirst))
	clk.Advance(14 * time.Minute)

	var guardErr *model.TransitionGuardError
	require.ErrorAs(t, m.Transition(model.PhaseExtraHalftime), &guardErr)

	clk.Advance(time.Minute)
	assert.NoError(t, m.Transition(model.PhaseExtraHalftime))
}

func TestTransition_DisallowedTarget(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	err := m.Transition(model.PhaseCompleted)
	assert.ErrorContains(t, err, "cannot transition")
}

func TestTransition_GuardBypass(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk, WithGuardBypass())
	require.NoError(t, m.Transition(model.PhaseLiveFirstHalf))

	clk.Advance(time.Minute)
	assert.NoError(t, m.Transition(model.PhaseHalftime))
}

func TestTransition_NoAnchorSkipsGuard(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)
	// Hydrated into a live phase with no anchor: the guard has nothing to
	// measure from and must not block.
	m.Hydrate(model.MatchSnapshot{
		Status:             model.PhaseLiveFirstHalf,
		AccumulatedSeconds: 100,
	})

	assert.NoError(t, m.Transition(model.PhaseHalftime))
}

func TestHydrate_DegenerateSnapshotIsPending(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	m.Hydrate(model.MatchSnapshot{Status: model.PhaseCompleted})
	assert.Equal(t, model.PhasePending, m.Current())
}

func TestHydrate_KeepsAnchorForLivePhase(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMachine(clk)
	anchor := clk.Now().Add(-10 * time.Minute)

	m.Hydrate(model.MatchSnapshot{
		Status:             model.PhaseLiveSecondHalf,
		AccumulatedSeconds: 2700,
		PeriodStartAnchor:  &anchor,
	})

	assert.Equal(t, model.PhaseLiveSecondHalf, m.Current())
	require.NotNil(t, m.PhaseStart())
	assert.Equal(t, anchor, *m.PhaseStart())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, model.PhasePending, Normalize(model.MatchSnapshot{Status: model.PhaseFulltime}))

	anchor := time.Now()
	assert.Equal(t, model.PhaseLiveFirstHalf, Normalize(model.MatchSnapshot{
		Status:            model.PhaseLiveFirstHalf,
		PeriodStartAnchor: &anchor,
	}))
	assert.Equal(t, model.PhaseHalftime, Normalize(model.MatchSnapshot{
		Status:             model.PhaseHalftime,
		AccumulatedSeconds: 2700,
	}))
	// An abandoned match stays abandoned even with zero accumulated time.
	assert.Equal(t, model.PhaseAbandoned, Normalize(model.MatchSnapshot{Status: model.PhaseAbandoned}))
}
