package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPhaseRoundTrip(t *testing.T) {
	for p := PhasePending; p <= PhaseAbandoned; p++ {
		parsed, err := ParseMatchPhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParseMatchPhase("overtime")
	assert.Error(t, err)
}

func TestMatchPhaseLive(t *testing.T) {
	assert.True(t, PhaseLiveFirstHalf.Live())
	assert.True(t, PhaseLiveExtraSecond.Live())
	assert.False(t, PhaseHalftime.Live())
	assert.False(t, PhasePenalties.Live())
	assert.False(t, PhaseCompleted.Live())
}

func TestMatchPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseAbandoned.Terminal())
	assert.False(t, PhaseFulltime.Terminal())
}

func TestMatchPhasePeriod(t *testing.T) {
	assert.Equal(t, 1, PhaseLiveFirstHalf.Period())
	assert.Equal(t, 2, PhaseFulltime.Period())
	assert.Equal(t, 3, PhaseLiveExtraFirst.Period())
	assert.Equal(t, 4, PhaseLiveExtraSecond.Period())
	assert.Equal(t, 5, PhasePenalties.Period())
	assert.Equal(t, 0, PhasePending.Period())
}

func TestCardTypeRoundTrip(t *testing.T) {
	for _, c := range []CardType{CardYellow, CardYellowSecond, CardRed, CardCancelled} {
		parsed, err := ParseCardType(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCardType("orange")
	assert.Error(t, err)
}

func TestMatchEventConfirmed(t *testing.T) {
	ev := MatchEvent{Status: DeliveryConfirmed, ServerID: "srv-1"}
	assert.True(t, ev.Confirmed())

	// Confirmed status without a server id is not confirmed.
	ev = MatchEvent{Status: DeliveryConfirmed}
	assert.False(t, ev.Confirmed())

	ev = MatchEvent{Status: DeliveryPending, ServerID: "srv-1"}
	assert.False(t, ev.Confirmed())
}
