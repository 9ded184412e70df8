package discipline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchdesk/console/internal/model"
)

func card(playerID string, c model.CardType) model.MatchEvent {
	return model.MatchEvent{
		Type:     model.EventTypeCard,
		TeamID:   "home",
		PlayerID: playerID,
		Data:     model.EventData{Card: &model.CardData{Card: c}},
	}
}

func TestFold_SingleYellow(t *testing.T) {
	st := Fold([]model.MatchEvent{card("p1", model.CardYellow)})
	assert.Equal(t, 1, st["p1"].YellowCount)
	assert.False(t, st.Expelled("p1"))
}

func TestFold_SecondYellowExpels(t *testing.T) {
	st := Fold([]model.MatchEvent{
		card("p1", model.CardYellow),
		card("p1", model.CardYellowSecond),
	})
	assert.Equal(t, 2, st["p1"].YellowCount)
	assert.True(t, st["p1"].HasRed)
	assert.True(t, st.Expelled("p1"))
}

func TestFold_AutoRedAfterSecondYellowNotDoubleCounted(t *testing.T) {
	st := Fold([]model.MatchEvent{
		card("p1", model.CardYellow),
		card("p1", model.CardYellowSecond),
		card("p1", model.CardRed), // synthetic pair of the second yellow
	})
	assert.True(t, st.Expelled("p1"))

	// Cancelling the pair must fully clear the expulsion, which only works
	// if the auto red was absorbed rather than counted.
	st = Fold([]model.MatchEvent{
		card("p1", model.CardYellow),
		card("p1", model.CardYellowSecond),
		card("p1", model.CardRed),
		card("p1", model.CardCancelled),
	})
	assert.Equal(t, 1, st["p1"].YellowCount)
	assert.False(t, st.Expelled("p1"))
}

func TestFold_StraightRed(t *testing.T) {
	st := Fold([]model.MatchEvent{card("p1", model.CardRed)})
	assert.True(t, st["p1"].HasRed)
	assert.True(t, st.Expelled("p1"))
	assert.Zero(t, st["p1"].YellowCount)
}

func TestFold_CancelledFloorsAtZero(t *testing.T) {
	st := Fold([]model.MatchEvent{
		card("p1", model.CardCancelled),
		card("p1", model.CardCancelled),
	})
	assert.Zero(t, st["p1"].YellowCount)
	assert.False(t, st.Expelled("p1"))
}

func TestFold_CancelRemovesMostRecentCard(t *testing.T) {
	st := Fold([]model.MatchEvent{
		card("p1", model.CardYellow),
		card("p1", model.CardCancelled),
	})
	assert.Zero(t, st["p1"].YellowCount)

	st = Fold([]model.MatchEvent{
		card("p1", model.CardRed),
		card("p1", model.CardCancelled),
	})
	assert.False(t, st["p1"].HasRed)
}

func TestFold_Deterministic(t *testing.T) {
	events := []model.MatchEvent{
		card("p1", model.CardYellow),
		card("p2", model.CardRed),
		card("p1", model.CardYellowSecond),
		card("p1", model.CardRed),
	}
	first := Fold(events)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Fold(events))
	}
}

func TestFold_SkipsNonCards(t *testing.T) {
	st := Fold([]model.MatchEvent{
		{Type: model.EventTypePass, PlayerID: "p1"},
		{Type: model.EventTypeCard, PlayerID: "p1"}, // nil card data
		card("", model.CardYellow),                  // no player
	})
	assert.Empty(t, st)
}
