package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchdesk/console/internal/model"
)

func TestNewContext_Defaults(t *testing.T) {
	ctx := NewContext("op-7")

	assert.Equal(t, model.PhasePending, ctx.GetSnapshot().Status)
	assert.Equal(t, "", ctx.MatchID())
	assert.Equal(t, "op-7", ctx.Operator())
}

func TestSetSnapshot(t *testing.T) {
	ctx := NewContext("op-7")

	ctx.SetSnapshot(&model.MatchSnapshot{
		MatchID: "match-042",
		Status:  model.PhaseLiveFirstHalf,
	})

	assert.Equal(t, "match-042", ctx.MatchID())
	assert.Equal(t, model.PhaseLiveFirstHalf, ctx.GetSnapshot().Status)
}
