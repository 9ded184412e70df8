// Package flow implements the operator's action wizard. It is the sole
// producer of event drafts: only fully specified, validated drafts reach
// the reconciliation engine's Submit.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matchdesk/console/internal/model"
)

// Step is the wizard's position in the selection sequence.
type Step uint8

const (
	StepSelectPlayer Step = iota
	StepSelectAction
	StepSelectOutcome
	StepSelectRecipient
)

// rapidInputWindow collapses accidental double-taps of the same quick
// action into one submission.
const rapidInputWindow = 3 * time.Second

// ErrRapidInput is returned when the same quick action repeats inside the
// buffering window.
var ErrRapidInput = errors.New("identical quick action within buffering window")

// SubstitutionVerdict is the external validator's answer.
type SubstitutionVerdict struct {
	IsValid      bool   `json:"isValid"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	TeamStatus   string `json:"teamStatus,omitempty"`
}

// SubstitutionValidator is the authoritative external legality check.
type SubstitutionValidator interface {
	ValidateSubstitution(ctx context.Context, teamID, playerOff, playerOn string, period int) (SubstitutionVerdict, error)
}

// MatchState supplies the live values stamped onto emitted drafts.
type MatchState struct {
	Expelled    func(playerID string) bool
	Period      func() int
	PeriodClock func() model.ClockStamp
}

type quickKey struct {
	playerID string
	action   model.EventType
	outcome  string
}

// Controller walks the selection sequence and emits drafts. Cancellable
// back to player selection at any step.
type Controller struct {
	mu    sync.Mutex
	clk   clockwork.Clock
	state MatchState
	subs  SubstitutionValidator

	step      Step
	player    model.Player
	action    model.EventType
	outcome   string
	recipient string

	lastQuick map[quickKey]time.Time
}

// NewController creates a controller at the player-selection step.
func NewController(clk clockwork.Clock, state MatchState, subs SubstitutionValidator) *Controller {
	return &Controller{
		clk:       clk,
		state:     state,
		subs:      subs,
		lastQuick: make(map[quickKey]time.Time),
	}
}

// Step returns the wizard's current step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Cancel abandons the in-progress selection and returns to player
// selection.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// SelectPlayer starts a new action for the given player. Expelled players
// are rejected for any further submission.
func (c *Controller) SelectPlayer(p model.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Expelled != nil && c.state.Expelled(p.ID) {
		return &model.PlayerExpelledError{PlayerID: p.ID}
	}

	c.resetLocked()
	c.player = p
	c.step = StepSelectAction
	return nil
}

// SelectAction chooses the event type for the selected player.
func (c *Controller) SelectAction(action model.EventType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepSelectAction {
		return fmt.Errorf("cannot select action at step %d", c.step)
	}
	c.action = action
	c.step = StepSelectOutcome
	return nil
}

// SelectQuickAction chooses action and outcome in one tap. Identical taps
// inside the rapid-input window are buffered away.
func (c *Controller) SelectQuickAction(action model.EventType, outcome string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepSelectAction {
		return fmt.Errorf("cannot select quick action at step %d", c.step)
	}

	key := quickKey{playerID: c.player.ID, action: action, outcome: outcome}
	now := c.clk.Now()
	if last, seen := c.lastQuick[key]; seen && now.Sub(last) < rapidInputWindow {
		return ErrRapidInput
	}
	c.lastQuick[key] = now

	c.action = action
	c.outcome = outcome
	c.step = StepSelectRecipient
	return nil
}

// SelectOutcome records the action's outcome.
func (c *Controller) SelectOutcome(outcome string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepSelectOutcome {
		return fmt.Errorf("cannot select outcome at step %d", c.step)
	}
	c.outcome = outcome
	c.step = StepSelectRecipient
	return nil
}

// SelectRecipient records the optional second player (pass recipient,
// substitute coming on).
func (c *Controller) SelectRecipient(playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepSelectRecipient {
		return fmt.Errorf("cannot select recipient at step %d", c.step)
	}
	c.recipient = playerID
	return nil
}

// Emit builds the draft from the completed selection, runs the external
// substitution check when applicable, and resets the wizard.
func (c *Controller) Emit(ctx context.Context) (model.EventDraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepSelectRecipient {
		return model.EventDraft{}, fmt.Errorf("selection incomplete at step %d", c.step)
	}

	draft := model.EventDraft{
		Type:       c.action,
		TeamID:     c.player.TeamID,
		PlayerID:   c.player.ID,
		Period:     c.state.Period(),
		MatchClock: c.state.PeriodClock(),
		Data:       c.buildDataLocked(),
	}

	if c.action == model.EventTypeSubstitution {
		if err := c.validateSubstitutionLocked(ctx, draft); err != nil {
			return model.EventDraft{}, err
		}
	}

	c.resetLocked()
	return draft, nil
}

// validateSubstitutionLocked blocks submission when the authoritative
// validator says the substitution is illegal.
func (c *Controller) validateSubstitutionLocked(ctx context.Context, draft model.EventDraft) error {
	if c.subs == nil {
		return nil
	}
	verdict, err := c.subs.ValidateSubstitution(ctx, draft.TeamID, c.player.ID, c.recipient, draft.Period)
	if err != nil {
		return &model.TransportError{Op: "validate substitution", Err: err}
	}
	if !verdict.IsValid {
		return &model.ValidationError{
			Message: verdict.ErrorMessage,
			Fields:  map[string]string{"playerOn": verdict.ErrorMessage},
		}
	}
	return nil
}

// buildDataLocked maps the selected action and outcome to a typed payload.
func (c *Controller) buildDataLocked() model.EventData {
	switch c.action {
	case model.EventTypePass:
		return model.EventData{Pass: &model.PassData{
			RecipientID: c.recipient,
			Completed:   c.outcome == "completed",
		}}
	case model.EventTypeShot:
		return model.EventData{Shot: &model.ShotData{
			OnTarget: c.outcome == "on_target" || c.outcome == "goal",
			Outcome:  c.outcome,
		}}
	case model.EventTypeCard:
		card := model.CardYellow
		if parsed, err := model.ParseCardType(c.outcome); err == nil {
			card = parsed
		}
		return model.EventData{Card: &model.CardData{Card: card}}
	case model.EventTypeSubstitution:
		return model.EventData{Substitution: &model.SubstitutionData{
			PlayerOffID: c.player.ID,
			PlayerOnID:  c.recipient,
		}}
	case model.EventTypeStoppage:
		return model.EventData{Stoppage: &model.StoppageData{Reason: c.outcome}}
	case model.EventTypeVarReview:
		return model.EventData{VarReview: &model.VarReviewData{Decision: c.outcome}}
	default:
		return model.EventData{}
	}
}

func (c *Controller) resetLocked() {
	c.step = StepSelectPlayer
	c.player = model.Player{}
	c.action = ""
	c.outcome = ""
	c.recipient = ""
}
