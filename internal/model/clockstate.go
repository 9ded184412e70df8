package model

import "time"

// ClockMode distinguishes effective (live play) from ineffective (stoppage)
// running time. The two are mutually exclusive; VAR is an overlay.
type ClockMode uint8

const (
	ClockEffective ClockMode = iota
	ClockIneffective
)

// String returns the lowercase name of the clock mode.
func (m ClockMode) String() string {
	if m == ClockIneffective {
		return "ineffective"
	}
	return "effective"
}

// ClockState is the anchor-based state of the match clock. Totals are never
// stored as running counters; they are recomputed from the anchors on every
// read so a missed tick cannot introduce drift.
type ClockState struct {
	Mode       ClockMode `json:"mode"`
	VarActive  bool      `json:"varActive"`
	IsRunning  bool      `json:"isRunning"`

	AccumulatedEffectiveS   float64 `json:"accumulatedEffectiveS"`
	AccumulatedIneffectiveS float64 `json:"accumulatedIneffectiveS"`
	AccumulatedVarS         float64 `json:"accumulatedVarS"`
	VarPausedS              float64 `json:"varPausedS"`

	PeriodStartAnchor *time.Time `json:"periodStartAnchor,omitempty"`
	VarStartAnchor    *time.Time `json:"varStartAnchor,omitempty"`
	VarPauseAnchor    *time.Time `json:"varPauseAnchor,omitempty"`
}
