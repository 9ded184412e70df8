package match

import (
	"sync"

	"github.com/matchdesk/console/internal/model"
)

// Context holds the current match snapshot and operator identity.
type Context struct {
	mu         sync.RWMutex
	Snapshot   *model.MatchSnapshot
	OperatorID string
}

// NewContext creates a new Context with default values.
func NewContext(operatorID string) *Context {
	return &Context{
		Snapshot:   &model.MatchSnapshot{Status: model.PhasePending},
		OperatorID: operatorID,
	}
}

// GetSnapshot returns the current match snapshot.
func (mc *Context) GetSnapshot() *model.MatchSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.Snapshot
}

// MatchID returns the current match id, empty before the first hydration.
func (mc *Context) MatchID() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.Snapshot.MatchID
}

// Operator returns the operator id this session is attributed to.
func (mc *Context) Operator() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.OperatorID
}

// SetSnapshot replaces the current match snapshot.
func (mc *Context) SetSnapshot(snap *model.MatchSnapshot) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.Snapshot = snap
}
