package cache

import (
	"sync"

	"github.com/matchdesk/console/internal/model"
)

// RosterCache caches the hydrated rosters so player lookups during event
// entry never wait on a fetch. Latency here is operator-visible.
type RosterCache struct {
	m       sync.Mutex
	Players map[string]model.Player
	byTeam  map[string][]string
}

func NewRosterCache() *RosterCache {
	return &RosterCache{
		Players: make(map[string]model.Player),
		byTeam:  make(map[string][]string),
	}
}

// Reset clears the cache ahead of a rehydration.
func (c *RosterCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Players = make(map[string]model.Player)
	c.byTeam = make(map[string][]string)
}

// Load replaces the cache contents with the snapshot rosters.
func (c *RosterCache) Load(players []model.Player) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Players = make(map[string]model.Player, len(players))
	c.byTeam = make(map[string][]string)
	for _, p := range players {
		c.Players[p.ID] = p
		c.byTeam[p.TeamID] = append(c.byTeam[p.TeamID], p.ID)
	}
}

// GetPlayer returns a player by id.
func (c *RosterCache) GetPlayer(id string) (model.Player, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if p, ok := c.Players[id]; ok {
		return p, true
	}
	return model.Player{}, false
}

// TeamPlayers returns the players of one team in roster order.
func (c *RosterCache) TeamPlayers(teamID string) []model.Player {
	c.m.Lock()
	defer c.m.Unlock()
	ids := c.byTeam[teamID]
	players := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, c.Players[id])
	}
	return players
}

// AddPlayer inserts or replaces a single player (late roster change).
func (c *RosterCache) AddPlayer(p model.Player) {
	c.m.Lock()
	defer c.m.Unlock()
	if _, exists := c.Players[p.ID]; !exists {
		c.byTeam[p.TeamID] = append(c.byTeam[p.TeamID], p.ID)
	}
	c.Players[p.ID] = p
}

// Len returns the number of cached players.
func (c *RosterCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.Players)
}
