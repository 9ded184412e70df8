// Package journal persists unconfirmed events so work recorded offline
// survives a console restart and is resent under its original client id.
package journal

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matchdesk/console/internal/model"
)

// Store is the interface all journal backends must satisfy.
type Store interface {
	// Lifecycle
	Init() error
	Close() error

	// Entry management, keyed by client id
	Append(ev model.MatchEvent) error
	MarkConfirmed(clientID uuid.UUID, serverID string) error
	Delete(clientID uuid.UUID) error
	Unsent() ([]model.MatchEvent, error)
	UnsentCount() (int, error)
	Clear() error
}

// Config selects and parameterizes a journal backend.
type Config struct {
	// Type is one of "sqlite", "postgres" or "memory".
	Type string `mapstructure:"type" json:"type"`
	// Path is the SQLite database file. Empty means in-memory SQLite.
	Path string `mapstructure:"path" json:"path"`
	// Postgres connection parameters, used when Type is "postgres".
	Host     string `mapstructure:"host" json:"host"`
	Port     string `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
}

// NewStore creates a journal backend based on configuration.
func NewStore(cfg Config, log zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgres(cfg, log), nil
	case "sqlite":
		return NewSqlite(cfg.Path, log), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
