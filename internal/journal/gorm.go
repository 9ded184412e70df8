package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/matchdesk/console/internal/model"
)

// Entry is the persisted form of an unconfirmed event. The client id is
// the primary key so replay after a restart reuses the same identity the
// server deduplicates on.
type Entry struct {
	ClientID  string `gorm:"primaryKey"`
	ServerID  string
	Confirmed bool `gorm:"index"`
	Payload   datatypes.JSON
	CreatedAt time.Time
}

// GormStore is a journal backed by SQLite or Postgres through gorm.
type GormStore struct {
	db     *gorm.DB
	open   func() (*gorm.DB, error)
	logger zerolog.Logger
}

// NewSqlite creates a SQLite-backed journal. An empty path keeps the
// journal in memory, which drops offline durability but keeps the replay
// path exercised.
func NewSqlite(path string, log zerolog.Logger) *GormStore {
	return &GormStore{
		logger: log,
		open: func() (*gorm.DB, error) {
			return openSqlite(path, log)
		},
	}
}

// NewPostgres creates a Postgres-backed journal for consoles sharing one
// durable queue.
func NewPostgres(cfg Config, log zerolog.Logger) *GormStore {
	return &GormStore{
		logger: log,
		open: func() (*gorm.DB, error) {
			return openPostgres(cfg, log)
		},
	}
}

func openSqlite(path string, log zerolog.Logger) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	if path != "" {
		log.Info().Str("path", path).Msg("Using local SQLite journal")
	} else {
		log.Info().Msg("Using in-memory SQLite journal")
	}
	return db, nil
}

func openPostgres(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	log.Debug().Msgf("Connecting to Postgres journal at '%s:%s'", cfg.Host, cfg.Port)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Init opens the connection and migrates the schema.
func (s *GormStore) Init() error {
	db, err := s.open()
	if err != nil {
		return fmt.Errorf("failed to open journal database: %w", err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	s.logger.Info().Msg("Journal ready")
	return nil
}

// Close releases the underlying connection.
func (s *GormStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append upserts the event under its client id. Retries of the same draft
// overwrite in place rather than duplicating.
func (s *GormStore) Append(ev model.MatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	entry := Entry{
		ClientID:  ev.ClientID.String(),
		ServerID:  ev.ServerID,
		Confirmed: ev.Status == model.DeliveryConfirmed,
		Payload:   payload,
		CreatedAt: ev.Timestamp,
	}
	return s.db.Save(&entry).Error
}

// MarkConfirmed records the server identity; confirmed entries are no
// longer replayed.
func (s *GormStore) MarkConfirmed(clientID uuid.UUID, serverID string) error {
	return s.db.Model(&Entry{}).
		Where("client_id = ?", clientID.String()).
		Updates(map[string]any{"confirmed": true, "server_id": serverID}).Error
}

// Delete removes the entry for an undone or duplicate-flagged event.
func (s *GormStore) Delete(clientID uuid.UUID) error {
	return s.db.Delete(&Entry{}, "client_id = ?", clientID.String()).Error
}

// Unsent returns all unconfirmed entries in insertion order.
func (s *GormStore) Unsent() ([]model.MatchEvent, error) {
	var entries []Entry
	if err := s.db.Where("confirmed = ?", false).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	events := make([]model.MatchEvent, 0, len(entries))
	for _, entry := range entries {
		var ev model.MatchEvent
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			s.logger.Warn().Str("clientId", entry.ClientID).Err(err).
				Msg("Skipping undecodable journal entry")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// UnsentCount returns the number of unconfirmed entries.
func (s *GormStore) UnsentCount() (int, error) {
	var count int64
	err := s.db.Model(&Entry{}).Where("confirmed = ?", false).Count(&count).Error
	return int(count), err
}

// Clear removes every entry. Used by the audited session reset.
func (s *GormStore) Clear() error {
	return s.db.Where("1 = 1").Delete(&Entry{}).Error
}
