// Package sqlite implements the store interfaces on an embedded SQLite
// database. The schema is managed with golang-migrate from migrations
// compiled into the binary, so a deployment is a single file plus the
// database path.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/liveline-bot/liveline/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if needed) the database at path and applies any
// pending migrations.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver is not safe for concurrent writes over multiple conns.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(path); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies all pending migrations to the database at path.
func Migrate(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

var (
	_ store.PartyStore   = (*PartyStore)(nil)
	_ store.SessionStore = (*SessionStore)(nil)
	_ store.QueueStore   = (*QueueStore)(nil)
	_ store.RuleStore    = (*RuleStore)(nil)
	_ store.MessageStore = (*MessageStore)(nil)
)

// NewStores returns all store implementations backed by db.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Parties:  NewPartyStore(db),
		Sessions: NewSessionStore(db),
		Queue:    NewQueueStore(db),
		Rules:    NewRuleStore(db),
		Messages: NewMessageStore(db),
	}
}
