// Package storage is the SQLite persistence boundary of the master: the
// object id high-water mark, the cluster endpoint table, and accounts.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrAccountExists = errors.New("storage: account already exists")

// Store wraps the master database handle. Calls are synchronous and rare:
// id reservation, the periodic keep-alive, and startup/shutdown writes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database, pings it, and applies embedded
// migrations. Any failure here is fatal to process startup.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage: database path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ObjectIDHighWaterMark returns the persisted allocator mark, zero when the
// tracker row has never been written.
func (s *Store) ObjectIDHighWaterMark(ctx context.Context) (uint32, error) {
	var mark uint32
	err := s.db.QueryRowContext(ctx,
		`SELECT last_object_id FROM object_id_tracker WHERE id = 1`).Scan(&mark)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mark, nil
}

func (s *Store) SaveObjectIDHighWaterMark(ctx context.Context, v uint32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO object_id_tracker (id, last_object_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_object_id = excluded.last_object_id`, v)
	return err
}

// UpsertServer registers or refreshes a cluster endpoint row.
func (s *Store) UpsertServer(ctx context.Context, name, ip string, port uint32, state int, version string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO servers (name, ip, port, state, version) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   ip = excluded.ip, port = excluded.port,
		   state = excluded.state, version = excluded.version`,
		name, ip, port, state, version)
	return err
}

// CreateAccount inserts a new account; duplicates are rejected, never
// overwritten.
func (s *Store) CreateAccount(ctx context.Context, name, passwordHash string, gmLevel int) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrAccountExists
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, password_hash, gm_level, created_at) VALUES (?, ?, ?, ?)`,
		name, passwordHash, gmLevel, time.Now().Unix())
	return err
}

// applyMigrations executes embedded .sql files in name order, at most once
// each, recorded in a schema_migrations ledger.
func (s *Store) applyMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := s.db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = ?)`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		ddl, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(ddl)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			name, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}
