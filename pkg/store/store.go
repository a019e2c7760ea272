// Package store persists the entity/bond graph in SQLite.
//
// One Store owns one database. Writes are serialized behind a single
// writer mutex; readers use the connection directly. Save hooks fire
// after a successful commit, outside the writer lock, in registration
// order. A failing hook is logged and never rolls back the commit.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds the options for opening a Store.
type Config struct {
	// Path is the SQLite database path, or ":memory:" for tests.
	Path string

	Logger *zap.Logger
}

// SaveHook observes a committed entity write. Hooks run after the commit,
// outside the writer lock, in registration order.
type SaveHook func(id, entityType string, data map[string]any)

type registeredHook struct {
	id int
	fn SaveHook
}

// Store is the single arbiter of graph state.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	// mu serializes writers. Physics checks and the commit they guard
	// are atomic under this lock.
	mu sync.Mutex

	hookMu     sync.Mutex
	hooks      []registeredHook
	nextHookID int

	ftsAvailable bool
}

// New opens (creating if necessary) the database at cfg.Path and runs
// migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and enforces
	// the single-writer model at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		path:   cfg.Path,
		logger: cfg.Logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		data_json TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

	CREATE TABLE IF NOT EXISTS bonds (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		confidence REAL NOT NULL DEFAULT 1.0,
		data_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_bonds_from ON bonds(from_id);
	CREATE INDEX IF NOT EXISTS idx_bonds_to ON bonds(to_id);
	CREATE INDEX IF NOT EXISTS idx_bonds_type ON bonds(type);

	CREATE TABLE IF NOT EXISTS archive (
		id TEXT PRIMARY KEY,
		original_id TEXT NOT NULL,
		original_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		data_json TEXT NOT NULL,
		archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		archived_by TEXT,
		reason TEXT,
		learning_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_archive_original ON archive(original_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		entity_id TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
		model_name TEXT NOT NULL,
		vector BLOB NOT NULL,
		dimension INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS signal_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		signal_id TEXT NOT NULL,
		protocol_id TEXT,
		started_at DATETIME,
		ended_at DATETIME,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_signal_outcomes_signal ON signal_outcomes(signal_id);

	CREATE TABLE IF NOT EXISTS pulse_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pulse_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		signals_found INTEGER NOT NULL DEFAULT 0,
		signals_processed INTEGER NOT NULL DEFAULT 0,
		protocols_triggered INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		errors_json TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS task_results (
		task_id TEXT PRIMARY KEY,
		protocol_id TEXT NOT NULL,
		status TEXT NOT NULL,
		result_json TEXT,
		error_message TEXT,
		enqueued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_task_results_status ON task_results(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 availability depends on the SQLite build. When absent, search
	// degrades to LIKE matching over the entity payload.
	fts := `CREATE VIRTUAL TABLE IF NOT EXISTS entity_fts USING fts5(id, type, title, body)`
	if _, err := s.db.Exec(fts); err != nil {
		s.logger.Warn("fts5 unavailable, falling back to keyword search", zap.Error(err))
		s.ftsAvailable = false
		return nil
	}
	s.ftsAvailable = true

	return nil
}

// FTSAvailable reports whether the full-text index exists in this database.
func (s *Store) FTSAvailable() bool {
	return s.ftsAvailable
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// AddSaveHook registers a hook and returns its handle for removal.
func (s *Store) AddSaveHook(fn SaveHook) int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.nextHookID++
	s.hooks = append(s.hooks, registeredHook{id: s.nextHookID, fn: fn})
	return s.nextHookID
}

// RemoveSaveHook unregisters the hook with the given handle.
func (s *Store) RemoveSaveHook(id int) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	for i, h := range s.hooks {
		if h.id == id {
			s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
			return
		}
	}
}

// fireSaveHooks runs every registered hook in registration order. Hooks
// observe committed state; a panicking or failing hook is contained here.
func (s *Store) fireSaveHooks(id, entityType string, data map[string]any) {
	s.hookMu.Lock()
	hooks := make([]registeredHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hookMu.Unlock()

	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("save hook panicked",
						zap.String("entity_id", id),
						zap.Any("panic", r),
					)
				}
			}()
			h.fn(id, entityType, data)
		}()
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
