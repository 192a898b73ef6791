// Package store persists trainee credentials, exam records and client
// session entries in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Collection names under an application namespace.
const (
	TraineesCollection = "trainees"
	ResultsCollection  = "exam_results"
)

var (
	// ErrTraineeExists is returned by AddTrainee for a taken username.
	ErrTraineeExists = errors.New("trainee already exists")
	// ErrOffline is returned by writes when no database is available.
	ErrOffline error = offlineError{}
)

type offlineError struct{}

func (offlineError) Error() string { return "offline mode: database not available" }

// Offline lets callers recognise ErrOffline without importing this package.
func (offlineError) Offline() bool { return true }

// CollectionPath returns the namespaced path of a collection,
// artifacts/<appID>/public/data/<name>.
func CollectionPath(appID, name string) string {
	if appID == "" {
		appID = "default-app-id"
	}
	return strings.Join([]string{"artifacts", appID, "public", "data", name}, "/")
}

type Store struct {
	db       *sql.DB
	trainees string
	results  string

	mu     sync.Mutex
	subs   map[int]subscriber
	subSeq int
	banner string
}

func New(dbPath, appID string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{
		db:       db,
		trainees: CollectionPath(appID, TraineesCollection),
		results:  CollectionPath(appID, ResultsCollection),
		subs:     make(map[int]subscriber),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Banner returns a message id describing degraded operation, or "".
func (s *Store) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

func (s *Store) setBanner(id string) {
	s.mu.Lock()
	s.banner = id
	s.mu.Unlock()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trainees (
		collection TEXT NOT NULL,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		trainee_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (collection, username)
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		trainee_id TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		module_results TEXT NOT NULL DEFAULT '{}',
		answers TEXT NOT NULL DEFAULT '{}',
		total_score INTEGER NOT NULL DEFAULT 0,
		total_possible INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_exam_results_user ON exam_results (collection, user_id);

	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
