package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultListLimit is used when List is called with limit <= 0.
const DefaultListLimit = 100

// Entry is one stored transfer.
type Entry struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Path      string        `json:"path"`
	Size      int64         `json:"size"`
	Bytes     int64         `json:"bytes"`
	SHA1      string        `json:"sha1,omitempty"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Interface string        `json:"interface"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Kind returns the history kind name of op.
func Kind(op wire.Operation) string {
	switch op {
	case wire.OpDownloadFile:
		return "download"
	case wire.OpUploadFile:
		return "upload"
	case wire.OpDeleteFile:
		return "delete"
	default:
		return "other"
	}
}

// Store provides SQLite persistence for transfer records.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path.
// Use MemoryPath for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		sha1 TEXT,
		status TEXT NOT NULL,
		message TEXT,
		interface TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_started_at ON transfers(started_at);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores rec under a new ID.
func (s *Store) Record(ctx context.Context, rec filetransfer.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (id, kind, path, size, bytes, sha1, status, message, interface, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), Kind(rec.Operation), rec.Path, rec.Size, rec.Bytes,
		nullString(rec.SHA1), rec.Status.String(), nullString(rec.Message),
		rec.Interface.String(), rec.StartedAt.UTC(), int64(rec.Duration))
	if err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, path, size, bytes, sha1, status, message, interface, started_at, duration_ns
		FROM transfers
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var sha1, message sql.NullString
		var duration int64
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.Path, &e.Size, &e.Bytes, &sha1,
			&e.Status, &message, &e.Interface, &e.StartedAt, &duration,
		); err != nil {
			return nil, err
		}
		e.SHA1 = sha1.String
		e.Message = message.String
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time interface satisfaction check.
var _ filetransfer.Recorder = (*Store)(nil)
