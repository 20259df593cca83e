package session

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/storeloop/danbot/internal/logger"
)

// SQLiteStore persists histories in a local SQLite database so conversations
// survive a restart. It satisfies the same Store contract as MemoryStore;
// per-sender serialization comes from each mutation being a single statement.
type SQLiteStore struct {
	db       *sql.DB
	maxPairs int
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// messages table exists. Callers should fall back to NewMemoryStore when this
// fails.
func NewSQLiteStore(path string, maxPairs int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);`); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Info("sqlite session store initialized", "path", path)
	return &SQLiteStore{db: db, maxPairs: maxPairs}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) History(sender string) []Entry {
	rows, err := s.db.Query(`SELECT role, content FROM messages WHERE sender = ? ORDER BY id ASC;`, sender)
	if err != nil {
		logger.L.Error("sqlite history query failed", "sender", sender, "error", err)
		return nil
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Role, &e.Content); err != nil {
			logger.L.Error("sqlite history scan failed", "sender", sender, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *SQLiteStore) AppendUser(sender, text string) {
	s.append(sender, RoleUser, text)
}

func (s *SQLiteStore) AppendAssistant(sender, text string) {
	s.append(sender, RoleAssistant, text)
}

func (s *SQLiteStore) append(sender string, role Role, text string) {
	_, err := s.db.Exec(`INSERT INTO messages (sender, role, content, created_at) VALUES (?,?,?,?);`,
		sender, string(role), text, time.Now().UTC())
	if err != nil {
		logger.L.Error("sqlite append failed", "sender", sender, "role", role, "error", err)
	}
}

func (s *SQLiteStore) Truncate(sender string) {
	_, err := s.db.Exec(`DELETE FROM messages WHERE sender = ? AND id NOT IN (
		SELECT id FROM messages WHERE sender = ? ORDER BY id DESC LIMIT ?
	);`, sender, sender, 2*s.maxPairs)
	if err != nil {
		logger.L.Error("sqlite truncate failed", "sender", sender, "error", err)
	}
}

func (s *SQLiteStore) RollbackLastUser(sender string) {
	// The role predicate makes this a no-op when the tail is an assistant
	// entry, which also makes repeated rollbacks harmless.
	_, err := s.db.Exec(`DELETE FROM messages WHERE role = 'user' AND id IN (
		SELECT id FROM messages WHERE sender = ? ORDER BY id DESC LIMIT 1
	);`, sender)
	if err != nil {
		logger.L.Error("sqlite rollback failed", "sender", sender, "error", err)
	}
}
