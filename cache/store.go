// Package cache keeps compiled stylesheets in sqlite database keyed by token
// table fingerprint and engine.
package cache

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"cvstyle/common"
	"cvstyle/emit"
)

const schema = `
CREATE TABLE IF NOT EXISTS stylesheets (
	tokens_key TEXT NOT NULL,
	engine     TEXT NOT NULL,
	name       TEXT NOT NULL,
	media_type TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (tokens_key, engine)
);
`

// Store is a persistent payload cache. Connection is shared, access is
// serialized.
type Store struct {
	log  *zap.Logger
	mu   sync.Mutex
	conn *sqlite.Conn
	now  func() time.Time
}

// Open opens (creating when necessary) cache database. Empty path opens
// in-memory database.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		conn *sqlite.Conn
		err  error
	)
	if path == "" {
		conn, err = sqlite.OpenConn(":memory:", sqlite.OpenReadWrite, sqlite.OpenMemory)
	} else {
		conn, err = sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open cache (%s): %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare cache schema: %w", err)
	}
	return &Store{log: log.Named("cache"), conn: conn, now: time.Now}, nil
}

// Close closes database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Get returns cached payload.
func (s *Store) Get(tokensKey string, engine common.Engine) (emit.Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		p     emit.Payload
		found bool
	)
	err := sqlitex.Execute(s.conn,
		`SELECT name, media_type, data FROM stylesheets WHERE tokens_key = ? AND engine = ?`,
		&sqlitex.ExecOptions{
			Args: []any{tokensKey, engine.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				p.Engine = engine
				p.Name = stmt.ColumnText(0)
				p.MediaType = stmt.ColumnText(1)
				p.Data = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, p.Data)
				found = true
				return nil
			},
		})
	if err != nil {
		return emit.Payload{}, false, fmt.Errorf("unable to read cache: %w", err)
	}
	if found {
		s.log.Debug("Cache hit", zap.String("tokens", tokensKey), zap.Stringer("engine", engine))
	}
	return p, found, nil
}

// Put stores payload replacing previous one.
func (s *Store) Put(tokensKey string, p emit.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn,
		`INSERT OR REPLACE INTO stylesheets (tokens_key, engine, name, media_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{tokensKey, p.Engine.String(), p.Name, p.MediaType, p.Data, s.now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("unable to write cache: %w", err)
	}
	return nil
}

// Prune removes entries older than cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn, `DELETE FROM stylesheets WHERE created_at < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff.Unix()}})
	if err != nil {
		return 0, fmt.Errorf("unable to prune cache: %w", err)
	}
	return s.conn.Changes(), nil
}

// Len returns number of cached payloads.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := sqlitex.Execute(s.conn, `SELECT count(*) FROM stylesheets`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("unable to count cache entries: %w", err)
	}
	return n, nil
}
