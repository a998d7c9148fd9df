// Package history keeps the archive index, a small SQLite database
// remembering which articles were already converted and where they went.
package history

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"xarc/config"
)

const schema = `CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT,
	path TEXT,
	archived_at INTEGER
)`

// Entry is a single archived article record.
type Entry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Index is the archive index. A nil Index is valid and behaves as a
// permanently empty one, so a disabled or broken database never interferes
// with conversion.
type Index struct {
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens or creates the index database. Returns nil Index without error
// when the index is disabled.
func Open(cfg *config.HistoryConfig, log *zap.Logger) (*Index, error) {
	if !cfg.Enable || len(cfg.Path) == 0 {
		return nil, nil
	}

	conn, err := sqlite.OpenConn(cfg.Path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("unable to open history database: %w", err)
	}
	if err := sqlitex.Execute(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare history database: %w", err)
	}
	return &Index{conn: conn, log: log}, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	if x == nil {
		return nil
	}
	return x.conn.Close()
}

// Seen reports whether the article was recorded before. Lookup trouble is
// logged and reported as unseen.
func (x *Index) Seen(id string) bool {
	if x == nil {
		return false
	}

	var found bool
	err := sqlitex.Execute(x.conn, `SELECT 1 FROM articles WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		x.log.Warn("Unable to query history database", zap.String("id", id), zap.Error(err))
		return false
	}
	return found
}

// Record stores the article in the index, replacing an earlier record with
// the same ID.
func (x *Index) Record(e Entry) error {
	if x == nil {
		return nil
	}

	err := sqlitex.Execute(x.conn, `INSERT OR REPLACE INTO articles (id, title, path, archived_at) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{e.ID, e.Title, e.Path, e.ArchivedAt.Unix()},
		})
	if err != nil {
		return fmt.Errorf("unable to record article %s: %w", e.ID, err)
	}
	return nil
}

// List returns all recorded articles, most recently archived first.
func (x *Index) List() ([]Entry, error) {
	if x == nil {
		return nil, nil
	}

	var entries []Entry
	err := sqlitex.Execute(x.conn, `SELECT id, title, path, archived_at FROM articles ORDER BY archived_at DESC, id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, Entry{
					ID:         stmt.ColumnText(0),
					Title:      stmt.ColumnText(1),
					Path:       stmt.ColumnText(2),
					ArchivedAt: time.Unix(stmt.ColumnInt64(3), 0).UTC(),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to list archived articles: %w", err)
	}
	return entries, nil
}
