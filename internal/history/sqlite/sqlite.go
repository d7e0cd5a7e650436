package sqlite

import (
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/smallsh/internal/history"
)

// New creates a SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*history.SQLSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	return history.OpenSQL("sqlite", dsn, history.DialectSQLite)
}
