package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Dialect selects placeholder and DDL flavour for SQLSink.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLSink appends history events to the command_history table. The schema
// is created if missing.
type SQLSink struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens driverName with dsn and ensures the schema exists.
func OpenSQL(driverName, dsn string, d Dialect) (*SQLSink, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN for SQL history sink")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if d == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	s := &SQLSink{db: db, dialect: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return s, nil
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	var stmts []string
	if s.dialect == DialectSQLite {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS command_history(
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session TEXT NOT NULL,
				occurred_at TIMESTAMP NOT NULL,
				event TEXT NOT NULL,
				pid INTEGER NOT NULL,
				command TEXT NOT NULL,
				args TEXT NOT NULL,
				background BOOLEAN NOT NULL,
				started_at TIMESTAMP NOT NULL,
				outcome TEXT NULL,
				value INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_command_history_session ON command_history(session);`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS command_history(
				id BIGSERIAL PRIMARY KEY,
				session TEXT NOT NULL,
				occurred_at TIMESTAMPTZ NOT NULL,
				event TEXT NOT NULL,
				pid INTEGER NOT NULL,
				command TEXT NOT NULL,
				args TEXT NOT NULL,
				background BOOLEAN NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				outcome TEXT NULL,
				value INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_command_history_session ON command_history(session);`,
		}
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLSink) Send(ctx context.Context, e Event) error {
	rec := e.Record
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return err
	}
	var outcome any
	if rec.Outcome != "" {
		outcome = rec.Outcome
	}
	q := `INSERT INTO command_history(session, occurred_at, event, pid, command, args, background, started_at, outcome, value)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	if s.dialect == DialectPostgres {
		q = `INSERT INTO command_history(session, occurred_at, event, pid, command, args, background, started_at, outcome, value)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	}
	_, err = s.db.ExecContext(ctx, q,
		rec.Session, e.OccurredAt.UTC(), string(e.Type), rec.PID, rec.Command, string(args),
		rec.Background, rec.StartedAt.UTC(), outcome, rec.Value)
	return err
}

// List returns up to limit events of session, oldest first. An empty
// session lists every session.
func (s *SQLSink) List(ctx context.Context, session string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT session, occurred_at, event, pid, command, args, background, started_at, outcome, value
		FROM command_history WHERE (? = '' OR session = ?) ORDER BY id LIMIT ?;`
	if s.dialect == DialectPostgres {
		q = `SELECT session, occurred_at, event, pid, command, args, background, started_at, outcome, value
		FROM command_history WHERE ($1 = '' OR session = $1) ORDER BY id LIMIT $2;`
	}
	var rows *sql.Rows
	var err error
	if s.dialect == DialectPostgres {
		rows, err = s.db.QueryContext(ctx, q, session, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q, session, session, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			evt, args  string
			outcome    sql.NullString
			occurredAt time.Time
			startedAt  time.Time
		)
		if err := rows.Scan(&e.Record.Session, &occurredAt, &evt, &e.Record.PID, &e.Record.Command,
			&args, &e.Record.Background, &startedAt, &outcome, &e.Record.Value); err != nil {
			return nil, err
		}
		e.Type = EventType(evt)
		e.OccurredAt = occurredAt
		e.Record.StartedAt = startedAt
		e.Record.Outcome = outcome.String
		if err := json.Unmarshal([]byte(args), &e.Record.Args); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLSink) Close() error { return s.db.Close() }
