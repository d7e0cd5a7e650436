package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/smallsh/internal/history"
)

const DefaultTable = "command_history"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Options selects the server and table. Zero values use ClickHouse defaults.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// Sink sends events to ClickHouse using the official ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(o Options) (*Sink, error) {
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if !tableName.MatchString(o.Table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", o.Table)
	}
	if o.Database == "" {
		o.Database = "default"
	}
	if o.Username == "" {
		o.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{o.Addr},
		Auth: clickhouse.Auth{
			Database: o.Database,
			Username: o.Username,
			Password: o.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	s := &Sink{conn: conn, table: o.Table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			session String,
			occurred_at DateTime64(6),
			event String,
			pid Int64,
			command String,
			args String,
			background Bool,
			started_at DateTime64(6),
			outcome Nullable(String),
			value Int64
		) ENGINE = MergeTree()
		ORDER BY (session, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse table: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec := e.Record
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return err
	}
	var outcome *string
	if rec.Outcome != "" {
		outcome = &rec.Outcome
	}
	query := fmt.Sprintf(`INSERT INTO %s (session, occurred_at, event, pid, command, args, background, started_at, outcome, value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	err = s.conn.Exec(ctx, query,
		rec.Session,
		e.OccurredAt.UTC(),
		string(e.Type),
		int64(rec.PID),
		rec.Command,
		string(args),
		rec.Background,
		rec.StartedAt.UTC(),
		outcome,
		int64(rec.Value),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

// Count returns the number of rows recorded for session.
func (s *Sink) Count(ctx context.Context, session string) (uint64, error) {
	var n uint64
	row := s.conn.QueryRow(ctx, "SELECT count() FROM "+s.table+" WHERE session = ?", session)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
