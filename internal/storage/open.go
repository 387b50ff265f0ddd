package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	logx "uptimeninja/pkg/logx"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var schemaFS embed.FS

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store implements monitor.Registry and monitor.Subscribers.
type Store struct {
	db      *sql.DB
	dialect dialect
	log     logx.Logger
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	var (
		db     *sql.DB
		d      dialect
		schema string
		err    error
	)
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		db, err = openSQLite(ctx, cfg)
		d, schema = dialectSQLite, "schema_sqlite.sql"
	case "postgres", "postgresql", "pg":
		db, err = openPostgres(ctx, cfg)
		d, schema = dialectPostgres, "schema_postgres.sql"
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}

	st := &Store{db: db, dialect: d, log: log}
	if err := st.migrate(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Info("storage ready", logx.String("driver", d.String()))
	return st, nil
}

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (s *Store) migrate(ctx context.Context, name string) error {
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Ping checks the connection; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// q rewrites '?' placeholders to $n for postgres.
func (s *Store) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
