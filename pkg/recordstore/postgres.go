package recordstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

var postgresIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func validPostgresIdentifier(name string) bool {
	return postgresIdentifier.MatchString(name)
}

// PgxPool is the subset of *pgxpool.Pool the writer uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresWriter implements Writer with INSERT ... ON CONFLICT DO UPDATE.
type PostgresWriter struct {
	pool      PgxPool
	tableName string
	upsertSQL string
	schemaSQL string
	logger    zerolog.Logger
}

// NewPostgresWriter creates a writer for tableName. The pool is shared and its
// lifecycle is managed by the caller.
func NewPostgresWriter(pool PgxPool, tableName string, logger zerolog.Logger) (*PostgresWriter, error) {
	if pool == nil {
		return nil, errors.New("postgres pool cannot be nil")
	}
	if !validPostgresIdentifier(tableName) {
		return nil, fmt.Errorf("%w: %q is not a valid postgres table name", types.ErrConfiguration, tableName)
	}
	table := pgx.Identifier{tableName}.Sanitize()
	return &PostgresWriter{
		pool:      pool,
		tableName: tableName,
		upsertSQL: UpsertSQL(table),
		schemaSQL: SchemaSQL(table),
		logger:    logger.With().Str("component", "PostgresWriter").Str("table_name", tableName).Logger(),
	}, nil
}

// UpsertSQL returns the statement used to write one record into a sanitized table name.
func UpsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (message_id, content) VALUES ($1, $2)
ON CONFLICT (message_id) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`, table)
}

// SchemaSQL returns the DDL that creates the records table if it is missing.
func SchemaSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	message_id TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)
}

// EnsureSchema creates the table if it does not exist.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, w.schemaSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.tableName, err)
	}
	w.logger.Info().Msg("Postgres records table ensured.")
	return nil
}

// Put implements Writer.
func (w *PostgresWriter) Put(ctx context.Context, key, content string) error {
	if _, err := w.pool.Exec(ctx, w.upsertSQL, key, content); err != nil {
		var pgErr *pgconn.PgError
		// Class 22 is data exception, class 23 integrity violation.
		if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
			return fmt.Errorf("%w: postgres upsert for %s: %w", types.ErrRecordRejected, key, err)
		}
		return fmt.Errorf("postgres upsert for %s: %w", key, err)
	}
	w.logger.Debug().Str("key", key).Msg("Row upserted into Postgres.")
	return nil
}

// Check pings the database.
func (w *PostgresWriter) Check(ctx context.Context) error {
	if err := w.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close does not close the injected pool.
func (w *PostgresWriter) Close() error {
	return nil
}
