package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

//go:embed schema.sql
var schema string

// DB is the shared connection pool for every postgres store
type DB struct {
	*sql.DB

	// iterativeScan is set by InitSchema when pgvector can keep walking
	// the HNSW graph until a filtered query has enough rows (0.8+)
	iterativeScan bool
}

// Config sizes the pool. Zero values leave the database/sql defaults.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// Connect opens the pool and pings once so bad URLs fail at startup
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	pool, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := pool.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("postgres: ping: %w", err), pool.Close())
	}
	return &DB{DB: pool}, nil
}

// InitSchema applies schema.sql, which only uses IF NOT EXISTS statements.
// A positive dimensions value adds an HNSW cosine index for vectors of that
// length; each configured length gets its own partial expression index.
func (db *DB) InitSchema(ctx context.Context, dimensions int) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	var version string
	if err := db.QueryRowContext(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version); err != nil {
		return fmt.Errorf("postgres: pgvector version: %w", err)
	}
	db.iterativeScan = supportsIterativeScan(version)

	if dimensions <= 0 {
		return nil
	}
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_embedding_chunks_hnsw_%[1]d
		 ON embedding_chunks USING hnsw ((embedding::vector(%[1]d)) vector_cosine_ops)`,
		dimensions)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: vector index (%d): %w", dimensions, err)
	}
	return nil
}

// supportsIterativeScan reports whether pgvector version v has
// hnsw.iterative_scan
func supportsIterativeScan(v string) bool {
	var major, minor int
	if _, err := fmt.Sscanf(v, "%d.%d", &major, &minor); err != nil {
		return false
	}
	return major > 0 || minor >= 8
}

// Ping backs the readiness probe
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction commits when fn returns nil and rolls back otherwise
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return db.inTx(ctx, nil, fn)
}

// ReadOnly runs fn against a single repeatable-read snapshot
func (db *DB) ReadOnly(ctx context.Context, fn func(*sql.Tx) error) error {
	return db.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (db *DB) inTx(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return mapError(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return mapError(tx.Commit())
}

// lockTree serialises folder tree mutations for the rest of the transaction
func lockTree(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", hashLockName("folders:tree"))
	return err
}

// PostgreSQL error codes mapped onto domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeQueryCanceled       = "57014"
	codeDataException       = "22000"
)

// mapError translates driver errors into domain sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrNameConflict, pqErr.Constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, pqErr.Constraint)
		case codeQueryCanceled:
			return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		case codeDataException:
			// pgvector: "expected 3 dimensions, not 2", "different vector dimensions 3 and 2"
			if strings.Contains(pqErr.Message, "dimensions") {
				return fmt.Errorf("%w: %s", domain.ErrDimensionMismatch, pqErr.Message)
			}
		}
	}
	return err
}

// nullable maps a nil pointer to SQL NULL
func nullable[T any](p *T) sql.Null[T] {
	if p == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *p, Valid: true}
}

// ptr is the inverse of nullable
func ptr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	return &n.V
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
