// Package storage owns the Postgres connection pool, the migration
// sequence, and the repository methods backing every other package's
// persistence needs. Grounded on the teacher's internal/database/db.go
// (pgxpool wiring, ordered migration slice, HealthCheck/Close) and its
// internal/vectordb/pgvector/client.go (vector column handling, HNSW index
// DDL, vectorToString encoding).
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/sirupsen/logrus"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting repository
// helpers run either as a standalone call or inside a caller-managed
// transaction without two copies of the same SQL.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB wraps a pgxpool.Pool with the engine's migration and health-check
// conventions.
type DB struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

// Open connects to Postgres, registers the pgvector type on every new
// connection so reads of a `vector` column decode into pgvector.Vector
// instead of failing on an unrecognized OID, and returns a ready DB. It
// does not run migrations; call Migrate explicitly so callers control when
// schema changes happen. Grounded on original_source/agentcore/memory/db.py's
// connect callback (register_vector) and
// _examples/other_examples/HanFromTokyoDrift-agent-mem__db.go's
// pgxvec.RegisterTypes-via-AfterConnect wiring — per spec.md §4.10,
// "initialize ... registers the vector type".
func Open(ctx context.Context, dsn string, logger *logrus.Entry) (*DB, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}
	if cfg.MaxConns < 2 {
		cfg.MaxConns = 10
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	db := &DB{pool: pool, logger: logger}
	return db, nil
}

// Pool exposes the underlying pgxpool for packages that need raw access
// (e.g. to start a transaction spanning multiple repository calls).
func (d *DB) Pool() *pgxpool.Pool { return d.pool }

// Close releases all connections. Safe to call once; calling it twice is a
// no-op in pgxpool itself.
func (d *DB) Close() {
	d.pool.Close()
}

// HealthCheck verifies the pool can still reach Postgres.
func (d *DB) HealthCheck(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs every pending migration in order. Each entry is idempotent
// (CREATE TABLE/INDEX IF NOT EXISTS) so re-running a full migration set on
// an already-migrated database is safe, matching the teacher's
// RunMigration behavior.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			d.logger.WithError(err).WithField("migration_index", i).Error("storage: migration failed")
			return fmt.Errorf("storage: migration %d failed: %w", i, err)
		}
	}
	d.logger.WithField("count", len(migrations)).Info("storage: migrations applied")
	return nil
}

// VectorLiteral renders a float32 slice as a pgvector text literal, e.g.
// "[0.1,0.2,0.3]". Grounded on the teacher's vectorToString helper in
// internal/vectordb/pgvector/client.go. Exported so the retain, recall,
// consolidation, and mentalmodel packages can bind embeddings as plain
// query parameters without re-implementing the encoding.
func VectorLiteral(v []float32) string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
