// Package postgres is the Postgres sink: COPY for inserts and a batched
// DELETE inside one transaction for keyed deletes. It uses pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rowcore/internal/ddl"
	"rowcore/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // target table, e.g. "public.vehicles"
	Columns []string // ordered columns for COPY
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom streams rows into the target table with COPY.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	src := make([][]any, len(rows))
	for i, row := range rows {
		v, err := copyRow(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		src[i] = v
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(src))
	if err != nil {
		return n, describe("copy", err)
	}
	return n, nil
}

// DeleteRows runs plan once per row in a single transaction and returns the
// number of rows removed.
func (r *Repository) DeleteRows(ctx context.Context, plan storage.DeletePlan, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt := plan.SQL(ddl.Postgres, storage.Dollar)

	b := &pgx.Batch{}
	for i, row := range rows {
		args, err := copyRow(plan.Args(row))
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		b.Queue(stmt, args...)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, b)
	var deleted int64
	for i := range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, describe(fmt.Sprintf("delete row %d", i), err)
		}
		deleted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, describe("delete batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// describe adds the server's detail and SQLSTATE to err when present.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// copyRow maps row values onto types pgx encodes natively. Decimals become
// pgtype.Numeric; everything else passes through.
func copyRow(row []any) ([]any, error) {
	out := row
	copied := false
	for i, v := range row {
		d, ok := v.(decimal.Decimal)
		if !ok {
			continue
		}
		if !copied {
			out, copied = append([]any(nil), row...), true
		}
		var n pgtype.Numeric
		if err := n.Scan(d.String()); err != nil {
			return nil, fmt.Errorf("numeric %s: %w", d, err)
		}
		out[i] = n
	}
	return out, nil
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
