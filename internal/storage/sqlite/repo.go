package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rowcore/internal/ddl"
	"rowcore/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Repository{db: db, cfg: cfg}, func() { db.Close() }, nil
}

// insertSQL renders INSERT INTO "t" ("a", "b") VALUES (?, ?).
func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ddl.SQLite.Quote(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.SQLite.QuoteFQN(table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)
}

// CopyFrom inserts rows with one prepared INSERT inside a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("sqlite: CopyFrom: row %d has %d values for %d columns", i, len(row), len(columns))
		}
	}
	n, err := storage.ExecEach(ctx, r.db, insertSQL(r.cfg.Table, columns), len(rows),
		func(i int) []any { return rows[i] })
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert: %w", err)
	}
	return n, nil
}

// DeleteRows runs plan once per row in one transaction.
func (r *Repository) DeleteRows(ctx context.Context, plan storage.DeletePlan, rows [][]any) (int64, error) {
	n, err := storage.ExecEach(ctx, r.db, plan.SQL(ddl.SQLite, storage.QuestionMark), len(rows),
		func(i int) []any { return plan.Args(rows[i]) })
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete: %w", err)
	}
	return n, nil
}

// Exec executes an arbitrary statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}
