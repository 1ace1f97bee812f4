// Package mysql is the MySQL sink. Inserts are chunked multi-row INSERT
// statements; keyed deletes run as prepared statements in a transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"rowcore/internal/ddl"
	"rowcore/internal/storage"
)

// maxPlaceholders is the server's prepared statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN     string // go-sql-driver DSN, e.g. "user:pass@tcp(localhost:3306)/db"
	Table   string
	Columns []string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository parses the DSN, opens a pool and pings it. Times are read
// back as time.Time in UTC.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// insertSQL renders INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?) for n rows.
func insertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ddl.MySQL.Quote(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(ddl.MySQL.QuoteFQN(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}

// chunkRows is the number of rows per INSERT for the given width.
func chunkRows(width int) int {
	if width <= 0 {
		return 1
	}
	return max(1, maxPlaceholders/width)
}

// CopyFrom inserts rows with multi-row INSERT statements in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	step := chunkRows(len(columns))
	for lo := 0; lo < len(rows); lo += step {
		hi := min(lo+step, len(rows))
		args := make([]any, 0, (hi-lo)*len(columns))
		for i := lo; i < hi; i++ {
			if len(rows[i]) != len(columns) {
				return 0, fmt.Errorf("mysql: CopyFrom: row %d has %d values for %d columns", i, len(rows[i]), len(columns))
			}
			args = append(args, rows[i]...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(r.cfg.Table, columns, hi-lo), args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", lo, hi-1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// DeleteRows runs plan once per row in one transaction.
func (r *Repository) DeleteRows(ctx context.Context, plan storage.DeletePlan, rows [][]any) (int64, error) {
	return storage.ExecEach(ctx, r.db, plan.SQL(ddl.MySQL, storage.QuestionMark), len(rows),
		func(i int) []any { return plan.Args(rows[i]) })
}

// Exec executes a statement against the pool.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	_, err := r.db.ExecContext(ctx, stmt)
	return err
}
