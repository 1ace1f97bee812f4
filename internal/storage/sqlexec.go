package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ExecEach prepares stmt inside one transaction, executes it n times with
// args(i) and commits. It returns the summed affected-row counts; on error
// the transaction is rolled back and the count is 0.
func ExecEach(ctx context.Context, db *sql.DB, stmt string, n int, args func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer ps.Close()

	var total int64
	for i := 0; i < n; i++ {
		res, err := ps.ExecContext(ctx, args(i)...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if k, err := res.RowsAffected(); err == nil {
			total += k
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}
