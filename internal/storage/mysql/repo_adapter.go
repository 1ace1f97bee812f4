package mysql

import (
	"context"

	"rowcore/internal/ddl"
	"rowcore/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Deleter    = (*wrappedRepo)(nil)
)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mysql", storage.SQLBootstrapper(ddl.MySQL))
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() { w.closeFn() }
