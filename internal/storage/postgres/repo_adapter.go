package postgres

import (
	"context"

	"rowcore/internal/ddl"
	"rowcore/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds the close function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Deleter    = (*wrappedRepo)(nil)
)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("postgres", storage.SQLBootstrapper(ddl.Postgres))
}
