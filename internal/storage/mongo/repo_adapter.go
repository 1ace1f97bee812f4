package mongo

import (
	"context"
	"fmt"

	"rowcore/internal/schema"
	"rowcore/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

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
	storage.Register("mongo", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("mongo", bootstrap)
}

// bootstrap creates the target collection. Collections are schemaless, so
// the row layout is not used.
func bootstrap(ctx context.Context, repo storage.Repository, _ storage.Config, _ *schema.RowMeta) error {
	w, ok := repo.(*wrappedRepo)
	if !ok {
		return fmt.Errorf("mongo: bootstrap needs a mongo repository, got %T", repo)
	}
	return w.ensureCollection(ctx)
}
