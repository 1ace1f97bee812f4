package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowcore/internal/storage"
)

// TestRegistrationUsesHook checks that storage.New reaches this backend
// through the newRepository hook and that Close is delegated.
func TestRegistrationUsesHook(t *testing.T) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		called bool
		gotCfg Config
		closed bool

		fakeRepo = &Repository{}
	)

	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	cfg := storage.Config{
		Kind:    "sqlite",
		DSN:     "file:rowcore?mode=memory",
		Table:   "events",
		Columns: []string{"id", "name"},
	}

	repo, err := storage.New(ctx, cfg)
	require.NoError(t, err)
	require.True(t, called, "newRepository hook was not called")
	assert.Equal(t, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns}, gotCfg)
	assert.Implements(t, (*storage.Deleter)(nil), repo)

	w, ok := repo.(*wrappedRepo)
	require.True(t, ok, "storage.New() type = %T, want *wrappedRepo", repo)
	assert.Same(t, fakeRepo, w.Repository)

	repo.Close()
	assert.True(t, closed, "Close() did not invoke closeFn")
}

// BenchmarkStorageNew measures storage.New through the hook.
func BenchmarkStorageNew(b *testing.B) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		return &Repository{cfg: cfg}, func() {}, nil
	}

	cfg := storage.Config{
		Kind:    "sqlite",
		DSN:     "file:rowcore?mode=memory",
		Table:   "events",
		Columns: []string{"id", "name", "created_at"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		repo, err := storage.New(ctx, cfg)
		if err != nil {
			b.Fatalf("storage.New() error = %v", err)
		}
		repo.Close()
	}
}
