package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowcore/internal/storage"
)

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"INSERT INTO `shop`.`orders` (`id`, `na``me`) VALUES (?, ?), (?, ?)",
		insertSQL("shop.orders", []string{"id", "na`me"}, 2))
}

func TestChunkRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		width, want int
	}{
		{0, 1},
		{1, maxPlaceholders},
		{3, maxPlaceholders / 3},
		{maxPlaceholders + 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chunkRows(tt.width), "width %d", tt.width)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"})
	assert.ErrorContains(t, err, "mysql dsn")
}

func TestCopyFrom_Validation(t *testing.T) {
	t.Parallel()

	r := &Repository{}
	_, err := r.CopyFrom(context.Background(), nil, [][]any{{1}})
	assert.Error(t, err, "empty column list")

	n, err := r.CopyFrom(context.Background(), []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{
		Kind: "mysql", DSN: "u:p@tcp(localhost:3306)/db", Table: "orders", Columns: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "orders", gotCfg.Table)
	assert.Equal(t, []string{"id"}, gotCfg.Columns)
	assert.Implements(t, (*storage.Deleter)(nil), repo)

	repo.Close()
	assert.True(t, closed, "Close() did not invoke closeFn")
}

// TestRepository_Integration needs a reachable server:
//
//	TEST_MYSQL_DSN='root:secret@tcp(127.0.0.1:3306)/test' go test ./internal/storage/mysql -run Integration
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: set TEST_MYSQL_DSN to run")
	}
	ctx := context.Background()

	r, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "__rowcore_test"})
	require.NoError(t, err)
	defer closeFn()

	_ = r.Exec(ctx, "DROP TABLE IF EXISTS `__rowcore_test`")
	require.NoError(t, r.Exec(ctx, "CREATE TABLE `__rowcore_test` (`id` BIGINT, `name` VARCHAR(20))"))

	n, err := r.CopyFrom(ctx, []string{"id", "name"}, [][]any{{int64(1), "a"}, {int64(2), nil}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	plan := storage.DeletePlan{
		Table: "__rowcore_test",
		Keys:  []storage.DeleteKey{{Lookup: "name", Condition: "IS NULL", Stream: -1, Stream2: -1}},
	}
	n, err = r.DeleteRows(ctx, plan, [][]any{{nil, nil}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
