//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowcore/internal/schema"
	"rowcore/internal/storage"
)

// TestRepository_Integration runs the full sink path against a live server:
// registry lookup, DDL bootstrap, bulk copy and keyed delete. Set
// MSSQL_TEST_DSN and build with -tags integration.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	meta := schema.MustRowMeta(
		schema.NewField("id", schema.TypeInteger),
		schema.NewField("amount", schema.TypeBigNumber),
		schema.NewField("name", schema.TypeString),
	)
	cfg := storage.Config{Kind: "mssql", DSN: dsn, Table: "dbo.rowcore_it", Columns: meta.Names()}

	repo, err := storage.New(ctx, cfg)
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Exec(ctx, "IF OBJECT_ID('dbo.rowcore_it', 'U') IS NOT NULL DROP TABLE dbo.rowcore_it;"))
	for i := 0; i < 2; i++ {
		require.NoError(t, storage.EnsureTable(ctx, repo, cfg, meta), "EnsureTable #%d", i+1)
	}

	rows := [][]any{
		{int64(1), decimal.RequireFromString("10.50"), "alice"},
		{int64(2), decimal.RequireFromString("-3"), "bob"},
		{int64(3), nil, nil},
	}
	n, err := repo.CopyFrom(ctx, cfg.Columns, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	d, ok := repo.(storage.Deleter)
	require.True(t, ok, "mssql repository must support deletes")
	plan := storage.DeletePlan{
		Table: cfg.Table,
		Keys:  []storage.DeleteKey{{Lookup: "id", Condition: "<=", Stream: 0, Stream2: -1}},
	}
	deleted, err := d.DeleteRows(ctx, plan, [][]any{{int64(2)}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
