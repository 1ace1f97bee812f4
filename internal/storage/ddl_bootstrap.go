package storage

import (
	"context"
	"fmt"
	"sync"

	"rowcore/internal/ddl"
	"rowcore/internal/schema"
)

// DDLBootstrapper creates the sink's target (table, collection) for rows
// laid out as meta when it does not exist yet.
type DDLBootstrapper func(ctx context.Context, repo Repository, cfg Config, meta *schema.RowMeta) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable runs the bootstrapper registered for cfg.Kind.
func EnsureTable(ctx context.Context, repo Repository, cfg Config, meta *schema.RowMeta) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", cfg.Kind)
	}
	return fn(ctx, repo, cfg, meta)
}

// SQLBootstrapper returns a bootstrapper that renders CREATE TABLE in dialect
// d and runs it through repo.Exec.
func SQLBootstrapper(d ddl.Dialect) DDLBootstrapper {
	return func(ctx context.Context, repo Repository, cfg Config, meta *schema.RowMeta) error {
		td, err := ddl.FromRowMeta(cfg.Table, meta, cfg.Columns, d)
		if err != nil {
			return fmt.Errorf("infer table definition: %w", err)
		}
		stmt, err := ddl.BuildCreateTableSQL(td, d)
		if err != nil {
			return fmt.Errorf("render DDL: %w", err)
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	}
}
