// Package storage holds the sink contracts shared by all backends and the
// factory that opens them by kind. Backends register themselves from init;
// import rowcore/internal/storage/all to get every built-in kind.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the backend-agnostic sink configuration.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Columns []string
}

// Repository is the insert side every backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number
	// of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, stmt string) error
	Close()
}

// Deleter is implemented by backends that support keyed deletes.
type Deleter interface {
	// DeleteRows applies plan once per row inside one unit of work and
	// returns the number of target rows removed.
	DeleteRows(ctx context.Context, plan DeletePlan, rows [][]any) (int64, error)
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
