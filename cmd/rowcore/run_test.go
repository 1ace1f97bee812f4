package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowcore/internal/config"
	"rowcore/internal/storage"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func fileInput(step, path string) config.Input {
	return config.Input{
		Step:   step,
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: path}},
		Parser: config.Parser{Kind: "delimited", Options: config.Options{"separator": ";"}},
	}
}

func toInteger(fields ...string) config.Transform {
	meta := make([]any, len(fields))
	for i, f := range fields {
		meta[i] = map[string]any{"name": f, "type": "Integer"}
	}
	return config.Transform{Kind: "select_values", Step: "types", Options: config.Options{"meta": meta}}
}

func sqliteStorage(dbPath, table string) config.Storage {
	return config.Storage{Kind: "sqlite", DB: config.DBConfig{DSN: dbPath, Table: table, AutoCreateTable: true}}
}

func queryStrings(t *testing.T, dbPath, q string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(q)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s sql.NullString
		require.NoError(t, rows.Scan(&s))
		out = append(out, s.String)
	}
	require.NoError(t, rows.Err())
	sort.Strings(out)
	return out
}

// TestRunPipeline_MergeConvertLoad reads two inputs with a shared field
// name, converts ids to integers and loads everything into SQLite.
func TestRunPipeline_MergeConvertLoad(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.csv", "id;name\n1;Anna\n2;Bob\nx;Carl\n")
	b := writeInput(t, dir, "b.csv", "id;city\n3;Brno\n")
	dbPath := filepath.Join(dir, "out.db")

	p := config.Pipeline{
		Job:       "test",
		Inputs:    []config.Input{fileInput("people", a), fileInput("cities", b)},
		Transform: []config.Transform{toInteger("id", "id[2]")},
		Storage:   sqliteStorage(dbPath, "people"),
		Runtime:   config.RuntimeConfig{BatchSize: 2, TransformWorkers: 2},
	}

	stats, err := runPipeline(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.read.Load())
	assert.EqualValues(t, 1, stats.convErrors.Load(), "x is not an integer")
	assert.EqualValues(t, 3, stats.written.Load())
	assert.EqualValues(t, 0, stats.parseErrors.Load())
	assert.EqualValues(t, 2, stats.batches.Load())

	assert.Equal(t, []string{"", "1", "2"}, queryStrings(t, dbPath, `SELECT "id" FROM "people"`))
	assert.Equal(t, []string{"", "", "3"}, queryStrings(t, dbPath, `SELECT "id[2]" FROM "people"`))
	assert.Equal(t, []string{"", "", "Brno"}, queryStrings(t, dbPath, `SELECT "city" FROM "people"`))
	assert.Equal(t, []string{"integer", "integer", "null"}, queryStrings(t, dbPath, `SELECT typeof("id") FROM "people"`))
}

func TestRunPipeline_StructuralErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", "id;name\n1;ok\n2;\"open\n")
	dbPath := filepath.Join(dir, "out.db")

	p := config.Pipeline{
		Job:     "test",
		Source:  fileInput("", in).Source,
		Parser:  fileInput("", in).Parser,
		Storage: sqliteStorage(dbPath, "t"),
	}
	stats, err := runPipeline(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.parseErrors.Load())
	assert.EqualValues(t, 1, stats.written.Load())
	assert.Equal(t, []string{"ok"}, queryStrings(t, dbPath, `SELECT "name" FROM "t"`))

	// Lenient enclosure cuts the record at the line break instead.
	t.Setenv(config.EnvLenientEnclosure, "Y")
	stats, err = runPipeline(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.parseErrors.Load())
	assert.EqualValues(t, 2, stats.written.Load())
}

func TestRunPipeline_DeleteMode(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "out.db")
	load := writeInput(t, dir, "load.csv", "id;name\n1;a\n2;b\n3;c\n")
	del := writeInput(t, dir, "del.csv", "key\n1\n3\n9\n")

	_, err := runPipeline(context.Background(), config.Pipeline{
		Job:       "load",
		Inputs:    []config.Input{fileInput("load", load)},
		Transform: []config.Transform{toInteger("id")},
		Storage:   sqliteStorage(dbPath, "items"),
	})
	require.NoError(t, err)

	stats, err := runPipeline(context.Background(), config.Pipeline{
		Job:       "delete",
		Inputs:    []config.Input{fileInput("del", del)},
		Transform: []config.Transform{toInteger("key")},
		Storage: config.Storage{
			Kind: "sqlite",
			Mode: config.ModeDelete,
			DB:   config.DBConfig{DSN: dbPath},
			Delete: config.DeleteConfig{
				Table:      "items",
				CommitSize: 2,
				Keys:       []config.DeleteKey{{Stream: "key", Lookup: "id"}},
			},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.written.Load())
	assert.EqualValues(t, 2, stats.affected.Load())
	assert.EqualValues(t, 2, stats.batches.Load())
	assert.Equal(t, []string{"b"}, queryStrings(t, dbPath, `SELECT "name" FROM "items"`))
}

// insertOnly is a repository without delete support.
type insertOnly struct{ closed bool }

func (r *insertOnly) CopyFrom(context.Context, []string, [][]any) (int64, error) { return 0, nil }
func (r *insertOnly) Exec(context.Context, string) error                         { return nil }
func (r *insertOnly) Close()                                                     { r.closed = true }

func TestRunPipeline_SetupErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.csv", "id\n1\n")

	orig := newRepositoryFn
	defer func() { newRepositoryFn = orig }()
	repo := &insertOnly{}
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil }

	base := config.Pipeline{Inputs: []config.Input{fileInput("in", in)}}

	p := base
	p.Storage = config.Storage{Kind: "fake", Mode: config.ModeDelete, Delete: config.DeleteConfig{
		Table: "t", Keys: []config.DeleteKey{{Stream: "id", Lookup: "id"}},
	}}
	_, err := runPipeline(context.Background(), p)
	require.ErrorContains(t, err, "does not support delete mode")
	assert.True(t, repo.closed)

	p = base
	p.Storage = config.Storage{Kind: "fake", DB: config.DBConfig{Table: "t", Columns: []string{"missing"}}}
	_, err = runPipeline(context.Background(), p)
	require.ErrorContains(t, err, "missing")

	p = base
	p.Transform = []config.Transform{{Kind: "select_values", Options: config.Options{"select": []any{map[string]any{"name": "nope"}}}}}
	p.Storage = config.Storage{Kind: "fake", DB: config.DBConfig{Table: "t"}}
	_, err = runPipeline(context.Background(), p)
	require.Error(t, err, "selecting an unknown field fails before any row is read")

	p = base
	p.Inputs = []config.Input{fileInput("gone", filepath.Join(dir, "gone.csv"))}
	_, err = runPipeline(context.Background(), p)
	require.ErrorContains(t, err, "gone")

	_, err = runPipeline(context.Background(), config.Pipeline{})
	require.ErrorContains(t, err, "no inputs")
}

func TestNewRuntimeConfig_EnvFallback(t *testing.T) {
	t.Setenv("ROWCORE_BATCH_SIZE", "77")
	t.Setenv("ROWCORE_TRANSFORM_WORKERS", "junk")

	rt := newRuntimeConfig(config.Pipeline{Runtime: config.RuntimeConfig{ChannelBuffer: 8}})
	assert.Equal(t, 77, rt.batchSize)
	assert.Equal(t, 1, rt.transformers)
	assert.Equal(t, 8, rt.bufferSize)
	assert.Equal(t, defaultErrorLimit, rt.errorLimit)
}

func TestErrAgg(t *testing.T) {
	t.Parallel()

	a := newErrAgg(2)
	for _, m := range []string{"a", "b", "c"} {
		a.add(m)
	}
	n, first := a.snapshot()
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b"}, first)
}

func TestWithListedInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	list := writeInput(t, dir, "inputs.txt", "# extra\nmore.csv\n")
	base := config.Pipeline{Inputs: []config.Input{fileInput("main", "main.csv")}}

	p, err := withListedInputs(base, list)
	require.NoError(t, err)
	require.Len(t, p.Inputs, 2)
	assert.Equal(t, "list1", p.Inputs[1].Step)
	assert.Equal(t, filepath.Join(dir, "more.csv"), p.Inputs[1].Source.File.Path)
	assert.Equal(t, ";", p.Inputs[1].Parser.Options.String("separator", ""))

	_, err = withListedInputs(config.Pipeline{}, list)
	assert.Error(t, err)
}

func TestReportIssues(t *testing.T) {
	t.Parallel()

	assert.True(t, reportIssues([]config.Issue{{Severity: config.SeverityWarning, Path: "x", Message: "w"}}))
	assert.False(t, reportIssues([]config.Issue{{Severity: config.SeverityError, Path: "x", Message: "e"}}))
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

// TestSampleConfig keeps the shipped sample pipeline valid and runnable.
func TestSampleConfig(t *testing.T) {
	p, err := config.Load(filepath.Join("..", "..", "configs", "pipelines", "sample.yaml"))
	require.NoError(t, err)
	require.True(t, reportIssues(config.ValidatePipeline(p)))

	for i := range p.Inputs {
		p.Inputs[i].Source.File.Path = filepath.Join("..", "..", p.Inputs[i].Source.File.Path)
	}
	dbPath := filepath.Join(t.TempDir(), "sample.db")
	p.Storage.DB.DSN = dbPath

	stats, err := runPipeline(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.written.Load())
	assert.EqualValues(t, 0, stats.convErrors.Load())
	assert.Equal(t, []string{"", "", "3205"}, queryStrings(t, dbPath, `SELECT "stk" FROM "vehicles"`))
	assert.Equal(t, []string{"", "", "7263067"}, queryStrings(t, dbPath, `SELECT "pcv[2]" FROM "vehicles"`))
}
