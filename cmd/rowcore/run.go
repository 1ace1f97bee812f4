package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rowcore/internal/config"
	"rowcore/internal/datasource/file"
	"rowcore/internal/metrics"
	"rowcore/internal/parser/delimited"
	"rowcore/internal/schema"
	"rowcore/internal/storage"
	"rowcore/internal/transformer"
)

const defaultErrorLimit = 3

// counters holds cross-goroutine statistics for one run.
type counters struct {
	read        atomic.Int64 // rows leaving the readers
	parseErrors atomic.Int64 // records the tokenizer gave up on
	convErrors  atomic.Int64 // rows rejected by a transform
	written     atomic.Int64 // rows inserted or delete statements applied
	affected    atomic.Int64 // target rows inserted or deleted
	batches     atomic.Int64
}

// runtimeConfig is the resolved concurrency and buffering configuration.
// File values win; ROWCORE_* variables fill in what the file leaves at zero.
type runtimeConfig struct {
	transformers int
	batchSize    int
	bufferSize   int
	errorLimit   int
}

func newRuntimeConfig(p config.Pipeline) runtimeConfig {
	return runtimeConfig{
		transformers: pickInt(p.Runtime.TransformWorkers, getenvInt("ROWCORE_TRANSFORM_WORKERS", 1)),
		batchSize:    pickInt(p.Runtime.BatchSize, getenvInt("ROWCORE_BATCH_SIZE", 5000)),
		bufferSize:   pickInt(p.Runtime.ChannelBuffer, getenvInt("ROWCORE_CH_BUFFER", 1024)),
		errorLimit:   pickInt(p.Runtime.ErrorLimit, getenvInt("ROWCORE_ERROR_LIMIT", defaultErrorLimit)),
	}
}

// Test seams.
var (
	newRepositoryFn = storage.New
	openSourceFn    = openSource
)

func openSource(ctx context.Context, src config.Source) (io.ReadCloser, error) {
	switch src.Kind {
	case "file":
		l, err := file.NewLocal(src.File.Path, src.File.Encoding)
		if err != nil {
			return nil, err
		}
		return l.Open(ctx)
	}
	return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
}

// input is one opened source with its detected layout.
type input struct {
	step string
	rc   io.ReadCloser
	r    *delimited.Reader
	opts delimited.Options
	meta *schema.RowMeta
}

// openInputs opens every input and reads its layout concurrently. On error
// the inputs opened so far are closed.
func openInputs(ctx context.Context, p config.Pipeline, compat config.Compat) ([]*input, error) {
	ins := p.AllInputs()
	if len(ins) == 0 {
		return nil, errors.New("pipeline has no inputs")
	}
	out := make([]*input, len(ins))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range ins {
		g.Go(func() error {
			o, err := delimited.OptionsFrom(in.Parser.Options)
			if err != nil {
				return fmt.Errorf("%s: %w", in.Step, err)
			}
			o.LenientEnclosure = o.LenientEnclosure || compat.LenientEnclosure

			rc, err := openSourceFn(gctx, in.Source)
			if err != nil {
				return fmt.Errorf("%s: %w", in.Step, err)
			}
			r := delimited.NewReaderFromOptions(rc, o)
			meta, err := delimited.Layout(r, o, in.Step)
			if err != nil {
				rc.Close()
				return fmt.Errorf("%s: %w", in.Step, err)
			}
			out[i] = &input{step: in.Step, rc: rc, r: r, opts: o, meta: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeInputs(out)
		return nil, err
	}
	return out, nil
}

func closeInputs(ins []*input) {
	for _, in := range ins {
		if in != nil && in.rc != nil {
			_ = in.rc.Close()
		}
	}
}

// mergeLayouts folds the input layouts into one in configuration order, so
// renamed duplicates get the same names on every run. mappings[i] places
// input i's fields in the merged layout.
func mergeLayouts(job string, ins []*input) (*schema.RowMeta, [][]int) {
	m := schema.NewMerger(nil)
	mappings := make([][]int, len(ins))
	for i, in := range ins {
		result, mapping := m.Merge(in.meta, in.step)
		mappings[i] = mapping
		renamed := schema.Renamed(in.meta, result, mapping)
		for _, name := range renamed {
			log.Printf("merge: %s: renamed duplicate field %s", in.step, name)
		}
		metrics.RecordMerge(job, in.step, len(renamed))
	}
	return m.Snapshot(), mappings
}

// stage is one transform with its per-worker instances, all latched against
// the same input layout.
type stage struct {
	step    string
	in, out *schema.RowMeta
	workers []*transformer.SelectValues
}

func buildStages(p config.Pipeline, meta *schema.RowMeta, workers int, compat config.Compat) ([]stage, *schema.RowMeta, error) {
	var stages []stage
	cur := meta
	for i, t := range p.Transform {
		if t.Kind != "select_values" {
			return nil, nil, fmt.Errorf("transform[%d]: unsupported kind %q", i, t.Kind)
		}
		spec, err := transformer.SelectSpecFrom(t.Options)
		if err != nil {
			return nil, nil, fmt.Errorf("transform[%d]: %w", i, err)
		}
		step := t.Step
		if step == "" {
			step = t.Kind
		}
		st := stage{step: step, in: cur}
		for w := 0; w < workers; w++ {
			sv := transformer.NewSelectValues(spec, transformer.Options{TypeDefaults: compat.TypeDefaults, Step: step})
			out, err := sv.Prepare(cur)
			if err != nil {
				return nil, nil, err
			}
			st.out = out
			st.workers = append(st.workers, sv)
		}
		stages = append(stages, st)
		cur = st.out
	}
	return stages, cur, nil
}

// sink resolves the storage mode into a batch function.
type sink struct {
	repo      storage.Repository
	fn        storage.BatchFn
	batchSize int
	columns   int
}

func openSink(ctx context.Context, p config.Pipeline, meta *schema.RowMeta, rt runtimeConfig) (*sink, error) {
	cfg := storage.Config{
		Kind:    p.Storage.Kind,
		DSN:     p.Storage.DB.DSN,
		Table:   p.Storage.DB.Table,
		Columns: p.Storage.DB.Columns,
	}
	if len(cfg.Columns) == 0 {
		cfg.Columns = meta.Names()
	}

	var plan storage.DeletePlan
	deleting := p.Storage.EffectiveMode() == config.ModeDelete
	if deleting {
		var err error
		if plan, err = storage.BuildDeletePlan(p.Storage.Delete, meta); err != nil {
			return nil, err
		}
		cfg.Table = plan.Table
	}

	repo, err := newRepositoryFn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	if deleting {
		d, ok := repo.(storage.Deleter)
		if !ok {
			repo.Close()
			return nil, fmt.Errorf("storage.kind=%s does not support delete mode", cfg.Kind)
		}
		return &sink{repo: repo, fn: storage.DeleteFn(d, plan), batchSize: pickInt(plan.CommitSize, rt.batchSize), columns: len(plan.Keys)}, nil
	}

	if p.Storage.DB.AutoCreateTable {
		log.Printf("auto-create table enabled for %s", cfg.Table)
		if err := storage.EnsureTable(ctx, repo, cfg, meta); err != nil {
			repo.Close()
			return nil, fmt.Errorf("apply DDL: %w", err)
		}
	}
	idx, err := storage.Projection(meta, cfg.Columns)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return &sink{repo: repo, fn: storage.InsertFn(repo, cfg.Columns, idx, meta.Len()), batchSize: rt.batchSize, columns: len(cfg.Columns)}, nil
}

// runPipeline executes one run: every input is read and tokenized, the
// layouts are merged, rows go through the transform chain and are written
// in batches.
//
//	readers (one per input) → tap → stage 1 workers → … → loader
//
// Structural parse errors and conversion errors are counted, logged in
// aggregate and never reach storage. A fatal error in any goroutine cancels
// the rest.
func runPipeline(ctx context.Context, p config.Pipeline) (*counters, error) {
	rt := newRuntimeConfig(p)
	compat := config.ResolveCompat(p.Compat, os.Getenv)
	job := p.Job
	stats := &counters{}

	log.Printf("stream runtime: transformers=%d batch=%d buffer=%d", rt.transformers, rt.batchSize, rt.bufferSize)

	ins, err := openInputs(ctx, p, compat)
	if err != nil {
		return stats, err
	}
	defer closeInputs(ins)

	merged, mappings := mergeLayouts(job, ins)
	stages, final, err := buildStages(p, merged, rt.transformers, compat)
	if err != nil {
		return stats, err
	}

	sk, err := openSink(ctx, p, final, rt)
	if err != nil {
		return stats, err
	}
	defer sk.repo.Close()
	log.Printf("loader: mode=%s batch=%d columns=%d", p.Storage.EffectiveMode(), sk.batchSize, sk.columns)

	parseAgg := newErrAgg(rt.errorLimit)
	convAgg := newErrAgg(rt.errorLimit)

	g, gctx := errgroup.WithContext(ctx)

	// Readers.
	raw := make(chan *transformer.Row, rt.bufferSize)
	var readers sync.WaitGroup
	for i, in := range ins {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			start := time.Now()
			onErr := func(line int, err error) {
				stats.parseErrors.Add(1)
				metrics.RecordRow(job, "parse_error", 1)
				rec := ""
				var pe *delimited.ParseError
				if errors.As(err, &pe) {
					rec = pe.Record
				}
				parseAgg.add(transformer.StructuralError(in.step, line, rec, err).Error())
			}
			err := delimited.StreamRows(gctx, in.r, in.opts, merged.Len(), mappings[i], raw, onErr)
			metrics.RecordStep(job, in.step, err, time.Since(start))
			if err != nil {
				return fmt.Errorf("%s: %w", in.step, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(raw)
		return nil
	})

	// Tap: count rows leaving the readers.
	tapped := make(chan *transformer.Row, rt.bufferSize)
	g.Go(func() error {
		defer close(tapped)
		for r := range raw {
			stats.read.Add(1)
			select {
			case tapped <- r:
			case <-gctx.Done():
				r.Free()
				for r := range raw {
					r.Free()
				}
				return gctx.Err()
			}
		}
		return nil
	})

	// Transform stages.
	cur := (<-chan *transformer.Row)(tapped)
	for _, st := range stages {
		out := make(chan *transformer.Row, rt.bufferSize)
		in := cur
		var workers sync.WaitGroup
		for _, sv := range st.workers {
			workers.Add(1)
			g.Go(func() error {
				defer workers.Done()
				start := time.Now()
				err := transformer.SelectLoopRows(gctx, sv, st.in, in, out, func(e transformer.ErrorRow) {
					stats.convErrors.Add(1)
					metrics.RecordConversionError(job, e.Step, e.Field)
					convAgg.add(e.Error())
				})
				metrics.RecordStep(job, st.step, err, time.Since(start))
				return err
			})
		}
		g.Go(func() error {
			workers.Wait()
			close(out)
			return nil
		})
		cur = out
	}

	// Loader.
	g.Go(func() error {
		start := time.Now()
		onFlush := func(n int64) {
			metrics.RecordBatches(job, 1)
			metrics.RecordRow(job, "written", n)
		}
		fn := func(ctx context.Context, rows [][]any) (int64, error) {
			n, err := sk.fn(ctx, rows)
			if err == nil {
				stats.written.Add(int64(len(rows)))
				stats.affected.Add(n)
			}
			return n, err
		}
		ls, err := storage.LoadRows(gctx, cur, sk.batchSize, fn, onFlush)
		stats.batches.Store(ls.Batches)
		metrics.RecordStep(job, "load", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		return nil
	})

	err = g.Wait()
	metrics.RecordRow(job, "read", stats.read.Load())
	logErrorSummaries(parseAgg, convAgg)
	logGlobalSummary(stats, err == nil)
	return stats, err
}

// logErrorSummaries prints the first messages of each error kind.
func logErrorSummaries(parseAgg, convAgg *errAgg) {
	for _, a := range []struct {
		what string
		agg  *errAgg
	}{{"structural parse errors", parseAgg}, {"conversion errors", convAgg}} {
		count, first := a.agg.snapshot()
		if count == 0 {
			continue
		}
		log.Printf("%s: %d (showing first %d)", a.what, count, len(first))
		for i, s := range first {
			log.Printf("  #%03d: %s", i+1, s)
		}
	}
}

// logGlobalSummary prints the run totals. When the run completed, every
// row read is either written or rejected by a transform:
//
//	read == written + conversion_errors
func logGlobalSummary(c *counters, complete bool) {
	read, written, conv := c.read.Load(), c.written.Load(), c.convErrors.Load()
	log.Printf(
		"summary: read=%d parse_errors=%d conversion_errors=%d written=%d affected=%d batches=%d",
		read, c.parseErrors.Load(), conv, written, c.affected.Load(), c.batches.Load(),
	)
	if complete && read != written+conv {
		log.Printf("WARNING: row accounting mismatch: read=%d accounted=%d (delta=%d)", read, written+conv, read-written-conv)
	}
}

// errAgg keeps a count and the first limit messages.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg { return &errAgg{limit: limit} }

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) snapshot() (int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, append([]string(nil), a.first...)
}

// getenvInt reads an int from the environment, returning def when unset or
// invalid.
func getenvInt(k string, def int) int {
	if s := strings.TrimSpace(os.Getenv(k)); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses a when positive, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
