package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"rowcore/internal/schema"
	"rowcore/internal/transformer"
)

// BatchFn writes one batch and returns the number of rows the sink reports.
type BatchFn func(ctx context.Context, rows [][]any) (int64, error)

// LoadStats are the running totals of one LoadRows call.
type LoadStats struct {
	Rows    int64
	Batches int64
}

// LoadRows drains pooled rows from in, groups them into batches of
// batchSize and hands each batch to fn. Rows are freed after their batch is
// written. onFlush, when set, sees the count of every successful batch.
//
// On the first failing batch or on cancellation LoadRows stops, frees
// whatever it still holds and keeps draining in so upstream never blocks.
func LoadRows(
	ctx context.Context,
	in <-chan *transformer.Row,
	batchSize int,
	fn BatchFn,
	onFlush func(n int64),
) (LoadStats, error) {
	if batchSize <= 0 {
		return LoadStats{}, fmt.Errorf("batchSize must be > 0")
	}
	if fn == nil {
		return LoadStats{}, fmt.Errorf("batch function must not be nil")
	}

	var (
		st        LoadStats
		batch     = make([]*transformer.Row, 0, batchSize)
		slab      = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
		lastRows  int64
	)

	release := func() {
		for _, r := range batch {
			r.Free()
		}
		batch = batch[:0]
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		slab = slab[:0]
		for _, r := range batch {
			slab = append(slab, r.V)
		}
		n, err := fn(ctx, slab)
		first, last := batch[0].Line, batch[len(batch)-1].Line
		size := len(batch)
		release()
		if err != nil {
			log.Printf("loader: batch failed rows=%d lines=%d-%d: %v", size, first, last, err)
			return err
		}

		st.Rows += n
		st.Batches++
		if onFlush != nil {
			onFlush(n)
		}

		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(st.Rows-lastRows) / since.Seconds()
		}
		log.Printf("batch #%d: rps=%.0f rows=%d total=%d elapsed=%s",
			st.Batches, rps, n, st.Rows, now.Sub(start).Truncate(time.Millisecond))
		lastFlush, lastRows = now, st.Rows
		return nil
	}

	stop := func(err error) (LoadStats, error) {
		release()
		go func() {
			for r := range in {
				r.Free()
			}
		}()
		return st, err
	}

	for {
		select {
		case <-ctx.Done():
			return stop(ctx.Err())

		case r, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return st, err
				}
				return st, nil
			}
			batch = append(batch, r)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return stop(err)
				}
			}
		}
	}
}

// Projection returns the positions in meta of columns, in order. An empty
// columns list selects every field.
func Projection(meta *schema.RowMeta, columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, meta.Len())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := meta.Index(c)
		if !ok {
			return nil, fmt.Errorf("column %q is not in the row layout", c)
		}
		idx[i] = j
	}
	return idx, nil
}

func identity(idx []int, width int) bool {
	if len(idx) != width {
		return false
	}
	for i, j := range idx {
		if i != j {
			return false
		}
	}
	return true
}

// InsertFn writes batches with repo.CopyFrom. idx projects rows laid out as
// a width-wide layout onto columns.
func InsertFn(repo Repository, columns []string, idx []int, width int) BatchFn {
	if identity(idx, width) {
		return func(ctx context.Context, rows [][]any) (int64, error) {
			return repo.CopyFrom(ctx, columns, rows)
		}
	}
	return func(ctx context.Context, rows [][]any) (int64, error) {
		out := make([][]any, len(rows))
		for i, row := range rows {
			p := make([]any, len(idx))
			for k, j := range idx {
				p[k] = row[j]
			}
			out[i] = p
		}
		return repo.CopyFrom(ctx, columns, out)
	}
}

// DeleteFn removes, for every row, the target rows matching plan.
func DeleteFn(d Deleter, plan DeletePlan) BatchFn {
	return func(ctx context.Context, rows [][]any) (int64, error) {
		return d.DeleteRows(ctx, plan, rows)
	}
}
