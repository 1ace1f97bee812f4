package bench

import (
	"context"
	"testing"

	"rowcore/internal/parser/delimited"
	"rowcore/internal/schema"
	"rowcore/internal/storage"
	"rowcore/internal/transformer"
)

// BenchmarkEndToEnd exercises the hot path of tokenizing, select_values
// conversion and batch loading in memory. No I/O and no database driver is
// involved; the batch function only counts rows.
//
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkEndToEnd$ -cpuprofile cpu.out -memprofile mem.out -count=1 ./internal/bench
func BenchmarkEndToEnd(b *testing.B) {
	ctx := context.Background()

	meta, err := schema.Strings("bench", "pcv", "typ", "stav", "platnost_od", "aktualni")
	if err != nil {
		b.Fatal(err)
	}
	sv := transformer.NewSelectValues(transformer.SelectSpec{Meta: []transformer.MetaChange{
		{Name: "pcv", Type: schema.TypeInteger},
		{Name: "platnost_od", Type: schema.TypeDate, ConversionMask: "dd.MM.yyyy"},
		{Name: "aktualni", Type: schema.TypeBoolean},
	}}, transformer.Options{Step: "bench"})

	tok := delimited.NewTokenizer(";", "\"", "")
	const line = `123456;"E - Evidenční";Nezjištěno;07.10.2011;True`

	in := make(chan *transformer.Row, 8192)
	go func() {
		defer close(in)
		fields := make([]string, 0, meta.Len())
		for i := 0; i < b.N; i++ {
			fields = tok.AppendFields(fields[:0], line)
			r := transformer.GetRow(meta.Len())
			for j, f := range fields {
				r.V[j] = f
			}
			r.Line = i + 2
			in <- r
		}
	}()

	out := make(chan *transformer.Row, 8192)
	var rejected int
	go func() {
		defer close(out)
		if err := transformer.SelectLoopRows(ctx, sv, meta, in, out, func(transformer.ErrorRow) { rejected++ }); err != nil {
			b.Error(err)
		}
	}()

	count := func(_ context.Context, rows [][]any) (int64, error) {
		return int64(len(rows)), nil
	}

	b.ReportAllocs()
	b.ResetTimer()
	st, err := storage.LoadRows(ctx, out, 4096, count, nil)
	b.StopTimer()

	if err != nil {
		b.Fatalf("LoadRows: %v", err)
	}
	if rejected != 0 || st.Rows != int64(b.N) {
		b.Fatalf("rows=%d rejected=%d, want %d and 0", st.Rows, rejected, b.N)
	}
}
