package transformer

import "sync"

// Row is a pooled positional row travelling reader → select → loader.
//
// Contract:
//   - The owning stage writes r.V[0:n] and hands r downstream; it must not
//     touch r afterwards.
//   - The last stage (loader, or whoever drops the row) calls r.Free().
//   - Line is the physical input line the row started on, for error reports.
type Row struct {
	V    []any
	Line int
}

var rowPool sync.Pool

// GetRow returns a pooled Row of length n with every value nil.
func GetRow(n int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < n {
			r.V = make([]any, n)
		}
		r.V = r.V[:n]
		clear(r.V)
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, n)}
}

// Free returns r to the pool. r must not be used afterwards.
func (r *Row) Free() { rowPool.Put(r) }

// Snapshot copies the values of r so they survive r.Free.
func (r *Row) Snapshot() []any {
	out := make([]any, len(r.V))
	copy(out, r.V)
	return out
}
