package schema

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MergeInto reconciles incoming into existing and returns the merged layout
// together with, for every incoming position, its index in the result.
//
// Incoming fields are visited in order:
//   - a name not yet present is appended as is;
//   - a name already present on a non-constant field is appended under a
//     fresh name (see UniqueName) tagged with origin;
//   - a constant field whose name is already present is skipped and maps to
//     the existing position.
//
// Existing fields are never removed or reordered and neither argument is
// modified.
func MergeInto(existing, incoming *RowMeta, origin string) (*RowMeta, []int) {
	out := existing.Clone()
	mapping := make([]int, incoming.Len())
	for i := 0; i < incoming.Len(); i++ {
		f := incoming.Field(i)
		j, found := out.Index(f.Name)
		switch {
		case !found:
			mapping[i] = out.Len()
			_ = out.Add(f)
		case !f.IsConstant():
			mapping[i] = out.Len()
			_ = out.Add(f.Renamed(UniqueName(out, f.Name), origin))
		default:
			mapping[i] = j
		}
	}
	return out, mapping
}

// UniqueName returns the first name of the form base[n], n >= 2, that is not
// used in m. A name that already carries a [n] suffix continues counting from
// n, so "A[2]" becomes "A[3]".
func UniqueName(m *RowMeta, name string) string {
	base, n := splitCounter(name)
	for {
		n++
		candidate := base + "[" + strconv.Itoa(n) + "]"
		if _, taken := m.Index(candidate); !taken {
			return candidate
		}
	}
}

func splitCounter(name string) (string, int) {
	if !strings.HasSuffix(name, "]") {
		return name, 1
	}
	open := strings.LastIndexByte(name, '[')
	if open <= 0 {
		return name, 1
	}
	n, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil || n < 1 {
		return name, 1
	}
	return name[:open], n
}

// Merger is the shared downstream layout that several producers merge into
// while a pipeline is wired. Merges are serialised; Snapshot never blocks.
type Merger struct {
	mu   sync.Mutex
	cur  atomic.Pointer[RowMeta]
	seen map[string]merged
}

type merged struct {
	fingerprint uint64
	mapping     []int
}

// NewMerger starts from initial, which may be nil.
func NewMerger(initial *RowMeta) *Merger {
	m := &Merger{seen: make(map[string]merged)}
	if initial == nil {
		initial = &RowMeta{index: map[string]int{}}
	}
	m.cur.Store(initial)
	return m
}

// Snapshot returns the currently published layout. Callers must not modify it.
func (m *Merger) Snapshot() *RowMeta { return m.cur.Load() }

// Merge folds incoming into the shared layout on behalf of origin and
// publishes the result. Merging the same layout again from the same origin
// returns the earlier mapping without changing anything.
func (m *Merger) Merge(incoming *RowMeta, origin string) (*RowMeta, []int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp := incoming.Fingerprint()
	if prev, ok := m.seen[origin]; ok && prev.fingerprint == fp {
		return m.cur.Load(), append([]int(nil), prev.mapping...)
	}

	next, mapping := MergeInto(m.cur.Load(), incoming, origin)
	m.seen[origin] = merged{fingerprint: fp, mapping: mapping}
	m.cur.Store(next)
	return next, append([]int(nil), mapping...)
}

// Renamed lists "old->new" for every incoming field that a merge renamed.
func Renamed(incoming, result *RowMeta, mapping []int) []string {
	var out []string
	for i, j := range mapping {
		if from, to := incoming.Field(i).Name, result.Field(j).Name; from != to {
			out = append(out, fmt.Sprintf("%s->%s", from, to))
		}
	}
	return out
}
