package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strField(name string) Field { return NewField(name, TypeString) }

// Two streams that share a field name: the duplicate is kept under a new name
// and nothing already in the target moves.
func TestMergeInto_RenamesDuplicates(t *testing.T) {
	t.Parallel()

	left := MustRowMeta(strField("A"), strField("B"))
	right := MustRowMeta(strField("A"), strField("C"))

	out, mapping := MergeInto(left, right, "input2")

	assert.Equal(t, []string{"A", "B", "A[2]", "C"}, out.Names())
	assert.Equal(t, []int{2, 3}, mapping)
	assert.Equal(t, "input2", out.Field(2).Origin)
	assert.Equal(t, []string{"A", "B"}, left.Names(), "existing layout must not change")
	assert.Equal(t, []string{"A->A[2]"}, Renamed(right, out, mapping))
}

func TestMergeInto_ConstantsAreNotDuplicated(t *testing.T) {
	t.Parallel()

	left := MustRowMeta(strField("CONST_region"), strField("id"))
	right := MustRowMeta(strField("id"), strField("CONST_region"), strField("x"))

	out, mapping := MergeInto(left, right, "s")

	assert.Equal(t, []string{"CONST_region", "id", "id[2]", "x"}, out.Names())
	assert.Equal(t, []int{2, 0, 3}, mapping)
}

func TestMergeInto_EmptySides(t *testing.T) {
	t.Parallel()

	right := MustRowMeta(strField("a"))
	out, mapping := MergeInto(nil, right, "s")
	assert.Equal(t, []string{"a"}, out.Names())
	assert.Equal(t, []int{0}, mapping)

	out, mapping = MergeInto(right, nil, "s")
	assert.Equal(t, []string{"a"}, out.Names())
	assert.Empty(t, mapping)
}

func TestUniqueName(t *testing.T) {
	t.Parallel()

	m := MustRowMeta(strField("A"), strField("A[2]"), strField("B[2]"))

	tests := []struct {
		in, want string
	}{
		{"A", "A[3]"},
		{"A[2]", "A[3]"},
		{"B", "B[3]"},
		{"B[2]", "B[3]"},
		{"C", "C[2]"},
		{"x[y]", "x[y][2]"},
		{"[5]", "[5][2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UniqueName(m, tt.in), "UniqueName(%q)", tt.in)
	}
}

// Merging the same layout twice from one origin is a no-op.
func TestMerger_RepeatedMergeIsNoOp(t *testing.T) {
	t.Parallel()

	mg := NewMerger(MustRowMeta(strField("A"), strField("B")))
	in := MustRowMeta(strField("A"), strField("C"))

	first, m1 := mg.Merge(in, "s2")
	second, m2 := mg.Merge(in, "s2")

	assert.Same(t, first, second)
	assert.Equal(t, m1, m2)
	assert.Equal(t, []string{"A", "B", "A[2]", "C"}, mg.Snapshot().Names())
}

func TestMerger_SnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	mg := NewMerger(nil)
	mg.Merge(MustRowMeta(strField("A")), "s1")
	before := mg.Snapshot()

	mg.Merge(MustRowMeta(strField("B")), "s2")

	assert.Equal(t, []string{"A"}, before.Names())
	assert.Equal(t, []string{"A", "B"}, mg.Snapshot().Names())
}

// Concurrent producers each contribute "id" plus one own column. Whatever the
// interleaving, every field ends up present exactly once under some name.
func TestMerger_ConcurrentMerges(t *testing.T) {
	t.Parallel()

	const producers = 16
	mg := NewMerger(nil)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := MustRowMeta(strField("id"), strField("col"+string(rune('a'+i))))
			out, mapping := mg.Merge(in, "p"+string(rune('a'+i)))
			if assert.Len(t, mapping, 2) {
				assert.Equal(t, in.Field(1).Name, out.Field(mapping[1]).Name)
			}
			_ = mg.Snapshot().Len()
		}(i)
	}
	wg.Wait()

	final := mg.Snapshot()
	require.Equal(t, producers*2, final.Len())
	_, ok := final.Index("id")
	assert.True(t, ok)
	_, ok = final.Index("id[16]")
	assert.True(t, ok)
}
