package schema

import (
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// RowMeta is an ordered sequence of fields with a name index. Names are
// unique and lookups are exact (case-sensitive).
//
// The zero value and a nil *RowMeta are both valid empty layouts.
type RowMeta struct {
	fields []Field
	index  map[string]int
}

// NewRowMeta builds a layout from fields in order. Duplicate names are an
// error.
func NewRowMeta(fields ...Field) (*RowMeta, error) {
	m := &RowMeta{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := m.Add(f); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustRowMeta is NewRowMeta for static layouts; it panics on duplicates.
func MustRowMeta(fields ...Field) *RowMeta {
	m, err := NewRowMeta(fields...)
	if err != nil {
		panic(err)
	}
	return m
}

// Strings builds a layout of String fields named names.
func Strings(origin string, names ...string) (*RowMeta, error) {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = NewField(n, TypeString)
		fields[i].Origin = origin
	}
	return NewRowMeta(fields...)
}

func (m *RowMeta) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields)
}

// Field returns the field at position i. It panics when i is out of range.
func (m *RowMeta) Field(i int) Field { return m.fields[i] }

// Fields returns a copy of the ordered field list.
func (m *RowMeta) Fields() []Field {
	if m == nil {
		return nil
	}
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Names returns the field names in order.
func (m *RowMeta) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of name, or false when it is absent.
func (m *RowMeta) Index(name string) (int, bool) {
	if m == nil {
		return -1, false
	}
	i, ok := m.index[name]
	if !ok {
		return -1, false
	}
	return i, true
}

// Search returns the field called name, or false when it is absent.
func (m *RowMeta) Search(name string) (Field, bool) {
	i, ok := m.Index(name)
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// Add appends f. It must only be used while a layout is being built, never
// on one that other goroutines can already see.
func (m *RowMeta) Add(f Field) error {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, dup := m.index[f.Name]; dup {
		return fmt.Errorf("schema: duplicate field name %q", f.Name)
	}
	m.index[f.Name] = len(m.fields)
	m.fields = append(m.fields, f)
	return nil
}

// Set replaces the field at position i. The new name must not collide with a
// different position.
func (m *RowMeta) Set(i int, f Field) error {
	old := m.fields[i]
	if j, ok := m.index[f.Name]; ok && j != i {
		return fmt.Errorf("schema: duplicate field name %q", f.Name)
	}
	delete(m.index, old.Name)
	m.index[f.Name] = i
	m.fields[i] = f
	return nil
}

// Clone returns a deep copy that can be modified freely.
func (m *RowMeta) Clone() *RowMeta {
	if m == nil {
		return &RowMeta{index: map[string]int{}}
	}
	c := &RowMeta{
		fields: make([]Field, len(m.fields), cap(m.fields)),
		index:  make(map[string]int, len(m.index)),
	}
	copy(c.fields, m.fields)
	for k, v := range m.index {
		c.index[k] = v
	}
	return c
}

// Fingerprint hashes the name, type, length and precision of every field in
// order. Two layouts with the same fingerprint are interchangeable for merge
// purposes.
func (m *RowMeta) Fingerprint() uint64 {
	h := xxh3.New()
	var buf []byte
	for i := 0; i < m.Len(); i++ {
		f := m.fields[i]
		buf = buf[:0]
		buf = append(buf, f.Name...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(f.Type), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(f.Length), 10)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(f.Precision), 10)
		buf = append(buf, 0x1e)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

func (m *RowMeta) String() string {
	if m == nil {
		return "[]"
	}
	b := []byte{'['}
	for i, f := range m.fields {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, f.Name...)
		b = append(b, ' ')
		b = append(b, f.Type.String()...)
	}
	return string(append(b, ']'))
}
