// Package transformer holds the row stages between the parser and the
// loader: the select_values step and its streaming loop over pooled rows.
//
// Rows are positional ([]any) and travel together with the RowMeta that
// describes them. Per-row failures are routed to a callback and never stop
// the stream.
package transformer

import (
	"fmt"
	"strings"
	"time"

	"rowcore/internal/config"
	"rowcore/internal/convert"
	"rowcore/internal/schema"
)

// SelectField picks one input field for the output, optionally renamed or
// resized. Length and Precision of 0 keep the input's value; -1 clears it.
type SelectField struct {
	Name      string `json:"name"`
	Rename    string `json:"rename,omitempty"`
	Length    int    `json:"length,omitempty"`
	Precision int    `json:"precision,omitempty"`
}

// MetaChange alters the descriptor of one field and converts its values when
// the type or storage changes. Zero values keep the field's current setting.
type MetaChange struct {
	Name      string              `json:"name"`
	Rename    string              `json:"rename,omitempty"`
	Type      schema.Type         `json:"type,omitempty"`
	Length    int                 `json:"length,omitempty"`
	Precision int                 `json:"precision,omitempty"`
	Storage   *schema.StorageType `json:"storage,omitempty"`

	ConversionMask        string `json:"conversion_mask,omitempty"`
	DateLenient           bool   `json:"date_lenient,omitempty"`
	Locale                string `json:"locale,omitempty"`
	TimeZone              string `json:"time_zone,omitempty"`
	LenientStringToNumber bool   `json:"lenient_string_to_number,omitempty"`
	Encoding              string `json:"encoding,omitempty"`
	DecimalSymbol         string `json:"decimal_symbol,omitempty"`
	GroupingSymbol        string `json:"grouping_symbol,omitempty"`
	CurrencySymbol        string `json:"currency_symbol,omitempty"`
	// GregorianChange is yyyy-MM-dd or yyyyMMdd.
	GregorianChange string `json:"gregorian_change,omitempty"`
}

// SelectSpec is the configuration of a select_values step. The three lists
// apply in order: select, remove, meta.
type SelectSpec struct {
	Select []SelectField `json:"select,omitempty"`
	// SelectUnspecified appends the input fields not named in Select, in
	// input order.
	SelectUnspecified bool         `json:"select_unspecified,omitempty"`
	Remove            []string     `json:"remove,omitempty"`
	Meta              []MetaChange `json:"meta,omitempty"`
}

// Allocate sizes the three lists to exactly nSelect, nRemove and nMeta
// entries. Existing entries are kept; the backing arrays are reused when
// they are large enough, so repeating a call changes nothing.
func (s *SelectSpec) Allocate(nSelect, nRemove, nMeta int) {
	s.Select = resize(s.Select, nSelect)
	s.Remove = resize(s.Remove, nRemove)
	s.Meta = resize(s.Meta, nMeta)
}

func resize[T any](in []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if cap(in) < n {
		out := make([]T, n)
		copy(out, in)
		return out
	}
	old := len(in)
	in = in[:n]
	if n > old {
		clear(in[old:])
	}
	return in
}

// SelectSpecFrom decodes the options of a select_values transform.
func SelectSpecFrom(o config.Options) (SelectSpec, error) {
	var s SelectSpec
	if err := o.Decode(&s); err != nil {
		return SelectSpec{}, fmt.Errorf("select_values options: %w", err)
	}
	return s, nil
}

// Options carries the settings of a SelectValues that do not come from its
// SelectSpec.
type Options struct {
	// TypeDefaults switches type changes without a mask to the target type's
	// default mask.
	TypeDefaults bool
	// Step labels errors.
	Step string
}

type latchState uint8

const (
	unlatched latchState = iota
	latched
)

// decisions are fixed by the first row and reused for every later one.
type decisions struct {
	selecting bool
	removing  bool
	metadata  bool

	inLen     int
	selectIdx []int // output position -> input position
	keep      []int // positions surviving remove
	changes   []fieldChange
	outMeta   *schema.RowMeta
}

type fieldChange struct {
	pos  int
	conv *convert.Conversion // nil when only the descriptor changes
}

// SelectValues selects, removes and retypes fields of a stream. It is used
// by one goroutine.
type SelectValues struct {
	spec   SelectSpec
	policy convert.Policy
	step   string

	state latchState
	dec   decisions
}

func NewSelectValues(spec SelectSpec, opts Options) *SelectValues {
	step := opts.Step
	if step == "" {
		step = "select_values"
	}
	return &SelectValues{spec: spec, policy: convert.PolicyFor(opts.TypeDefaults), step: step}
}

func (sv *SelectValues) Step() string { return sv.step }

// Latched reports whether the first row has been seen.
func (sv *SelectValues) Latched() bool { return sv.state == latched }

// OutputMeta is the layout of processed rows; nil before the first row.
func (sv *SelectValues) OutputMeta() *schema.RowMeta {
	if sv.state != latched {
		return nil
	}
	return sv.dec.outMeta
}

// Prepare latches the step against the input layout without a row. Process
// calls it on the first row.
func (sv *SelectValues) Prepare(in *schema.RowMeta) (*schema.RowMeta, error) {
	if sv.state == latched {
		return sv.dec.outMeta, nil
	}
	dec, err := sv.decide(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sv.step, err)
	}
	sv.dec, sv.state = dec, latched
	return dec.outMeta, nil
}

// Process converts one row laid out as in. Conversion failures are
// *convert.ConversionError; the row is then unusable but the step is not.
func (sv *SelectValues) Process(in *schema.RowMeta, row []any) ([]any, error) {
	return sv.AppendProcess(nil, in, row)
}

// AppendProcess is Process writing into dst[:0].
func (sv *SelectValues) AppendProcess(dst []any, in *schema.RowMeta, row []any) ([]any, error) {
	if _, err := sv.Prepare(in); err != nil {
		return nil, err
	}
	d := &sv.dec
	if len(row) != d.inLen {
		return nil, fmt.Errorf("%s: row has %d values, layout has %d", sv.step, len(row), d.inLen)
	}

	vals := row
	if d.selecting {
		picked := make([]any, len(d.selectIdx))
		for i, j := range d.selectIdx {
			picked[i] = row[j]
		}
		vals = picked
	}

	out := dst[:0]
	if d.removing {
		for _, j := range d.keep {
			out = append(out, vals[j])
		}
	} else {
		out = append(out, vals...)
	}

	if d.metadata {
		for _, c := range d.changes {
			if c.conv == nil {
				continue
			}
			v, err := c.conv.Convert(out[c.pos])
			if err != nil {
				return nil, err
			}
			out[c.pos] = v
		}
	}
	return out, nil
}

// decide compiles the output layout. It runs once per stream.
func (sv *SelectValues) decide(in *schema.RowMeta) (decisions, error) {
	d := decisions{
		selecting: len(sv.spec.Select) > 0,
		removing:  len(sv.spec.Remove) > 0,
		metadata:  len(sv.spec.Meta) > 0,
		inLen:     in.Len(),
	}

	fields := in.Fields()
	if d.selecting {
		var err error
		if d.selectIdx, fields, err = sv.selectFields(in); err != nil {
			return d, err
		}
	}

	if d.removing {
		drop := make(map[int]bool, len(sv.spec.Remove))
		for _, name := range sv.spec.Remove {
			j := indexOf(fields, name)
			if j < 0 {
				return d, fmt.Errorf("remove: field %q not found", name)
			}
			drop[j] = true
		}
		kept := make([]schema.Field, 0, len(fields)-len(drop))
		for j, f := range fields {
			if !drop[j] {
				d.keep = append(d.keep, j)
				kept = append(kept, f)
			}
		}
		fields = kept
	}

	if d.metadata {
		for _, mc := range sv.spec.Meta {
			pos := indexOf(fields, mc.Name)
			if pos < 0 {
				return d, fmt.Errorf("meta: field %q not found", mc.Name)
			}
			from := fields[pos]
			to, err := sv.changeField(from, mc)
			if err != nil {
				return d, fmt.Errorf("meta %q: %w", mc.Name, err)
			}
			fc := fieldChange{pos: pos}
			if from.Type != to.Type || from.Storage != to.Storage {
				if fc.conv, err = convert.NewConversion(from, to); err != nil {
					return d, fmt.Errorf("meta %q: %w", mc.Name, err)
				}
			}
			fields[pos] = to
			d.changes = append(d.changes, fc)
		}
	}

	out, err := schema.NewRowMeta(fields...)
	if err != nil {
		return d, err
	}
	d.outMeta = out
	return d, nil
}

func (sv *SelectValues) selectFields(in *schema.RowMeta) ([]int, []schema.Field, error) {
	idx := make([]int, 0, len(sv.spec.Select))
	fields := make([]schema.Field, 0, len(sv.spec.Select))
	named := make(map[int]bool, len(sv.spec.Select))
	for _, sf := range sv.spec.Select {
		j, ok := in.Index(sf.Name)
		if !ok {
			return nil, nil, fmt.Errorf("select: field %q not found", sf.Name)
		}
		f := in.Field(j)
		if sf.Rename != "" {
			f.Name = sf.Rename
		}
		f.Length = resized(f.Length, sf.Length)
		f.Precision = resized(f.Precision, sf.Precision)
		idx = append(idx, j)
		fields = append(fields, f)
		named[j] = true
	}
	if sv.spec.SelectUnspecified {
		for j, f := range in.Fields() {
			if !named[j] {
				idx = append(idx, j)
				fields = append(fields, f)
			}
		}
	}
	return idx, fields, nil
}

func resized(cur, want int) int {
	switch {
	case want == 0:
		return cur
	case want < 0:
		return -1
	default:
		return want
	}
}

// changeField applies mc to a copy of f. A type change without a mask takes
// its mask from the step's policy.
func (sv *SelectValues) changeField(f schema.Field, mc MetaChange) (schema.Field, error) {
	to := f
	if mc.Rename != "" {
		to.Name = mc.Rename
	}
	if mc.Type != schema.TypeNone && mc.Type != f.Type {
		to.Type = mc.Type
		switch {
		case mc.ConversionMask != "":
			to.ConversionMask = mc.ConversionMask
		case sv.policy == convert.PolicyCurrent:
			to.ConversionMask = convert.FieldMask(f)
		default:
			to.ConversionMask = convert.ChangeMask(sv.policy, f.Type, mc.Type, "")
		}
	} else if mc.ConversionMask != "" {
		to.ConversionMask = mc.ConversionMask
	}
	to.Length = resized(to.Length, mc.Length)
	to.Precision = resized(to.Precision, mc.Precision)
	if mc.Storage != nil {
		to.Storage = *mc.Storage
	}

	if mc.DateLenient {
		to.DateLenient = true
	}
	if mc.LenientStringToNumber {
		to.LenientStringToNumber = true
	}
	setIf(&to.Locale, mc.Locale)
	setIf(&to.TimeZone, mc.TimeZone)
	setIf(&to.Encoding, mc.Encoding)
	setIf(&to.DecimalSymbol, mc.DecimalSymbol)
	setIf(&to.GroupingSymbol, mc.GroupingSymbol)
	setIf(&to.CurrencySymbol, mc.CurrencySymbol)

	if mc.GregorianChange != "" {
		t, err := parseGregorianChange(mc.GregorianChange)
		if err != nil {
			return f, err
		}
		to.GregorianChange = t
	}
	return to, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseGregorianChange(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range config.GregorianLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("gregorian_change %q is not a date", s)
}

func indexOf(fields []schema.Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
