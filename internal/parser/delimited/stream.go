package delimited

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"rowcore/internal/config"
	"rowcore/internal/schema"
	"rowcore/internal/transformer"
)

// Options are the parser settings of one delimited input.
type Options struct {
	Separator        string
	Enclosure        string
	Escape           string
	LenientEnclosure bool
	HasHeader        bool
	Trim             schema.TrimType
	EmptyAsNull      bool
	SkipEmptyLines   bool
}

// OptionsFrom reads parser options from a pipeline options bag.
//
// Keys: separator (default ","), enclosure (default "\""), escape,
// lenient_enclosure, has_header (default true), trim_space (default true),
// trim ("none"|"left"|"right"|"both", overrides trim_space), empty_as_null
// (default true), skip_empty_lines (default true). "comma" is accepted as an
// alias of separator.
func OptionsFrom(opt config.Options) (Options, error) {
	o := Options{
		Separator:        opt.String("separator", opt.String("comma", ",")),
		Enclosure:        opt.String("enclosure", `"`),
		Escape:           opt.String("escape", ""),
		LenientEnclosure: opt.Bool("lenient_enclosure", false),
		HasHeader:        opt.Bool("has_header", true),
		EmptyAsNull:      opt.Bool("empty_as_null", true),
		SkipEmptyLines:   opt.Bool("skip_empty_lines", true),
	}
	if opt.Bool("trim_space", true) {
		o.Trim = schema.TrimBoth
	}
	if s := opt.String("trim", ""); s != "" {
		if err := o.Trim.UnmarshalText([]byte(s)); err != nil {
			return Options{}, err
		}
	}
	if o.Separator == "" {
		return Options{}, errors.New("delimited: separator must not be empty")
	}
	return o, nil
}

// NewReaderFromOptions is a convenience around NewTokenizer and NewReader.
func NewReaderFromOptions(r io.Reader, o Options) *Reader {
	return NewReader(r, NewTokenizer(o.Separator, o.Enclosure, o.Escape), o.LenientEnclosure)
}

// Layout determines the String layout of an input. With a header the first
// record supplies the names; otherwise the first record is only measured,
// pushed back, and fields are named field_1..field_n. Blank or repeated
// header names are made unique.
func Layout(r *Reader, o Options, origin string) (*schema.RowMeta, error) {
	rec, err := r.ReadRecord()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("delimited: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fields := r.tok.Fields(rec.Text)
	if !o.HasHeader {
		r.Unread(rec)
		for i := range fields {
			fields[i] = "field_" + strconv.Itoa(i+1)
		}
	}

	meta := &schema.RowMeta{}
	for i, name := range fields {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "field_" + strconv.Itoa(i+1)
		}
		if _, dup := meta.Index(name); dup {
			name = schema.UniqueName(meta, name)
		}
		f := schema.NewField(name, schema.TypeString)
		f.Origin = origin
		f.Trim = o.Trim
		if err := meta.Add(f); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// StreamRows reads the remaining records of r and emits pooled rows of the
// given width, copying source field i into position mapping[i]. Positions no
// source field maps to stay nil, and so do source fields beyond the mapping.
//
// onErr(line, err) receives per-record failures; the stream goes on.
func StreamRows(
	ctx context.Context,
	r *Reader,
	o Options,
	width int,
	mapping []int,
	out chan<- *transformer.Row,
	onErr func(line int, err error),
) error {
	const logEveryN = 50_000

	var (
		fields  []string
		emitted int
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				return err
			}
			if onErr != nil {
				onErr(rec.Line, err)
			}
			continue
		}
		if o.SkipEmptyLines && rec.Text == "" {
			continue
		}

		fields = r.tok.AppendFields(fields[:0], rec.Text)
		row := transformer.GetRow(width)
		row.Line = rec.Line
		for i, v := range fields {
			if i >= len(mapping) {
				break
			}
			v = o.Trim.Apply(v)
			if v == "" && o.EmptyAsNull {
				continue
			}
			row.V[mapping[i]] = v
		}

		select {
		case out <- row:
			emitted++
			if emitted%logEveryN == 0 {
				log.Printf("reader: line=%d emitted=%d", r.Line(), emitted)
			}
		case <-ctx.Done():
			row.Free()
			return ctx.Err()
		}
	}
}

// Identity returns the mapping that keeps every field in place.
func Identity(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}
