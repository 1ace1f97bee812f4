package transformer

import (
	"context"
	"errors"
	"fmt"

	"rowcore/internal/convert"
	"rowcore/internal/schema"
)

// ErrorKind classifies a row routed to the error callback.
type ErrorKind uint8

const (
	// KindStructuralParse is a record the tokenizer could not complete, such
	// as an enclosure still open at end of input.
	KindStructuralParse ErrorKind = iota + 1
	// KindConversion is a value that could not be converted to its field's
	// type.
	KindConversion
)

func (k ErrorKind) String() string {
	switch k {
	case KindStructuralParse:
		return "structural_parse"
	case KindConversion:
		return "conversion"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// ErrorRow is one rejected row. Row is a copy and stays valid after the
// pooled row is freed.
type ErrorRow struct {
	Row   []any
	Line  int
	Step  string
	Field string
	Value any
	Kind  ErrorKind
	Err   error
}

func (e ErrorRow) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s line %d field %q: %s: %v", e.Step, e.Line, e.Field, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s line %d: %s: %v", e.Step, e.Line, e.Kind, e.Err)
}

func (e ErrorRow) Unwrap() error { return e.Err }

// StructuralError reports a record the reader gave up on. record is the raw
// text read so far.
func StructuralError(step string, line int, record string, err error) ErrorRow {
	return ErrorRow{Row: []any{record}, Line: line, Step: step, Value: record, Kind: KindStructuralParse, Err: err}
}

// SelectLoopRows runs sv over pooled rows laid out as meta and forwards the
// converted rows to out. Rows that fail conversion go to onError and the
// loop continues. It returns when in is closed, the context is canceled, or
// the step cannot be latched against meta.
//
// Every row read from in is freed; every row sent to out is owned by the
// receiver.
func SelectLoopRows(
	ctx context.Context,
	sv *SelectValues,
	meta *schema.RowMeta,
	in <-chan *Row,
	out chan<- *Row,
	onError func(ErrorRow),
) error {
	if _, err := sv.Prepare(meta); err != nil {
		drain(in)
		return err
	}
	width := sv.OutputMeta().Len()

	for r := range in {
		select {
		case <-ctx.Done():
			r.Free()
			drain(in)
			return ctx.Err()
		default:
		}

		dst := GetRow(width)
		vals, err := sv.AppendProcess(dst.V, meta, r.V)
		if err != nil {
			dst.Free()
			var ce *convert.ConversionError
			if !errors.As(err, &ce) {
				r.Free()
				drain(in)
				return err
			}
			if onError != nil {
				onError(ErrorRow{
					Row:   r.Snapshot(),
					Line:  r.Line,
					Step:  sv.Step(),
					Field: ce.Field,
					Value: ce.Value,
					Kind:  KindConversion,
					Err:   err,
				})
			}
			r.Free()
			continue
		}
		dst.V, dst.Line = vals, r.Line
		r.Free()

		select {
		case out <- dst:
		case <-ctx.Done():
			dst.Free()
			drain(in)
			return ctx.Err()
		}
	}
	return nil
}

// drain frees whatever is left in in so upstream stages never block.
func drain(in <-chan *Row) {
	go func() {
		for r := range in {
			r.Free()
		}
	}()
}
