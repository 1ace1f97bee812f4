package delimited

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\uFEFF"

// ErrUnterminatedEnclosure is returned (wrapped in a *ParseError) when input
// ends while an enclosed field is still open.
var ErrUnterminatedEnclosure = errors.New("unterminated enclosure at end of input")

// ParseError is a structural failure for one record. Record holds whatever
// text had been read.
type ParseError struct {
	Line   int
	Record string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("delimited: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Record is one logical record. Line is the 1-based number of the physical
// line it starts on.
type Record struct {
	Text string
	Line int
}

// Reader yields logical records from a character stream.
//
// In strict mode (the default) a line break inside an open enclosure belongs
// to the field: the next physical line is appended with an embedded "\n"
// until the enclosures balance. In lenient mode every line break ends the
// record and an unbalanced enclosure is simply cut off there.
type Reader struct {
	br      *bufio.Reader
	tok     *Tokenizer
	lenient bool

	line    int
	started bool
	done    bool
	pending *Record
}

// NewReader reads records from r using tok to find enclosures.
func NewReader(r io.Reader, tok *Tokenizer, lenient bool) *Reader {
	return &Reader{
		br:      bufio.NewReaderSize(r, 64<<10),
		tok:     tok,
		lenient: lenient,
	}
}

// Tokenizer returns the tokenizer the reader was built with.
func (r *Reader) Tokenizer() *Tokenizer { return r.tok }

// Line returns the number of physical lines consumed so far.
func (r *Reader) Line() int { return r.line }

// ReadRecord returns the next record, or io.EOF when the input is exhausted.
// An unterminated enclosure yields the partial record together with a
// *ParseError; the following call returns io.EOF.
func (r *Reader) ReadRecord() (Record, error) {
	if r.pending != nil {
		rec := *r.pending
		r.pending = nil
		return rec, nil
	}

	text, ok, err := r.physical()
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, io.EOF
	}
	rec := Record{Text: text, Line: r.line}
	if r.lenient {
		return rec, nil
	}

	if !r.tok.OpenEnclosure(text) {
		return rec, nil
	}
	var sb strings.Builder
	sb.WriteString(text)
	for {
		next, ok, err := r.physical()
		if err != nil {
			return Record{}, err
		}
		if !ok {
			rec.Text = sb.String()
			return rec, &ParseError{Line: rec.Line, Record: rec.Text, Err: ErrUnterminatedEnclosure}
		}
		sb.WriteByte('\n')
		sb.WriteString(next)
		if !r.tok.OpenEnclosure(sb.String()) {
			rec.Text = sb.String()
			return rec, nil
		}
	}
}

// Unread pushes rec back so the next ReadRecord returns it again. Only one
// record can be pushed back.
func (r *Reader) Unread(rec Record) { r.pending = &rec }

// physical reads one line without its terminator. ok is false at end of
// input.
func (r *Reader) physical() (string, bool, error) {
	if r.done {
		return "", false, nil
	}
	s, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("delimited: read: %w", err)
		}
		r.done = true
		if s == "" {
			return "", false, nil
		}
	}
	r.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	if !r.started {
		r.started = true
		s = strings.TrimPrefix(s, utf8BOM)
	}
	return s, true, nil
}
