// Package delimited turns lines of separated text into fields.
//
// Separator, enclosure and escape are arbitrary strings (a multi-character
// separator such as "||" is fine). Malformed input never fails a line: stray
// escapes and text after a closing enclosure are kept as literal characters.
// The only structural error is an enclosure still open at end of input, which
// Reader reports once.
package delimited

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer splits one logical record into fields. It holds no per-call state
// and is safe for concurrent use.
type Tokenizer struct {
	sep string
	enc string
	esc string
}

// NewTokenizer returns a tokenizer for the given separator, enclosure and
// escape. An empty separator means ",". Enclosure and escape may be empty to
// disable them. An escape equal to the enclosure is ignored; doubling the
// enclosure already covers that case.
func NewTokenizer(separator, enclosure, escape string) *Tokenizer {
	if separator == "" {
		separator = ","
	}
	if escape == enclosure {
		escape = ""
	}
	return &Tokenizer{sep: separator, enc: enclosure, esc: escape}
}

func (t *Tokenizer) Separator() string { return t.sep }
func (t *Tokenizer) Enclosure() string { return t.enc }
func (t *Tokenizer) Escape() string    { return t.esc }

// Fields returns every field found on line. An empty line has one empty
// field and a trailing separator adds a final empty field.
func (t *Tokenizer) Fields(line string) []string {
	return t.AppendFields(nil, line)
}

// Split returns exactly width positions when width > 0: fields missing from
// line are nil and fields past width are dropped. With width <= 0 it returns
// all fields.
func (t *Tokenizer) Split(line string, width int) []*string {
	fields := t.Fields(line)
	if width <= 0 {
		width = len(fields)
	}
	out := make([]*string, width)
	for i := 0; i < width && i < len(fields); i++ {
		s := fields[i]
		out[i] = &s
	}
	return out
}

// AppendFields appends the fields of line to dst and returns the extended
// slice.
func (t *Tokenizer) AppendFields(dst []string, line string) []string {
	var sb strings.Builder
	pos := 0
	for {
		sb.Reset()
		if t.enc != "" && strings.HasPrefix(line[pos:], t.enc) {
			pos = t.enclosed(&sb, line, pos+len(t.enc))
		} else {
			pos = t.plain(&sb, line, pos)
		}
		dst = append(dst, sb.String())

		if pos >= len(line) {
			return dst
		}
		// plain and enclosed stop only at a separator or the end of line.
		pos += len(t.sep)
		if pos == len(line) {
			return append(dst, "")
		}
	}
}

// plain consumes an unenclosed field starting at pos and returns the offset
// of the separator that ended it, or len(line).
func (t *Tokenizer) plain(sb *strings.Builder, line string, pos int) int {
	for pos < len(line) {
		rest := line[pos:]
		if t.esc != "" && strings.HasPrefix(rest, t.esc) {
			pos += t.escaped(sb, rest)
			continue
		}
		if strings.HasPrefix(rest, t.sep) {
			return pos
		}
		pos += copyRune(sb, rest)
	}
	return pos
}

// enclosed consumes the body of an enclosed field starting just after the
// opening enclosure. Anything between the closing enclosure and the next
// separator is appended as is.
func (t *Tokenizer) enclosed(sb *strings.Builder, line string, pos int) int {
	for pos < len(line) {
		rest := line[pos:]
		switch {
		case t.esc != "" && strings.HasPrefix(rest, t.esc):
			pos += t.escaped(sb, rest)
		case strings.HasPrefix(rest, t.enc):
			if strings.HasPrefix(rest[len(t.enc):], t.enc) {
				sb.WriteString(t.enc)
				pos += 2 * len(t.enc)
				continue
			}
			pos += len(t.enc)
			for pos < len(line) && !strings.HasPrefix(line[pos:], t.sep) {
				pos += copyRune(sb, line[pos:])
			}
			return pos
		default:
			pos += copyRune(sb, rest)
		}
	}
	return pos
}

// escaped handles an escape at the start of rest and returns how many bytes
// were consumed. An escape protects a following escape, separator or
// enclosure; before anything else it is an ordinary character.
func (t *Tokenizer) escaped(sb *strings.Builder, rest string) int {
	after := rest[len(t.esc):]
	switch {
	case strings.HasPrefix(after, t.esc):
		sb.WriteString(t.esc)
		return 2 * len(t.esc)
	case strings.HasPrefix(after, t.sep):
		sb.WriteString(t.sep)
		return len(t.esc) + len(t.sep)
	case t.enc != "" && strings.HasPrefix(after, t.enc):
		sb.WriteString(t.enc)
		return len(t.esc) + len(t.enc)
	}
	sb.WriteString(t.esc)
	return len(t.esc)
}

func copyRune(sb *strings.Builder, s string) int {
	_, n := utf8.DecodeRuneInString(s)
	sb.WriteString(s[:n])
	return n
}
