package convert

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DecimalFormat formats and parses numbers with a classic decimal pattern
// such as "#,##0.00;(#,##0.00)".
//
// Supported pattern characters: 0 (required digit), # (optional digit),
// "," (grouping), "." (decimal separator), ";" (negative subpattern), "%"
// (percent, multiplies by 100), "¤" (currency symbol), and quoted literals
// ('text', ” for a quote). Scientific notation is not supported. Rounding is
// half-even.
type DecimalFormat struct {
	pattern string
	sym     Symbols

	posPrefix, posSuffix string
	negPrefix, negSuffix string

	minInt   int
	minFrac  int
	maxFrac  int
	grouping int
	percent  bool
	lenient  bool
}

// NewDecimalFormat compiles pattern. lenient makes Parse ignore trailing
// text after the number.
func NewDecimalFormat(pattern string, sym Symbols, lenient bool) (*DecimalFormat, error) {
	f := &DecimalFormat{pattern: pattern, sym: sym.withDefaults(), lenient: lenient}
	pos, neg, hasNeg := splitSubpatterns(pattern)

	prefix, body, suffix, err := f.splitAffixes(pos)
	if err != nil {
		return nil, err
	}
	f.posPrefix, f.posSuffix = prefix, suffix
	if err := f.parseBody(body); err != nil {
		return nil, err
	}

	if hasNeg {
		prefix, _, suffix, err = f.splitAffixes(neg)
		if err != nil {
			return nil, err
		}
		f.negPrefix, f.negSuffix = prefix, suffix
	} else {
		f.negPrefix, f.negSuffix = f.sym.Minus+f.posPrefix, f.posSuffix
	}
	return f, nil
}

func (f *DecimalFormat) Pattern() string { return f.pattern }

// splitSubpatterns splits on the first unquoted ';'.
func splitSubpatterns(p string) (string, string, bool) {
	quoted := false
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\'':
			quoted = !quoted
		case ';':
			if !quoted {
				return p[:i], p[i+1:], true
			}
		}
	}
	return p, "", false
}

func isBodyChar(r rune) bool { return r == '#' || r == '0' || r == ',' || r == '.' }

// splitAffixes separates prefix, number body and suffix, resolving quotes
// and the special characters % and ¤ in the affixes.
func (f *DecimalFormat) splitAffixes(p string) (string, string, string, error) {
	var (
		prefix, suffix strings.Builder
		body           strings.Builder
		state          int // 0 prefix, 1 body, 2 suffix
		quoted         bool
	)
	for i := 0; i < len(p); {
		r, n := utf8.DecodeRuneInString(p[i:])
		i += n
		if r == '\'' {
			if i < len(p) && p[i] == '\'' {
				i++
				if state == 1 {
					state = 2
				}
				writeAffix(&prefix, &suffix, state, "'")
				continue
			}
			quoted = !quoted
			if state == 1 {
				state = 2
			}
			continue
		}
		if quoted {
			if state == 1 {
				state = 2
			}
			writeAffix(&prefix, &suffix, state, string(r))
			continue
		}
		if isBodyChar(r) {
			if state == 2 {
				return "", "", "", fmt.Errorf("convert: malformed number pattern %q", f.pattern)
			}
			state = 1
			body.WriteRune(r)
			continue
		}
		if state == 1 {
			state = 2
		}
		switch r {
		case '%':
			f.percent = true
			writeAffix(&prefix, &suffix, state, "%")
		case '¤':
			writeAffix(&prefix, &suffix, state, f.sym.Currency)
		default:
			writeAffix(&prefix, &suffix, state, string(r))
		}
	}
	if quoted {
		return "", "", "", fmt.Errorf("convert: unterminated quote in number pattern %q", f.pattern)
	}
	return prefix.String(), body.String(), suffix.String(), nil
}

func writeAffix(prefix, suffix *strings.Builder, state int, s string) {
	if state == 0 {
		prefix.WriteString(s)
		return
	}
	suffix.WriteString(s)
}

func (f *DecimalFormat) parseBody(body string) error {
	if body == "" {
		// A pattern of pure text still formats the number plainly.
		f.minInt = 1
		return nil
	}
	intPart, fracPart, _ := strings.Cut(body, ".")
	if strings.ContainsAny(fracPart, ",.") {
		return fmt.Errorf("convert: malformed number pattern %q", f.pattern)
	}
	if i := strings.LastIndexByte(intPart, ','); i >= 0 {
		f.grouping = len(intPart) - i - 1
	}
	for _, c := range intPart {
		if c == '0' {
			f.minInt++
		}
	}
	for _, c := range fracPart {
		f.maxFrac++
		if c == '0' {
			f.minFrac++
		}
	}
	return nil
}

// Format renders d.
func (f *DecimalFormat) Format(d decimal.Decimal) string {
	if f.percent {
		d = d.Mul(decimal.NewFromInt(100))
	}
	d = d.RoundBank(int32(f.maxFrac))
	neg := d.Sign() < 0

	digits := d.Abs().StringFixed(int32(f.maxFrac))
	intPart, fracPart, _ := strings.Cut(digits, ".")
	for len(fracPart) > f.minFrac && strings.HasSuffix(fracPart, "0") {
		fracPart = fracPart[:len(fracPart)-1]
	}
	if intPart == "0" && f.minInt == 0 {
		intPart = ""
	}
	for len(intPart) < f.minInt {
		intPart = "0" + intPart
	}
	if f.grouping > 0 && len(intPart) > f.grouping {
		intPart = group(intPart, f.grouping, f.sym.Grouping)
	}

	var sb strings.Builder
	if neg {
		sb.WriteString(f.negPrefix)
	} else {
		sb.WriteString(f.posPrefix)
	}
	sb.WriteString(intPart)
	if fracPart != "" {
		sb.WriteString(f.sym.Decimal)
		sb.WriteString(fracPart)
	}
	if intPart == "" && fracPart == "" {
		sb.WriteByte('0')
	}
	if neg {
		sb.WriteString(f.negSuffix)
	} else {
		sb.WriteString(f.posSuffix)
	}
	return sb.String()
}

func group(digits string, size int, sep string) string {
	var sb strings.Builder
	first := len(digits) % size
	if first == 0 {
		first = size
	}
	sb.WriteString(digits[:first])
	for i := first; i < len(digits); i += size {
		sb.WriteString(sep)
		sb.WriteString(digits[i : i+size])
	}
	return sb.String()
}

// Parse reads a number. Grouping separators are skipped wherever they
// appear in the integer part. Unless the format is lenient the whole input
// must be consumed.
func (f *DecimalFormat) Parse(s string) (decimal.Decimal, error) {
	neg := false
	rest, ok := s, false
	// Try the longer prefix first so "-" does not shadow "(-".
	first, second := f.negPrefix, f.posPrefix
	firstNeg := true
	if len(second) > len(first) {
		first, second, firstNeg = second, first, false
	}
	if strings.HasPrefix(rest, first) && first != "" {
		rest, neg, ok = rest[len(first):], firstNeg, true
	} else if strings.HasPrefix(rest, second) {
		rest, neg, ok = rest[len(second):], !firstNeg, true
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("convert: %q does not match number pattern %q", s, f.pattern)
	}
	// A bare leading minus is accepted even when the pattern's negative
	// prefix is something else.
	bareMinus := false
	if !neg && strings.HasPrefix(rest, f.sym.Minus) {
		rest, neg, bareMinus = rest[len(f.sym.Minus):], true, true
	}

	var num strings.Builder
	digits, seenDecimal := 0, false
	i := 0
loop:
	for i < len(rest) {
		switch {
		case rest[i] >= '0' && rest[i] <= '9':
			num.WriteByte(rest[i])
			digits++
			i++
		case !seenDecimal && strings.HasPrefix(rest[i:], f.sym.Decimal):
			num.WriteByte('.')
			seenDecimal = true
			i += len(f.sym.Decimal)
		case !seenDecimal && f.sym.Grouping != "" && strings.HasPrefix(rest[i:], f.sym.Grouping):
			i += len(f.sym.Grouping)
		default:
			break loop
		}
	}
	if digits == 0 {
		return decimal.Zero, fmt.Errorf("convert: no digits in %q", s)
	}
	rest = rest[i:]

	suffix := f.posSuffix
	if neg && !bareMinus {
		suffix = f.negSuffix
	}
	if strings.HasPrefix(rest, suffix) {
		rest = rest[len(suffix):]
	} else if !f.lenient {
		return decimal.Zero, fmt.Errorf("convert: %q does not match number pattern %q", s, f.pattern)
	}
	if rest != "" && !f.lenient {
		return decimal.Zero, fmt.Errorf("convert: unexpected %q after number in %q", rest, s)
	}

	text := strings.TrimSuffix(num.String(), ".")
	if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert: %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	if f.percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	return d, nil
}
