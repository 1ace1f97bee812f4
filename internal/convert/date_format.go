package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateFormat formats and parses instants with classic date pattern letters:
//
//	G era           y year          M month (MMM, MMMM for names)
//	d day           H hour 0-23     k hour 1-24
//	K hour 0-11     h hour 1-12     m minute
//	s second        S fraction      E weekday name
//	a AM/PM         z zone name     Z -0700    X Z, -07, -0700, -07:00
//
// Text in single quotes is literal, ” is a quote. A run of n S letters is
// n fraction digits. Calendar fields go through a Calendar, so dates before
// its cutover are Julian. Names are English.
type DateFormat struct {
	pattern string
	tokens  []dateToken
	loc     *time.Location
	cal     Calendar
	lenient bool
}

type dateToken struct {
	letter byte // 0 for literal text
	count  int
	lit    string
}

func (t dateToken) numeric() bool {
	switch t.letter {
	case 'y', 'd', 'H', 'k', 'K', 'h', 'm', 's', 'S':
		return true
	case 'M':
		return t.count <= 2
	}
	return false
}

const dateLetters = "GyMdHkKhmsSEazZX"

// NewDateFormat compiles pattern. A nil loc means UTC.
func NewDateFormat(pattern string, loc *time.Location, cal Calendar, lenient bool) (*DateFormat, error) {
	if loc == nil {
		loc = time.UTC
	}
	toks, err := compileDatePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &DateFormat{pattern: pattern, tokens: toks, loc: loc, cal: cal, lenient: lenient}, nil
}

func (f *DateFormat) Pattern() string { return f.pattern }

func compileDatePattern(p string) ([]dateToken, error) {
	var (
		toks []dateToken
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			toks = append(toks, dateToken{lit: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(p); {
		c := p[i]
		switch {
		case c == '\'':
			if i+1 < len(p) && p[i+1] == '\'' {
				lit.WriteByte('\'')
				i += 2
				continue
			}
			i++
			closed := false
			for i < len(p) {
				if p[i] != '\'' {
					lit.WriteByte(p[i])
					i++
					continue
				}
				if i+1 < len(p) && p[i+1] == '\'' {
					lit.WriteByte('\'')
					i += 2
					continue
				}
				i++
				closed = true
				break
			}
			if !closed {
				return nil, fmt.Errorf("convert: unterminated quote in date pattern %q", p)
			}
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			if strings.IndexByte(dateLetters, c) < 0 {
				return nil, fmt.Errorf("convert: unsupported letter %q in date pattern %q", c, p)
			}
			n := 1
			for i+n < len(p) && p[i+n] == c {
				n++
			}
			flush()
			toks = append(toks, dateToken{letter: c, count: n})
			i += n
		default:
			_, size := utf8.DecodeRuneInString(p[i:])
			lit.WriteString(p[i : i+size])
			i += size
		}
	}
	flush()
	return toks, nil
}

var (
	shortMonths = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	shortDays   = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

func pad(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// Format renders t in the format's location.
func (f *DateFormat) Format(t time.Time) string {
	t = t.In(f.loc)
	year, month, day := f.cal.Fields(t)
	hour, minute, sec := t.Clock()

	var sb strings.Builder
	for _, tok := range f.tokens {
		n := tok.count
		switch tok.letter {
		case 0:
			sb.WriteString(tok.lit)
		case 'G':
			if year <= 0 {
				sb.WriteString("BC")
			} else {
				sb.WriteString("AD")
			}
		case 'y':
			y := year
			if y <= 0 {
				y = 1 - y
			}
			if n == 2 {
				sb.WriteString(pad(y%100, 2))
			} else {
				sb.WriteString(pad(y, n))
			}
		case 'M':
			switch {
			case n >= 4:
				sb.WriteString(month.String())
			case n == 3:
				sb.WriteString(shortMonths[month-1])
			default:
				sb.WriteString(pad(int(month), n))
			}
		case 'd':
			sb.WriteString(pad(day, n))
		case 'H':
			sb.WriteString(pad(hour, n))
		case 'k':
			if hour == 0 {
				sb.WriteString(pad(24, n))
			} else {
				sb.WriteString(pad(hour, n))
			}
		case 'K':
			sb.WriteString(pad(hour%12, n))
		case 'h':
			h := hour % 12
			if h == 0 {
				h = 12
			}
			sb.WriteString(pad(h, n))
		case 'm':
			sb.WriteString(pad(minute, n))
		case 's':
			sb.WriteString(pad(sec, n))
		case 'S':
			frac := pad(t.Nanosecond(), 9)
			if n <= 9 {
				sb.WriteString(frac[:n])
			} else {
				sb.WriteString(frac + strings.Repeat("0", n-9))
			}
		case 'E':
			if n >= 4 {
				sb.WriteString(t.Weekday().String())
			} else {
				sb.WriteString(shortDays[t.Weekday()])
			}
		case 'a':
			if hour < 12 {
				sb.WriteString("AM")
			} else {
				sb.WriteString("PM")
			}
		case 'z':
			sb.WriteString(t.Format("MST"))
		case 'Z':
			sb.WriteString(t.Format("-0700"))
		case 'X':
			switch n {
			case 1:
				sb.WriteString(t.Format("Z07"))
			case 2:
				sb.WriteString(t.Format("Z0700"))
			default:
				sb.WriteString(t.Format("Z07:00"))
			}
		}
	}
	return sb.String()
}

// dateFields accumulates parsed calendar fields. Missing fields default to
// 1970-01-01 00:00:00.
type dateFields struct {
	year, month, day   int
	hour, min, sec, ns int
	pm                 int // -1 unset, 0 AM, 1 PM
	hour12             bool
	bc                 bool
	loc                *time.Location
}

// Parse reads s. Numeric fields directly followed by another numeric field
// have the fixed width of their pattern letters; other numeric fields take
// every digit. Unless the format is lenient, field ranges are checked and
// the whole input must be consumed.
func (f *DateFormat) Parse(s string) (time.Time, error) {
	df := dateFields{year: 1970, month: 1, day: 1, pm: -1}
	rest := s
	for i, tok := range f.tokens {
		if tok.letter == 0 {
			if !strings.HasPrefix(rest, tok.lit) {
				return time.Time{}, f.mismatch(s)
			}
			rest = rest[len(tok.lit):]
			continue
		}
		var err error
		if tok.numeric() {
			fixed := i+1 < len(f.tokens) && f.tokens[i+1].numeric()
			rest, err = f.parseNumber(&df, tok, rest, fixed)
		} else {
			rest, err = f.parseText(&df, tok, rest)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("convert: %q does not match date pattern %q: %w", s, f.pattern, err)
		}
	}
	if rest != "" && !f.lenient {
		return time.Time{}, fmt.Errorf("convert: unexpected %q after date in %q", rest, s)
	}

	if df.bc {
		df.year = 1 - df.year
	}
	if df.pm >= 0 {
		df.hour %= 12
		if df.pm == 1 {
			df.hour += 12
		}
	}
	if !f.lenient {
		if !f.cal.ValidDate(df.year, df.month, df.day) {
			return time.Time{}, fmt.Errorf("convert: %q is not a valid date", s)
		}
		if df.hour > 23 || df.min > 59 || df.sec > 59 || (df.hour12 && df.pm < 0 && df.hour > 12) {
			return time.Time{}, fmt.Errorf("convert: %q is not a valid time of day", s)
		}
	}
	loc := f.loc
	if df.loc != nil {
		loc = df.loc
	}
	return f.cal.Date(df.year, time.Month(df.month), df.day, df.hour, df.min, df.sec, df.ns, loc), nil
}

func (f *DateFormat) mismatch(s string) error {
	return fmt.Errorf("convert: %q does not match date pattern %q", s, f.pattern)
}

func (f *DateFormat) parseNumber(df *dateFields, tok dateToken, s string, fixed bool) (string, error) {
	limit := 10
	if tok.letter == 'S' {
		limit = 9
	}
	if fixed {
		limit = tok.count
	}
	n := 0
	for n < len(s) && n < limit && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 || (fixed && n < tok.count && !f.lenient) {
		return s, fmt.Errorf("expected %d digit(s) for %q", tok.count, string(tok.letter))
	}
	digits := s[:n]
	v, err := strconv.Atoi(digits)
	if err != nil {
		return s, err
	}
	switch tok.letter {
	case 'y':
		if tok.count == 2 && n == 2 {
			if v < 69 {
				v += 2000
			} else {
				v += 1900
			}
		}
		df.year = v
	case 'M':
		df.month = v
	case 'd':
		df.day = v
	case 'H':
		df.hour = v
	case 'k':
		if v == 24 {
			v = 0
		}
		df.hour = v
	case 'K':
		df.hour, df.hour12 = v, true
	case 'h':
		if v == 12 {
			v = 0
		}
		df.hour, df.hour12 = v, true
	case 'm':
		df.min = v
	case 's':
		df.sec = v
	case 'S':
		frac := digits
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		df.ns, _ = strconv.Atoi(frac)
	}
	return s[n:], nil
}

func (f *DateFormat) parseText(df *dateFields, tok dateToken, s string) (string, error) {
	switch tok.letter {
	case 'G':
		switch {
		case hasPrefixFold(s, "AD"):
			return s[2:], nil
		case hasPrefixFold(s, "BC"):
			df.bc = true
			return s[2:], nil
		}
		return s, fmt.Errorf("expected era")
	case 'M':
		for m := time.January; m <= time.December; m++ {
			if hasPrefixFold(s, m.String()) {
				df.month = int(m)
				return s[len(m.String()):], nil
			}
		}
		for i, name := range shortMonths {
			if hasPrefixFold(s, name) {
				df.month = i + 1
				return s[len(name):], nil
			}
		}
		return s, fmt.Errorf("expected month name")
	case 'E':
		for d := time.Sunday; d <= time.Saturday; d++ {
			if hasPrefixFold(s, d.String()) {
				return s[len(d.String()):], nil
			}
		}
		for _, name := range shortDays {
			if hasPrefixFold(s, name) {
				return s[len(name):], nil
			}
		}
		return s, fmt.Errorf("expected weekday name")
	case 'a':
		switch {
		case hasPrefixFold(s, "AM"):
			df.pm = 0
			return s[2:], nil
		case hasPrefixFold(s, "PM"):
			df.pm = 1
			return s[2:], nil
		}
		return s, fmt.Errorf("expected AM or PM")
	case 'z', 'Z', 'X':
		return parseZone(df, s)
	}
	return s, fmt.Errorf("unsupported letter %q", string(tok.letter))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// parseZone accepts Z, numeric offsets (+01, +0100, +01:00) and zone names
// known to the time package (UTC, GMT, Europe/Prague).
func parseZone(df *dateFields, s string) (string, error) {
	if s == "" {
		return s, fmt.Errorf("expected time zone")
	}
	if s[0] == 'Z' && (len(s) == 1 || !isZoneNameChar(s[1])) {
		df.loc = time.UTC
		return s[1:], nil
	}
	if s[0] == '+' || s[0] == '-' {
		return parseOffset(df, s)
	}
	n := 0
	for n < len(s) && isZoneNameChar(s[n]) {
		n++
	}
	name := s[:n]
	if name == "" {
		return s, fmt.Errorf("expected time zone")
	}
	if name == "GMT" || name == "UTC" {
		df.loc = time.UTC
		if rest := s[n:]; rest != "" && (rest[0] == '+' || rest[0] == '-') {
			return parseOffset(df, rest)
		}
		return s[n:], nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return s, fmt.Errorf("unknown time zone %q", name)
	}
	df.loc = loc
	return s[n:], nil
}

func isZoneNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '/' || c == '_'
}

func parseOffset(df *dateFields, s string) (string, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	rest := s[1:]
	digits := func(n int) (int, bool) {
		if len(rest) < n {
			return 0, false
		}
		v, err := strconv.Atoi(rest[:n])
		if err != nil {
			return 0, false
		}
		rest = rest[n:]
		return v, true
	}
	h, ok := digits(2)
	if !ok {
		return s, fmt.Errorf("malformed zone offset")
	}
	m := 0
	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		if m, ok = digits(2); !ok {
			return s, fmt.Errorf("malformed zone offset")
		}
	} else if len(rest) >= 2 && rest[0] >= '0' && rest[0] <= '9' {
		m, _ = digits(2)
	}
	off := sign * (h*3600 + m*60)
	df.loc = time.FixedZone(s[:len(s)-len(rest)], off)
	return rest, nil
}
