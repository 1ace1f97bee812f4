package convert

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"rowcore/internal/schema"
)

// In-memory value representations per type:
//
//	String    string
//	Integer   int64
//	Number    float64
//	BigNumber decimal.Decimal
//	Date      time.Time
//	Timestamp time.Time
//	Boolean   bool
//	Binary    []byte
//
// nil is null for every type. Fields with binary-string storage hold the
// encoded text as []byte.

var (
	ErrUnsupported = errors.New("unsupported conversion")
	ErrOverflow    = errors.New("value out of range")
)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// Converter formats and parses the values of one field with its mask,
// locale, time zone and calendar.
type Converter struct {
	field schema.Field
	num   *DecimalFormat
	date  *DateFormat
}

// NewConverter compiles the formats field needs.
func NewConverter(field schema.Field) (*Converter, error) {
	c := &Converter{field: field}
	mask := FieldMask(field)
	switch {
	case field.Type.IsNumeric():
		sym, err := SymbolsFor(field.Locale, field.DecimalSymbol, field.GroupingSymbol, field.CurrencySymbol)
		if err != nil {
			return nil, err
		}
		if c.num, err = NewDecimalFormat(mask, sym, field.LenientStringToNumber); err != nil {
			return nil, err
		}
	case field.Type.IsTemporal():
		loc, err := time.LoadLocation(field.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("convert: time zone %q: %w", field.TimeZone, err)
		}
		if c.date, err = NewDateFormat(mask, loc, NewCalendar(field.GregorianChange), field.DateLenient); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Converter) Field() schema.Field { return c.field }

// ToString renders v, a value of the field's type.
func (c *Converter) ToString(v any) (string, error) {
	switch c.field.Type {
	case schema.TypeString, schema.TypeNone:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprint(v), nil
		}
		return s, nil
	case schema.TypeInteger, schema.TypeNumber, schema.TypeBigNumber:
		d, err := asDecimal(v)
		if err != nil {
			return "", err
		}
		return c.num.Format(d), nil
	case schema.TypeDate, schema.TypeTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("%T is not a date", v)
		}
		return c.date.Format(t), nil
	case schema.TypeBoolean:
		b, err := asBool(v)
		if err != nil {
			return "", err
		}
		if b {
			return "Y", nil
		}
		return "N", nil
	case schema.TypeBinary:
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("%T is not binary", v)
		}
		return string(b), nil
	}
	return "", ErrUnsupported
}

// FromString parses s into the field's type. The field's trim applies
// first; blank input is null for every type but String.
func (c *Converter) FromString(s string) (any, error) {
	s = c.field.Trim.Apply(s)
	t := c.field.Type
	if t == schema.TypeString || t == schema.TypeNone {
		return s, nil
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch t {
	case schema.TypeInteger:
		d, err := c.num.Parse(s)
		if err != nil {
			return nil, err
		}
		n, err := decimalToInt64(d)
		if err != nil {
			return nil, err
		}
		return n, nil
	case schema.TypeNumber:
		d, err := c.num.Parse(s)
		if err != nil {
			return nil, err
		}
		return d.InexactFloat64(), nil
	case schema.TypeBigNumber:
		return c.num.Parse(s)
	case schema.TypeDate, schema.TypeTimestamp:
		return c.date.Parse(s)
	case schema.TypeBoolean:
		return parseBool(s), nil
	case schema.TypeBinary:
		return []byte(s), nil
	}
	return nil, ErrUnsupported
}

// parseBool accepts Y, YES, TRUE and 1 as true; anything else is false.
func parseBool(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE", "1":
		return true
	}
	return false
}

// Conversion converts values of one field from one descriptor to another.
// Text settings (mask, locale, symbols, time zone, calendar, leniency) come
// from the target descriptor; a textual target without a mask formats with
// the source type's default.
type Conversion struct {
	from, to schema.Field

	storage *Converter // parses binary-string storage of from
	text    *Converter // the string side of a text <-> value change
	out     *Converter // renders binary-string storage of to

	fromEnc encoding.Encoding
	toEnc   encoding.Encoding
}

func textual(t schema.Type) bool {
	return t == schema.TypeString || t == schema.TypeBinary || t == schema.TypeNone
}

// NewConversion prepares the conversion of values described by from into
// values described by to.
func NewConversion(from, to schema.Field) (*Conversion, error) {
	c := &Conversion{from: from, to: to}
	var err error
	if c.fromEnc, err = lookupEncoding(from.Encoding); err != nil {
		return nil, err
	}
	if c.toEnc, err = lookupEncoding(to.Encoding); err != nil {
		return nil, err
	}
	if from.Storage == schema.StorageBinaryString && !textual(from.Type) {
		if c.storage, err = NewConverter(from); err != nil {
			return nil, err
		}
	}

	switch {
	case textual(from.Type) && !textual(to.Type):
		c.text, err = NewConverter(to)
	case !textual(from.Type) && textual(to.Type):
		tf := to
		tf.Type = from.Type
		c.text, err = NewConverter(tf)
	}
	if err != nil {
		return nil, err
	}
	if to.Storage == schema.StorageBinaryString && !textual(to.Type) {
		if c.out, err = NewConverter(to); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("convert: encoding %q: %w", name, err)
	}
	return enc, nil
}

// From and To return the descriptors of the conversion.
func (c *Conversion) From() schema.Field { return c.from }
func (c *Conversion) To() schema.Field   { return c.to }

// Convert converts one value. Failures are *ConversionError naming the
// source field.
func (c *Conversion) Convert(v any) (any, error) {
	out, err := c.convert(v)
	if err != nil {
		return nil, &ConversionError{Field: c.from.Name, Value: v, From: c.from.Type, To: c.to.Type, Err: err}
	}
	return out, nil
}

func (c *Conversion) convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	v, err := c.unpack(v)
	if err != nil || v == nil {
		return nil, err
	}
	if v, err = c.value(v); err != nil || v == nil {
		return nil, err
	}
	return c.pack(v)
}

// unpack turns binary-string storage into a value of from's type.
func (c *Conversion) unpack(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok || c.from.Storage != schema.StorageBinaryString {
		return v, nil
	}
	if c.fromEnc != nil {
		var err error
		if b, err = c.fromEnc.NewDecoder().Bytes(b); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.from.Encoding, err)
		}
	}
	if c.from.Type == schema.TypeBinary {
		return b, nil
	}
	if c.storage == nil {
		return string(b), nil
	}
	return c.storage.FromString(string(b))
}

// pack renders binary-string storage of to.
func (c *Conversion) pack(v any) (any, error) {
	if c.to.Storage != schema.StorageBinaryString {
		return v, nil
	}
	var s string
	switch x := v.(type) {
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		var err error
		if s, err = c.out.ToString(v); err != nil {
			return nil, err
		}
	}
	if c.toEnc != nil {
		b, err := c.toEnc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.to.Encoding, err)
		}
		return b, nil
	}
	return []byte(s), nil
}

func (c *Conversion) value(v any) (any, error) {
	from, to := c.from.Type, c.to.Type

	if textual(from) {
		s, err := asText(v)
		if err != nil {
			return nil, err
		}
		switch to {
		case schema.TypeString, schema.TypeNone:
			return c.to.Trim.Apply(s), nil
		case schema.TypeBinary:
			return []byte(s), nil
		}
		return c.text.FromString(s)
	}

	if textual(to) {
		s, err := c.text.ToString(v)
		if err != nil {
			return nil, err
		}
		if to == schema.TypeBinary {
			return []byte(s), nil
		}
		return c.to.Trim.Apply(s), nil
	}

	switch to {
	case schema.TypeInteger:
		return toInteger(from, v)
	case schema.TypeNumber:
		return toNumber(from, v)
	case schema.TypeBigNumber:
		return toBigNumber(from, v)
	case schema.TypeDate, schema.TypeTimestamp:
		return toTime(from, v)
	case schema.TypeBoolean:
		return asBool(v)
	}
	return nil, ErrUnsupported
}

func asText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return "", fmt.Errorf("%T is not text", v)
}

// toInteger rounds Numbers half up and truncates BigNumbers. Dates become
// milliseconds since the epoch.
func toInteger(from schema.Type, v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		r := math.Floor(x + 0.5)
		if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
			return nil, ErrOverflow
		}
		return int64(r), nil
	case decimal.Decimal:
		n, err := decimalToInt64(x)
		if err != nil {
			return nil, err
		}
		return n, nil
	case time.Time:
		return x.UnixMilli(), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("%s value of type %T: %w", from, v, ErrUnsupported)
}

func toNumber(from schema.Type, v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case time.Time:
		return float64(x.UnixMilli()), nil
	}
	d, err := asDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	return d.InexactFloat64(), nil
}

func toBigNumber(from schema.Type, v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return decimal.NewFromInt(t.UnixMilli()), nil
	}
	d, err := asDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	return d, nil
}

func toTime(from schema.Type, v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.UnixMilli(x).UTC(), nil
	case int:
		return time.UnixMilli(int64(x)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(x)).UTC(), nil
	case decimal.Decimal:
		ms, err := decimalToInt64(x)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return nil, fmt.Errorf("%s value of type %T: %w", from, v, ErrUnsupported)
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, fmt.Errorf("%v is not a finite number", x)
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case bool:
		if x {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, err
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%T is not a number", v)
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case decimal.Decimal:
		return !x.IsZero(), nil
	case string:
		return parseBool(x), nil
	}
	return false, fmt.Errorf("%T is not a boolean: %w", v, ErrUnsupported)
}

// decimalToInt64 truncates d toward zero.
func decimalToInt64(d decimal.Decimal) (int64, error) {
	d = d.Truncate(0)
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrOverflow)
	}
	return d.IntPart(), nil
}
