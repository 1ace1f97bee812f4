package schema

import (
	"strings"
	"time"
)

// ConstantPrefix marks fields whose value is the same on every row. Such
// fields are never duplicated by a merge.
const ConstantPrefix = "CONST_"

// Field describes one column of a row.
//
// Length and Precision use -1 for "not specified". A zero GregorianChange
// means the historical cutover (1582-10-15).
type Field struct {
	Name      string      `json:"name" yaml:"name"`
	Type      Type        `json:"type" yaml:"type"`
	Length    int         `json:"length" yaml:"length"`
	Precision int         `json:"precision" yaml:"precision"`
	Storage   StorageType `json:"storage,omitempty" yaml:"storage,omitempty"`

	ConversionMask string   `json:"conversion_mask,omitempty" yaml:"conversion_mask,omitempty"`
	Locale         string   `json:"locale,omitempty" yaml:"locale,omitempty"`
	TimeZone       string   `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	Trim           TrimType `json:"trim,omitempty" yaml:"trim,omitempty"`
	// Encoding names the charset of binary-string storage; empty is UTF-8.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	DecimalSymbol  string `json:"decimal_symbol,omitempty" yaml:"decimal_symbol,omitempty"`
	GroupingSymbol string `json:"grouping_symbol,omitempty" yaml:"grouping_symbol,omitempty"`
	CurrencySymbol string `json:"currency_symbol,omitempty" yaml:"currency_symbol,omitempty"`

	DateLenient           bool      `json:"date_lenient,omitempty" yaml:"date_lenient,omitempty"`
	LenientStringToNumber bool      `json:"lenient_string_to_number,omitempty" yaml:"lenient_string_to_number,omitempty"`
	GregorianChange       time.Time `json:"gregorian_change,omitempty" yaml:"gregorian_change,omitempty"`

	// Origin is the label of the step that contributed the field.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// NewField returns a field with unspecified length and precision.
func NewField(name string, t Type) Field {
	return Field{Name: name, Type: t, Length: -1, Precision: -1}
}

// IsConstant reports whether the field carries a per-stream constant.
func (f Field) IsConstant() bool {
	return strings.HasPrefix(f.Name, ConstantPrefix)
}

// Renamed returns a copy of f with a new name and origin.
func (f Field) Renamed(name, origin string) Field {
	f.Name = name
	if origin != "" {
		f.Origin = origin
	}
	return f
}
