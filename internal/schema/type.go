// Package schema models row layouts: ordered, name-indexed field descriptors
// (RowMeta) and the merge that reconciles layouts when several input streams
// feed the same downstream step.
//
// A RowMeta that has been handed to other goroutines is treated as immutable.
// Merges and conversions always build a new RowMeta instead of editing one in
// place; see MergeInto and Merger.
package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// Type is the closed set of value types a field can carry.
type Type int

const (
	TypeNone Type = iota
	TypeString
	TypeInteger
	TypeNumber
	TypeBigNumber
	TypeDate
	TypeTimestamp
	TypeBoolean
	TypeBinary
)

var typeNames = [...]string{
	TypeNone:      "None",
	TypeString:    "String",
	TypeInteger:   "Integer",
	TypeNumber:    "Number",
	TypeBigNumber: "BigNumber",
	TypeDate:      "Date",
	TypeTimestamp: "Timestamp",
	TypeBoolean:   "Boolean",
	TypeBinary:    "Binary",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsNumeric reports whether values of t are numbers.
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeNumber || t == TypeBigNumber
}

// IsTemporal reports whether values of t are points in time.
func (t Type) IsTemporal() bool {
	return t == TypeDate || t == TypeTimestamp
}

// ParseType resolves a type name case-insensitively. A few common aliases
// ("int", "float", "decimal", "bool", ...) are accepted so pipeline files can
// use the names people actually type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "string", "text":
		return TypeString, nil
	case "integer", "int", "bigint", "long":
		return TypeInteger, nil
	case "number", "float", "double", "real":
		return TypeNumber, nil
	case "bignumber", "decimal", "numeric":
		return TypeBigNumber, nil
	case "date":
		return TypeDate, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "binary", "bytes", "blob":
		return TypeBinary, nil
	}
	return TypeNone, fmt.Errorf("schema: unknown type %q", s)
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// StorageType describes how a value is held in a row.
type StorageType int

const (
	StorageNormal StorageType = iota
	StorageBinaryString
	StorageIndexed
)

var storageNames = [...]string{
	StorageNormal:       "normal",
	StorageBinaryString: "binary-string",
	StorageIndexed:      "indexed",
}

func (s StorageType) String() string {
	if s < 0 || int(s) >= len(storageNames) {
		return fmt.Sprintf("StorageType(%d)", int(s))
	}
	return storageNames[s]
}

func (s StorageType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StorageType) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "normal":
		*s = StorageNormal
	case "binary-string", "binary_string", "binarystring":
		*s = StorageBinaryString
	case "indexed":
		*s = StorageIndexed
	default:
		return fmt.Errorf("schema: unknown storage type %q", string(b))
	}
	return nil
}

// TrimType selects which side of a string value is stripped of whitespace.
type TrimType int

const (
	TrimNone TrimType = iota
	TrimLeft
	TrimRight
	TrimBoth
)

var trimNames = [...]string{
	TrimNone:  "none",
	TrimLeft:  "left",
	TrimRight: "right",
	TrimBoth:  "both",
}

func (t TrimType) String() string {
	if t < 0 || int(t) >= len(trimNames) {
		return fmt.Sprintf("TrimType(%d)", int(t))
	}
	return trimNames[t]
}

// Apply trims s according to t.
func (t TrimType) Apply(s string) string {
	switch t {
	case TrimLeft:
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	case TrimRight:
		return strings.TrimRightFunc(s, unicode.IsSpace)
	case TrimBoth:
		return strings.TrimSpace(s)
	}
	return s
}

func (t TrimType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TrimType) UnmarshalText(b []byte) error {
	for i, n := range trimNames {
		if strings.EqualFold(n, strings.TrimSpace(string(b))) {
			*t = TrimType(i)
			return nil
		}
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		*t = TrimNone
		return nil
	}
	return fmt.Errorf("schema: unknown trim type %q", string(b))
}
