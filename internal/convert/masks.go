package convert

import "rowcore/internal/schema"

// Default conversion masks per type. They are part of the output contract:
// downstream steps and stored data depend on these exact strings.
const (
	DefaultIntegerFormatMask   = "####0;-####0"
	DefaultNumberFormatMask    = "####0.0#########;-####0.0#########"
	DefaultBigNumberFormatMask = "######0.0###################;-######0.0###################"
	DefaultDateFormatMask      = "yyyy/MM/dd HH:mm:ss.SSS"
	DefaultTimestampFormatMask = "yyyy/MM/dd HH:mm:ss.SSSSSSSSS"
)

// Policy selects where a type change without an explicit mask takes its
// default mask from.
type Policy int

const (
	// PolicyCurrent keeps the mask of the source type.
	PolicyCurrent Policy = iota
	// PolicyTypeDefaults takes the default mask of the target type. This is
	// the compatibility switch select_values_type_defaults.
	PolicyTypeDefaults
)

func (p Policy) String() string {
	if p == PolicyTypeDefaults {
		return "type-defaults"
	}
	return "current"
}

// PolicyFor maps the compatibility flag to a Policy.
func PolicyFor(typeDefaults bool) Policy {
	if typeDefaults {
		return PolicyTypeDefaults
	}
	return PolicyCurrent
}

// DefaultMask returns the built-in mask for t, or "" for types that are not
// formatted with a mask.
func DefaultMask(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return DefaultIntegerFormatMask
	case schema.TypeNumber:
		return DefaultNumberFormatMask
	case schema.TypeBigNumber:
		return DefaultBigNumberFormatMask
	case schema.TypeDate:
		return DefaultDateFormatMask
	case schema.TypeTimestamp:
		return DefaultTimestampFormatMask
	default:
		return ""
	}
}

// ChangeMask returns the conversion mask of a field whose type changes from
// `from` to `to`. An explicit mask always wins.
//
//	policy         BigNumber→Integer  BigNumber→Number  Integer→BigNumber
//	current        BigNumber mask     BigNumber mask    Integer mask
//	type-defaults  Integer mask       Number mask       BigNumber mask
func ChangeMask(policy Policy, from, to schema.Type, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if policy == PolicyTypeDefaults {
		return DefaultMask(to)
	}
	return DefaultMask(from)
}

// FieldMask is the mask a field formats and parses with: its own conversion
// mask, or the default of its type.
func FieldMask(f schema.Field) string {
	if f.ConversionMask != "" {
		return f.ConversionMask
	}
	return DefaultMask(f.Type)
}
