package convert

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Symbols are the characters a number format prints and accepts.
type Symbols struct {
	Decimal  string
	Grouping string
	Minus    string
	Currency string
}

func (s Symbols) withDefaults() Symbols {
	if s.Decimal == "" {
		s.Decimal = "."
	}
	if s.Minus == "" {
		s.Minus = "-"
	}
	if s.Currency == "" {
		s.Currency = "$"
	}
	return s
}

// ParseLocale accepts both "en_GB" and "en-GB" forms. An empty string is
// language.Und.
func ParseLocale(s string) (language.Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("convert: locale %q: %w", s, err)
	}
	return tag, nil
}

// LocaleSymbols derives the decimal and grouping separators of tag by
// formatting a sample number with x/text, and the currency from the tag's
// region. language.Und yields the plain ".", "," and "$" set.
func LocaleSymbols(tag language.Tag) Symbols {
	sym := Symbols{Decimal: ".", Grouping: ",", Minus: "-", Currency: "$"}
	if tag == language.Und {
		return sym
	}

	// 12345678.5 renders as 12<group>345<group>678<decimal>5; locales that
	// only group from five digits on still group here.
	sample := message.NewPrinter(tag).Sprint(number.Decimal(12345678.5, number.MinFractionDigits(1)))
	if g, d, ok := splitSeparators(sample); ok {
		sym.Grouping, sym.Decimal = g, d
	}
	if unit, conf := currency.FromTag(tag); conf != language.No {
		sym.Currency = unit.String()
	}
	return sym
}

// splitSeparators extracts the separators from a formatted 12345678.5. It fails
// for scripts that do not use ASCII digits.
func splitSeparators(s string) (string, string, bool) {
	j := strings.Index(s, "345")
	k := strings.Index(s, "678")
	if j < 0 || k < j+3 || !strings.HasSuffix(s, "5") || len(s) < k+4 {
		return "", "", false
	}
	group := s[j+3 : k]
	dec := s[k+3 : len(s)-1]
	if dec == "" || !utf8.ValidString(group) {
		return "", "", false
	}
	return group, dec, true
}

// SymbolsFor resolves the symbols of a field: locale defaults overridden by
// explicit non-empty decimal, grouping and currency settings.
func SymbolsFor(locale, decimalSym, groupingSym, currencySym string) (Symbols, error) {
	tag, err := ParseLocale(locale)
	if err != nil {
		return Symbols{}, err
	}
	sym := LocaleSymbols(tag)
	if decimalSym != "" {
		sym.Decimal = decimalSym
	}
	if groupingSym != "" {
		sym.Grouping = groupingSym
	}
	if currencySym != "" {
		sym.Currency = currencySym
	}
	if sym.Decimal == sym.Grouping {
		return Symbols{}, fmt.Errorf("convert: decimal and grouping symbol are both %q", sym.Decimal)
	}
	return sym, nil
}
