package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseLocale(t *testing.T) {
	t.Parallel()

	tag, err := ParseLocale("en_GB")
	require.NoError(t, err)
	assert.Equal(t, language.BritishEnglish, tag)

	tag, err = ParseLocale(" ")
	require.NoError(t, err)
	assert.Equal(t, language.Und, tag)

	_, err = ParseLocale("not a locale!")
	assert.Error(t, err)
}

func TestLocaleSymbols(t *testing.T) {
	t.Parallel()

	de := LocaleSymbols(language.German)
	assert.Equal(t, ",", de.Decimal)
	assert.Equal(t, ".", de.Grouping)

	us := LocaleSymbols(language.AmericanEnglish)
	assert.Equal(t, ".", us.Decimal)
	assert.Equal(t, ",", us.Grouping)
	assert.Equal(t, "USD", us.Currency)

	gb := LocaleSymbols(language.BritishEnglish)
	assert.Equal(t, "GBP", gb.Currency)

	und := LocaleSymbols(language.Und)
	assert.Equal(t, Symbols{Decimal: ".", Grouping: ",", Minus: "-", Currency: "$"}, und)
}

func TestSymbolsFor_Overrides(t *testing.T) {
	t.Parallel()

	sym, err := SymbolsFor("de-DE", "", "'", "€")
	require.NoError(t, err)
	assert.Equal(t, ",", sym.Decimal)
	assert.Equal(t, "'", sym.Grouping)
	assert.Equal(t, "€", sym.Currency)

	_, err = SymbolsFor("", ",", "", "")
	assert.Error(t, err, "decimal equal to the default grouping symbol")

	_, err = SymbolsFor("xx_!!", "", "", "")
	assert.Error(t, err)
}
