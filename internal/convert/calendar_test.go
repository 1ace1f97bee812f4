package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var britishCutover = time.Date(1752, time.September, 14, 0, 0, 0, 0, time.UTC)

func TestCalendar_JulianBeforeCutover(t *testing.T) {
	t.Parallel()

	uk := NewCalendar(britishCutover)
	got := uk.Date(1582, time.October, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1582-10-21", got.Format("2006-01-02"))

	got = uk.Date(2021, time.June, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2021-06-07", got.Format("2006-01-02"))

	// The day before the British switch was 2 September (Julian).
	got = uk.Date(1752, time.September, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1752-09-13", got.Format("2006-01-02"))
}

func TestCalendar_FieldsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, cal := range []Calendar{NewCalendar(time.Time{}), NewCalendar(britishCutover)} {
		for _, d := range [][3]int{{1000, 2, 29}, {1582, 10, 4}, {1700, 2, 29}, {1752, 9, 2}, {1752, 9, 14}, {1999, 12, 31}} {
			if !cal.ValidDate(d[0], d[1], d[2]) {
				continue
			}
			inst := cal.Date(d[0], time.Month(d[1]), d[2], 12, 0, 0, 0, time.UTC)
			y, m, day := cal.Fields(inst)
			assert.Equal(t, d, [3]int{y, int(m), day}, "cutover %s", cal.Cutover().Format("2006-01-02"))
		}
	}
}

func TestCalendar_JulianLeapDay(t *testing.T) {
	t.Parallel()

	def := NewCalendar(time.Time{})
	// Julian 1500-02-29 is proleptic Gregorian 1500-03-10.
	got := def.Date(1500, time.February, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1500-03-10", got.Format("2006-01-02"))
	y, m, d := def.Fields(got)
	assert.Equal(t, [3]int{1500, 2, 29}, [3]int{y, int(m), d})

	// Overflow carries through the Julian calendar: 1500-02-30 is 1500-03-01.
	got = def.Date(1500, time.February, 30, 0, 0, 0, 0, time.UTC)
	y, m, d = def.Fields(got)
	assert.Equal(t, [3]int{1500, 3, 1}, [3]int{y, int(m), d})

	// Month 13 carries into the next year before the calendar is picked.
	got = def.Date(1499, 13, 29, 0, 0, 0, 0, time.UTC)
	y, m, d = def.Fields(got)
	assert.Equal(t, [3]int{1500, 1, 29}, [3]int{y, int(m), d})

	got = def.Date(1500, 0, 1, 0, 0, 0, 0, time.UTC)
	y, m, d = def.Fields(got)
	assert.Equal(t, [3]int{1499, 12, 1}, [3]int{y, int(m), d})
}

func TestCalendar_ValidDate(t *testing.T) {
	t.Parallel()

	def := NewCalendar(time.Time{})
	require.Equal(t, DefaultGregorianChange, def.Cutover())

	assert.True(t, def.ValidDate(1582, 10, 4))
	assert.False(t, def.ValidDate(1582, 10, 10), "skipped by the switch")
	assert.True(t, def.ValidDate(1582, 10, 15))
	assert.True(t, def.ValidDate(1500, 2, 29), "Julian leap year")
	assert.False(t, def.ValidDate(1900, 2, 29))
	assert.False(t, def.ValidDate(2021, 13, 1))

	uk := NewCalendar(britishCutover)
	assert.True(t, uk.ValidDate(1700, 2, 29))
	assert.False(t, uk.ValidDate(1752, 9, 5))
}
