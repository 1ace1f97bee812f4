package convert

import "time"

// DefaultGregorianChange is the first day of the Gregorian calendar as
// introduced in 1582. Dates before a field's cutover are read and written in
// the Julian calendar.
var DefaultGregorianChange = time.Date(1582, time.October, 15, 0, 0, 0, 0, time.UTC)

// Calendar maps calendar fields to instants for a hybrid Julian/Gregorian
// calendar. time.Time itself is proleptic Gregorian, so a Julian date such as
// 1582-10-11 becomes the instant Go prints as 1582-10-21.
type Calendar struct {
	cutoverJDN int
}

// NewCalendar returns a calendar switching to Gregorian at change. A zero
// change selects DefaultGregorianChange.
func NewCalendar(change time.Time) Calendar {
	if change.IsZero() {
		change = DefaultGregorianChange
	}
	y, m, d := change.Date()
	return Calendar{cutoverJDN: gregorianJDN(y, int(m), d)}
}

// Cutover returns the first Gregorian day.
func (c Calendar) Cutover() time.Time {
	y, m, d := jdnToGregorian(c.cutoverJDN)
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func (c Calendar) julianDay(y, m, d int) bool {
	return gregorianJDN(y, m, d) < c.cutoverJDN
}

// Date builds the instant for the given calendar fields. Out-of-range
// months carry into the year and out-of-range days carry through the day
// number, in the calendar the fields belong to.
func (c Calendar) Date(year int, month time.Month, day, hour, min, sec, nsec int, loc *time.Location) time.Time {
	m0 := int(month) - 1
	year += m0 / 12
	if m0 %= 12; m0 < 0 {
		m0 += 12
		year--
	}
	m := m0 + 1
	if !c.julianDay(year, m, day) {
		return time.Date(year, time.Month(m), day, hour, min, sec, nsec, loc)
	}
	y, mm, dd := jdnToGregorian(julianJDN(year, m, day))
	return time.Date(y, time.Month(mm), dd, hour, min, sec, nsec, loc)
}

// Fields returns the calendar year, month and day of t in t's location.
func (c Calendar) Fields(t time.Time) (int, time.Month, int) {
	y, m, d := t.Date()
	jdn := gregorianJDN(y, int(m), d)
	if jdn >= c.cutoverJDN {
		return y, m, d
	}
	jy, jm, jd := jdnToJulian(jdn)
	return jy, time.Month(jm), jd
}

// ValidDate reports whether year-month-day names a real day in this
// calendar. Days skipped by the switch are not valid.
func (c Calendar) ValidDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	if c.julianDay(year, month, day) {
		jy, jm, jd := jdnToJulian(julianJDN(year, month, day))
		return jy == year && jm == month && jd == day &&
			julianJDN(year, month, day) < c.cutoverJDN
	}
	gy, gm, gd := jdnToGregorian(gregorianJDN(year, month, day))
	return gy == year && gm == month && gd == day
}

// Julian Day Number arithmetic, valid for years after -4800.

func gregorianJDN(y, m, d int) int {
	a := (14 - m) / 12
	yy := y + 4800 - a
	mm := m + 12*a - 3
	return d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
}

func julianJDN(y, m, d int) int {
	a := (14 - m) / 12
	yy := y + 4800 - a
	mm := m + 12*a - 3
	return d + (153*mm+2)/5 + 365*yy + yy/4 - 32083
}

func jdnToGregorian(j int) (int, int, int) {
	a := j + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return year, month, day
}

func jdnToJulian(j int) (int, int, int) {
	c := j + 32082
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := d - 4800 + m/10
	return year, month, day
}
