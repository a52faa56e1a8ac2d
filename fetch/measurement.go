package fetch

import (
	"database/sql"
	"time"
)

// Measurement is one observation from the daily CO2 feed.
// Co2Ppm is nullable: the feed uses sentinel text for missing readings and
// lenient numeric coercion maps those to null rather than aborting the run.
type Measurement struct {
	Year        int
	Month       int
	Day         int
	DecimalDate float64
	Co2Ppm      sql.NullFloat64
	DailyChange sql.NullFloat64 // present only when the feed supplies 6 columns.
}

// Date returns the calendar date reconstructed from the year/month/day fields.
func (m Measurement) Date() time.Time {
	return time.Date(m.Year, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
}
