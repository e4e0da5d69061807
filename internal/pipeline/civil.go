package pipeline

import "time"

// Date is a civil (time-zone-free) calendar date: the canonical-type
// value a "date" field coerces to. It exists separately from
// time.Time so that date and datetime columns cannot be confused when
// building a Parquet schema (date32 vs timestamp(μs)).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateFromTime truncates t to its calendar date, discarding
// time-of-day and location.
func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ToTime renders the date as a time.Time at midnight UTC, the
// representation Arrow's date32 builder accepts.
func (d Date) ToTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.ToTime().Format("2006-01-02")
}

// Equal reports whether two dates name the same day.
func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}
