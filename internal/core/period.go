package core

import "time"

// DefaultTimezone is the fixed zone all period windows are computed in.
const DefaultTimezone = "America/Sao_Paulo"

// DayRange returns [start, end) of the local calendar day containing t.
// Boundaries are rebuilt with time.Date in t's location, so days shortened
// or stretched by DST still start at local midnight.
func DayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// WeekRange returns [start, end) of the Monday-start week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, -daysSinceMonday)
	return start, start.AddDate(0, 0, 7)
}

// MonthRange returns [start, end) of the calendar month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// DateOnly truncates t to its local calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
