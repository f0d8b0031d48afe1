// Package weekclock maps instants onto ISO-8601 weeks observed in one fixed
// UTC offset, so every user in every chat sees the same week boundary.
package weekclock

import (
	"fmt"
	"time"
)

// DefaultOffset is the offset the service observes week boundaries in (UTC+3).
const DefaultOffset = 3 * time.Hour

// Week identifies an ISO week: Number in 1..53, Year is the ISO year owning the
// week's Thursday.
type Week struct {
	Number int `json:"week"`
	Year   int `json:"year"`
}

// Valid reports whether the week exists in the ISO calendar.
func (w Week) Valid() bool {
	if w.Year < 1 || w.Number < 1 || w.Number > 53 {
		return false
	}
	return w.Number <= WeeksInYear(w.Year)
}

// Before orders weeks chronologically.
func (w Week) Before(other Week) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Number < other.Number
}

// Next returns the following ISO week.
func (w Week) Next() Week {
	if w.Number >= WeeksInYear(w.Year) {
		return Week{Number: 1, Year: w.Year + 1}
	}
	return Week{Number: w.Number + 1, Year: w.Year}
}

// Prev returns the preceding ISO week.
func (w Week) Prev() Week {
	if w.Number <= 1 {
		return Week{Number: WeeksInYear(w.Year - 1), Year: w.Year - 1}
	}
	return Week{Number: w.Number - 1, Year: w.Year}
}

func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Number)
}

// WeeksInYear returns 52 or 53. December 28th always falls in the last ISO week.
func WeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// Zone returns the fixed location used for week math.
func Zone(offset time.Duration) *time.Location {
	seconds := int(offset / time.Second)
	return time.FixedZone(zoneName(seconds), seconds)
}

// Resolve returns the ISO week containing ts as observed at the given offset.
func Resolve(ts time.Time, offset time.Duration) Week {
	year, week := ts.In(Zone(offset)).ISOWeek()
	return Week{Number: week, Year: year}
}

// WeekStart returns Monday 00:00 of the week at the given offset.
func WeekStart(w Week, offset time.Duration) time.Time {
	loc := Zone(offset)
	// January 4th is always in week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, loc)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	firstMonday := jan4.AddDate(0, 0, -daysSinceMonday)
	return firstMonday.AddDate(0, 0, (w.Number-1)*7)
}

// WeekEnd returns the exclusive upper bound of the week, i.e. the start of the
// next one.
func WeekEnd(w Week, offset time.Duration) time.Time {
	return WeekStart(w, offset).AddDate(0, 0, 7)
}

func zoneName(seconds int) string {
	if seconds == 0 {
		return "UTC"
	}
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, minutes)
}
