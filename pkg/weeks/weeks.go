// Package weeks provides Monday-anchored week math for slot availability
// requests. Calendar pages and slot fetches are aligned to whole weeks, one
// request anchor per week, so every helper here normalizes to the Monday on or
// before a reference date.
package weeks

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MinWeeks is the smallest number of weeks a slot request may cover
	MinWeeks = 1
	// MaxWeeks is the largest number of weeks a slot request may cover
	MaxWeeks = 12

	// DateFormat is the wire format for calendar dates
	DateFormat = "2006-01-02"
)

// WeekInfo describes a single Monday-to-Sunday week
type WeekInfo struct {
	WeekNumber    int
	StartDate     time.Time
	EndDate       time.Time
	Dates         []time.Time
	IsCurrentWeek bool
	IsPastWeek    bool
}

// StartOfWeek returns the Monday on or before t, truncated to midnight
func StartOfWeek(t time.Time) time.Time {
	d := truncateToDay(t)
	switch d.Weekday() {
	case time.Sunday:
		return d.AddDate(0, 0, -6)
	default:
		return d.AddDate(0, 0, -int(d.Weekday()-time.Monday))
	}
}

// WeekDates returns n consecutive weeks beginning at the Monday on or before
// start. Current/past flags are computed against the wall clock.
func WeekDates(start time.Time, n int) []WeekInfo {
	return WeekDatesAt(start, n, time.Now())
}

// WeekDatesAt is WeekDates with an explicit reference time for the
// current/past week flags
func WeekDatesAt(start time.Time, n int, now time.Time) []WeekInfo {
	n = ValidateWeekConfig(n)
	currentWeekStart := StartOfWeek(now)

	result := make([]WeekInfo, 0, n)
	weekStart := StartOfWeek(start)
	for i := 0; i < n; i++ {
		dates := make([]time.Time, 7)
		for d := 0; d < 7; d++ {
			dates[d] = weekStart.AddDate(0, 0, d)
		}
		result = append(result, WeekInfo{
			WeekNumber:    WeekNumber(weekStart),
			StartDate:     weekStart,
			EndDate:       dates[6],
			Dates:         dates,
			IsCurrentWeek: weekStart.Equal(currentWeekStart),
			IsPastWeek:    weekStart.Before(currentWeekStart),
		})
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return result
}

// WeekAnchors returns only the Monday of each of the n weeks starting at the
// week containing start. One anchor per week keeps slot requests to a single
// date per week instead of seven.
func WeekAnchors(start time.Time, n int) []time.Time {
	n = ValidateWeekConfig(n)
	anchors := make([]time.Time, 0, n)
	weekStart := StartOfWeek(start)
	for i := 0; i < n; i++ {
		anchors = append(anchors, weekStart)
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return anchors
}

// WeeksForRange returns the number of whole weeks needed to cover [start, end],
// never less than one
func WeeksForRange(start, end time.Time) int {
	// normalize to UTC midnight so a DST transition inside the range cannot
	// shave a wall-clock hour off the day count
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if !e.After(s) {
		return MinWeeks
	}
	days := int(e.Sub(s).Hours() / 24)
	n := (days + 6) / 7
	if n < MinWeeks {
		return MinWeeks
	}
	return n
}

// ValidateWeekConfig clamps a requested week count to [MinWeeks, MaxWeeks].
// Out-of-range values are a caller mistake worth logging, not an error.
func ValidateWeekConfig(n int) int {
	if n < MinWeeks {
		log.Warn().Int("weeks", n).Int("clamped", MinWeeks).Msg("week count below minimum, clamping")
		return MinWeeks
	}
	if n > MaxWeeks {
		log.Warn().Int("weeks", n).Int("clamped", MaxWeeks).Msg("week count above maximum, clamping")
		return MaxWeeks
	}
	return n
}

// WeekNumber returns the ISO 8601 week number of t
func WeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
