// Package timeutil provides calendar helpers pinned to the Oqu platform
// timezone. Streaks, daily goals, and leaderboard windows are all defined
// in terms of calendar days in this zone, not the server's local zone.
package timeutil

import (
	"time"
)

// PlatformTimezone is the timezone of the Oqu platform (Kazakhstan).
const PlatformTimezone = "Asia/Almaty"

var platformLocation *time.Location

func init() {
	loc, err := time.LoadLocation(PlatformTimezone)
	if err != nil {
		// UTC+5, Kazakhstan's single timezone since 2024.
		loc = time.FixedZone("ALMT", 5*60*60)
	}
	platformLocation = loc
}

// Location returns the platform timezone location.
func Location() *time.Location {
	return platformLocation
}

// Now returns the current time in the platform timezone.
func Now() time.Time {
	return time.Now().In(platformLocation)
}

// ToPlatform converts a time to the platform timezone.
func ToPlatform(t time.Time) time.Time {
	return t.In(platformLocation)
}

// StartOfDay returns midnight of t's calendar day in the platform timezone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(platformLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, platformLocation)
}

// EndOfDay returns the last nanosecond of t's calendar day in the
// platform timezone.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// IsSameDay reports whether a and b fall on the same calendar day
// in the platform timezone.
func IsSameDay(a, b time.Time) bool {
	al := a.In(platformLocation)
	bl := b.In(platformLocation)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

// DayKey returns the canonical YYYY-MM-DD key of t's calendar day
// in the platform timezone. Used as the natural key for daily goals.
func DayKey(t time.Time) string {
	return t.In(platformLocation).Format("2006-01-02")
}

// StartOfWeek returns midnight Monday of t's ISO week in the
// platform timezone.
func StartOfWeek(t time.Time) time.Time {
	local := t.In(platformLocation)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday - 1)))
}

// StartOfMonth returns midnight of the first day of t's month in the
// platform timezone.
func StartOfMonth(t time.Time) time.Time {
	local := t.In(platformLocation)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, platformLocation)
}

// DaysBetween returns the number of calendar-day boundaries between a and b
// in the platform timezone. Same day yields 0, consecutive days yield 1.
func DaysBetween(a, b time.Time) int {
	start := StartOfDay(a)
	end := StartOfDay(b)
	return int(end.Sub(start).Hours() / 24)
}
