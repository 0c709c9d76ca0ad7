// Package timezone converts between UTC instants and teacher-local weekly
// wall-clock positions (day of week plus minutes after midnight).
package timezone

import (
	"fmt"
	"time"
)

// LocalParts locates an instant on a teacher's weekly wall clock.
type LocalParts struct {
	Weekday time.Weekday
	Minute  int
}

// ToLocalParts converts a UTC instant into the local day-of-week and
// minutes-after-midnight for the given IANA zone. An unknown zone is an
// error; callers decide whether a fallback applies.
func ToLocalParts(instant time.Time, zone string) (LocalParts, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return LocalParts{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	local := instant.In(loc)
	return LocalParts{Weekday: local.Weekday(), Minute: local.Hour()*60 + local.Minute()}, nil
}

// NextOccurrence returns the first UTC instant at or after the reference
// whose wall clock in the zone matches the given weekday and minute. The
// local time is recomputed per date, so the result carries the correct UTC
// offset on either side of a DST transition.
func NextOccurrence(weekday time.Weekday, minute int, zone string, after time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	if minute < 0 || minute > 1439 {
		return time.Time{}, fmt.Errorf("minute of day %d out of range", minute)
	}

	local := after.In(loc)
	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		if day.Weekday() != weekday {
			continue
		}
		candidate := time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
		if !candidate.Before(after) {
			return candidate.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no occurrence of weekday %d within a week of %s", weekday, after)
}

// WeeklyOccurrences returns count UTC instants for a weekly pattern, starting
// with the first occurrence at or after the reference. Each occurrence is
// rebuilt from the local calendar date, so a series anchored at 14:00 local
// stays at 14:00 local across DST boundaries instead of drifting by an hour.
func WeeklyOccurrences(weekday time.Weekday, minute int, zone string, after time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, nil
	}
	first, err := NextOccurrence(weekday, minute, zone, after)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}

	base := first.In(loc)
	occurrences := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		day := base.AddDate(0, 0, 7*i)
		occ := time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
		occurrences = append(occurrences, occ.UTC())
	}
	return occurrences, nil
}

// ParseClock parses an "HH:MM" wall-clock string into minutes after midnight.
func ParseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Validate reports whether the zone is a loadable IANA identifier.
func Validate(zone string) error {
	if zone == "" {
		return fmt.Errorf("timezone is empty")
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return nil
}
