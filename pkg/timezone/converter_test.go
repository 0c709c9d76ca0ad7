package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLocalParts(t *testing.T) {
	// 2026-01-15 20:00 UTC is Thursday 14:00 in Chicago (CST, UTC-6).
	instant := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	parts, err := ToLocalParts(instant, "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, parts.Weekday)
	assert.Equal(t, 14*60, parts.Minute)
}

func TestToLocalPartsInvalidZone(t *testing.T) {
	_, err := ToLocalParts(time.Now(), "Not/AZone")
	require.Error(t, err)
}

func TestNextOccurrenceSameDay(t *testing.T) {
	// Thursday 10:00 UTC asking for Thursday 14:00 Chicago resolves later the same day.
	after := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	occ, err := NextOccurrence(time.Thursday, 14*60, "America/Chicago", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC), occ)
}

func TestNextOccurrenceRollsToNextWeek(t *testing.T) {
	// Reference is already past Thursday 14:00 local, so the next week applies.
	after := time.Date(2026, 1, 15, 21, 0, 0, 0, time.UTC)

	occ, err := NextOccurrence(time.Thursday, 14*60, "America/Chicago", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 22, 20, 0, 0, 0, time.UTC), occ)
}

func TestWeeklyOccurrencesPreserveLocalTimeAcrossDST(t *testing.T) {
	// Chicago leaves DST on 2026-11-01. A Thursday 14:00 series anchored
	// before the change must stay at 14:00 local, shifting its UTC offset.
	after := time.Date(2026, 10, 29, 19, 0, 0, 0, time.UTC)

	occurrences, err := WeeklyOccurrences(time.Thursday, 14*60, "America/Chicago", after, 3)
	require.NoError(t, err)
	require.Len(t, occurrences, 3)

	assert.Equal(t, time.Date(2026, 10, 29, 19, 0, 0, 0, time.UTC), occurrences[0]) // CDT, UTC-5
	assert.Equal(t, time.Date(2026, 11, 5, 20, 0, 0, 0, time.UTC), occurrences[1])  // CST, UTC-6
	assert.Equal(t, time.Date(2026, 11, 12, 20, 0, 0, 0, time.UTC), occurrences[2])

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	for _, occ := range occurrences {
		local := occ.In(loc)
		assert.Equal(t, 14, local.Hour())
		assert.Equal(t, 0, local.Minute())
		assert.Equal(t, time.Thursday, local.Weekday())
	}
}

func TestWeeklyOccurrencesSpacing(t *testing.T) {
	after := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

	occurrences, err := WeeklyOccurrences(time.Monday, 9*60, "UTC", after, 12)
	require.NoError(t, err)
	require.Len(t, occurrences, 12)
	for i := 1; i < len(occurrences); i++ {
		assert.Equal(t, 7*24*time.Hour, occurrences[i].Sub(occurrences[i-1]))
	}
}

func TestParseClock(t *testing.T) {
	minute, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, minute)

	_, err = ParseClock("25:00")
	require.Error(t, err)

	assert.Equal(t, "09:30", FormatClock(570))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("America/New_York"))
	require.Error(t, Validate(""))
	require.Error(t, Validate("Mars/Olympus"))
}
