package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func active(freq Frequency, start time.Time) Transaction {
	return Transaction{Frequency: freq, StartDate: start, IsActive: true}
}

func TestNextDueDateDaily(t *testing.T) {
	rec := active(FrequencyDaily, day(2026, time.January, 1))

	due, ok := NextDueDate(rec, day(2026, time.March, 10))
	require.True(t, ok)
	require.Equal(t, day(2026, time.March, 10), due)

	// never before the start date
	due, ok = NextDueDate(rec, day(2025, time.June, 1))
	require.True(t, ok)
	require.Equal(t, day(2026, time.January, 1), due)
}

func TestNextDueDateWeekly(t *testing.T) {
	rec := active(FrequencyWeekly, day(2026, time.January, 1))
	rec.DayOfWeek = intp(int(time.Friday))

	// 2026-03-10 is a Tuesday, next Friday is the 13th
	due, ok := NextDueDate(rec, day(2026, time.March, 10))
	require.True(t, ok)
	require.Equal(t, day(2026, time.March, 13), due)

	// a Friday is due the same day
	due, ok = NextDueDate(rec, day(2026, time.March, 13))
	require.True(t, ok)
	require.Equal(t, day(2026, time.March, 13), due)
}

func TestNextDueDateMonthlyClampsShortMonths(t *testing.T) {
	rec := active(FrequencyMonthly, day(2026, time.January, 31))
	rec.DayOfMonth = intp(31)

	due, ok := NextDueDate(rec, day(2026, time.February, 1))
	require.True(t, ok)
	// February 2026 has 28 days
	require.Equal(t, day(2026, time.February, 28), due)

	due, ok = NextDueDate(rec, day(2026, time.April, 1))
	require.True(t, ok)
	require.Equal(t, day(2026, time.April, 30), due)
}

func TestNextDueDateQuarterlyKeepsAnchor(t *testing.T) {
	rec := active(FrequencyQuarterly, day(2026, time.January, 15))
	rec.DayOfMonth = intp(15)

	// quarters run Jan, Apr, Jul, Oct; mid-February rolls to April
	due, ok := NextDueDate(rec, day(2026, time.February, 10))
	require.True(t, ok)
	require.Equal(t, day(2026, time.April, 15), due)

	due, ok = NextDueDate(rec, day(2026, time.April, 16))
	require.True(t, ok)
	require.Equal(t, day(2026, time.July, 15), due)
}

func TestNextDueDateYearly(t *testing.T) {
	rec := active(FrequencyYearly, day(2026, time.January, 1))
	rec.DayOfMonth = intp(29)
	rec.Month = intp(2)

	// 2026 is not a leap year, clamp to Feb 28
	due, ok := NextDueDate(rec, day(2026, time.January, 10))
	require.True(t, ok)
	require.Equal(t, day(2026, time.February, 28), due)

	// past this year's occurrence, roll to 2027
	due, ok = NextDueDate(rec, day(2026, time.March, 1))
	require.True(t, ok)
	require.Equal(t, day(2027, time.February, 28), due)
}

func TestNextDueDateBounds(t *testing.T) {
	rec := active(FrequencyMonthly, day(2026, time.January, 1))
	rec.DayOfMonth = intp(1)

	end := day(2026, time.June, 1)
	rec.EndDate = &end
	_, ok := NextDueDate(rec, day(2026, time.June, 2))
	require.False(t, ok)

	rec.EndDate = nil
	rec.Occurrences = intp(3)
	rec.OccurrencesGenerated = 3
	_, ok = NextDueDate(rec, day(2026, time.February, 1))
	require.False(t, ok)

	rec.OccurrencesGenerated = 2
	due, ok := NextDueDate(rec, day(2026, time.February, 1))
	require.True(t, ok)
	require.Equal(t, day(2026, time.February, 1), due)

	rec.IsActive = false
	_, ok = NextDueDate(rec, day(2026, time.February, 1))
	require.False(t, ok)
}

func TestNextDueDateSkipsGeneratedOccurrence(t *testing.T) {
	rec := active(FrequencyMonthly, day(2026, time.January, 1))
	rec.DayOfMonth = intp(1)

	last := day(2026, time.March, 1)
	rec.LastGeneratedDate = &last
	due, ok := NextDueDate(rec, day(2026, time.March, 1))
	require.True(t, ok)
	require.Equal(t, day(2026, time.April, 1), due)

	// A daily schedule generated today is next due tomorrow.
	daily := active(FrequencyDaily, day(2026, time.January, 1))
	daily.LastGeneratedDate = &last
	due, ok = NextDueDate(daily, day(2026, time.March, 1))
	require.True(t, ok)
	require.Equal(t, day(2026, time.March, 2), due)
}

func TestIsDue(t *testing.T) {
	rec := active(FrequencyMonthly, day(2026, time.January, 1))
	rec.DayOfMonth = intp(15)

	require.True(t, IsDue(rec, day(2026, time.February, 15)))
	// next occurrence (Mar 15) is in the future
	require.False(t, IsDue(rec, day(2026, time.February, 16)))

	generated := day(2026, time.February, 15)
	rec.LastGeneratedDate = &generated
	require.False(t, IsDue(rec, day(2026, time.February, 15)))
}
