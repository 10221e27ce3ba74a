package recurring

import "time"

// NextDueDate computes the first schedule occurrence on or after fromDate,
// never earlier than the start date and strictly after the last generated
// due date. It returns false when the schedule is inactive, exhausted, or
// past its end date.
func NextDueDate(t Transaction, fromDate time.Time) (time.Time, bool) {
	if !t.IsActive || t.Exhausted() {
		return time.Time{}, false
	}
	base := midnight(fromDate)
	start := midnight(t.StartDate)
	if base.Before(start) {
		base = start
	}
	if t.LastGeneratedDate != nil {
		afterLast := midnight(*t.LastGeneratedDate).AddDate(0, 0, 1)
		if base.Before(afterLast) {
			base = afterLast
		}
	}

	var due time.Time
	switch t.Frequency {
	case FrequencyDaily:
		due = base
	case FrequencyWeekly:
		weekday := int(base.Weekday())
		target := weekday
		if t.DayOfWeek != nil {
			target = *t.DayOfWeek
		}
		due = base.AddDate(0, 0, (target-weekday+7)%7)
	case FrequencyMonthly:
		due = nextStepped(start, base, dayOf(t.DayOfMonth, start.Day()), 1)
	case FrequencyQuarterly:
		due = nextStepped(start, base, dayOf(t.DayOfMonth, start.Day()), 3)
	case FrequencyYearly:
		month := int(start.Month())
		if t.Month != nil {
			month = *t.Month
		}
		due = nextYearly(base, dayOf(t.DayOfMonth, start.Day()), time.Month(month))
	default:
		return time.Time{}, false
	}

	if t.EndDate != nil && due.After(midnight(*t.EndDate)) {
		return time.Time{}, false
	}
	return due, true
}

// IsDue reports whether the schedule has an ungenerated occurrence on or
// before today.
func IsDue(t Transaction, today time.Time) bool {
	due, ok := NextDueDate(t, today)
	return ok && !due.After(midnight(today))
}

// nextStepped finds the first clamped day-of-month occurrence >= base,
// stepping whole months at a time anchored at the start date's month so
// quarterly schedules keep their quarter alignment.
func nextStepped(start, base time.Time, day, step int) time.Time {
	year, month := start.Year(), start.Month()
	candidate := clampedDate(year, month, day)
	for candidate.Before(base) {
		month += time.Month(step)
		candidate = clampedDate(year, month, day)
	}
	return candidate
}

func nextYearly(base time.Time, day int, month time.Month) time.Time {
	candidate := clampedDate(base.Year(), month, day)
	if candidate.Before(base) {
		candidate = clampedDate(base.Year()+1, month, day)
	}
	return candidate
}

// clampedDate builds a date clamping day to the month's length, so a
// day-of-month of 31 lands on Feb 28/29, Apr 30, and so on.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func dayOf(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
