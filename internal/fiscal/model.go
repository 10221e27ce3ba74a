package fiscal

import "time"

// FinancialYear is a business's accounting period. When locked it rejects
// all voucher mutation dated within its range.
type FinancialYear struct {
	ID         int64
	BusinessID int64
	StartDate  time.Time
	EndDate    time.Time
	IsCurrent  bool
	IsLocked   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether the date falls inside the year's range, inclusive.
func (y FinancialYear) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(y.StartDate) && !d.After(y.EndDate)
}

// Overlaps reports whether the given range intersects this year's range.
func (y FinancialYear) Overlaps(start, end time.Time) bool {
	return !start.After(y.EndDate) && !end.Before(y.StartDate)
}
