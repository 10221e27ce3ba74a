package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAgingPeriods are the standard receivable/payable aging boundaries
// in days.
var DefaultAgingPeriods = []int{30, 60, 90, 120}

// AgedAmount is one dated charge feeding the aging allocation, signed so
// that positive amounts increase the outstanding balance.
type AgedAmount struct {
	VoucherID int64
	Date      time.Time
	Amount    decimal.Decimal
}

// AgingBucket holds the outstanding amount strictly older than FromDays and
// at most ToDays old.
type AgingBucket struct {
	FromDays int             `json:"from_days"`
	ToDays   int             `json:"to_days"`
	Amount   decimal.Decimal `json:"amount"`
}

// Aging is the bucketed breakdown of an outstanding balance by age. The
// bucket amounts plus Current and Older always sum to Total.
type Aging struct {
	AsOf    time.Time       `json:"as_of"`
	Current decimal.Decimal `json:"current"`
	Buckets []AgingBucket   `json:"buckets"`
	Older   decimal.Decimal `json:"older"`
	Total   decimal.Decimal `json:"total"`
}

// AgeBuckets allocates an outstanding balance across dated charges first in,
// first out: charges are walked oldest-first and each absorbs as much of the
// remaining balance as its own amount allows. An allocated amount lands in
// the bucket of the largest period boundary its age strictly exceeds, in
// Current when it exceeds none, or in Older past the last boundary. Balance
// not covered by any charge predates the charge history and ages into Older.
func AgeBuckets(asOf time.Time, outstanding decimal.Decimal, charges []AgedAmount, periods []int) Aging {
	aging := Aging{
		AsOf:    asOf,
		Current: decimal.Zero,
		Older:   decimal.Zero,
		Total:   decimal.Zero,
	}
	for i := 0; i+1 < len(periods); i++ {
		aging.Buckets = append(aging.Buckets, AgingBucket{FromDays: periods[i], ToDays: periods[i+1], Amount: decimal.Zero})
	}
	if !outstanding.IsPositive() {
		return aging
	}
	remaining := outstanding
	for _, charge := range charges {
		if !remaining.IsPositive() {
			break
		}
		if !charge.Amount.IsPositive() {
			continue
		}
		alloc := charge.Amount
		if alloc.GreaterThan(remaining) {
			alloc = remaining
		}
		remaining = remaining.Sub(alloc)
		age := int(asOf.Sub(charge.Date).Hours() / 24)
		bucket := -1
		for i, p := range periods {
			if age > p {
				bucket = i
			}
		}
		switch {
		case bucket < 0:
			aging.Current = aging.Current.Add(alloc)
		case bucket == len(periods)-1:
			aging.Older = aging.Older.Add(alloc)
		default:
			aging.Buckets[bucket].Amount = aging.Buckets[bucket].Amount.Add(alloc)
		}
	}
	if remaining.IsPositive() {
		aging.Older = aging.Older.Add(remaining)
	}
	aging.Total = outstanding
	return aging
}

// AccountAging builds the aging breakdown for one account as of a date.
// debitPositive selects the outstanding sign convention: true for
// receivable-side accounts, false for payable-side ones.
func (s *Service) AccountAging(ctx context.Context, businessID, accountID int64, debitPositive bool, asOf time.Time, periods []int) (Aging, error) {
	if len(periods) == 0 {
		periods = DefaultAgingPeriods
	}
	totals, err := s.repo.VoucherTotals(ctx, businessID, accountID, asOf)
	if err != nil {
		return Aging{}, err
	}
	outstanding := decimal.Zero
	charges := make([]AgedAmount, 0, len(totals))
	for _, t := range totals {
		amount := t.Debit.Sub(t.Credit)
		if !debitPositive {
			amount = amount.Neg()
		}
		outstanding = outstanding.Add(amount)
		charges = append(charges, AgedAmount{VoucherID: t.VoucherID, Date: t.Date, Amount: amount})
	}
	return AgeBuckets(asOf, outstanding, charges, periods), nil
}
