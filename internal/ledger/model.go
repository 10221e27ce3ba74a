package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
)

// Entry is one immutable debit-or-credit row against a ledger account,
// generated from a posted voucher item. Entries are never mutated in place;
// they are deleted and regenerated as a set when the owning voucher changes.
type Entry struct {
	ID              int64
	BusinessID      int64
	VoucherID       int64
	LedgerAccountID int64
	CostCenterID    *int64
	FinancialYearID int64
	Date            time.Time
	DebitAmount     decimal.Decimal
	CreditAmount    decimal.Decimal
	Narration       string
	CreatedAt       time.Time
}

// Balance is an account balance resolved to its natural side.
type Balance struct {
	Amount decimal.Decimal `json:"amount"`
	Type   coa.BalanceType `json:"type"`
}

// IsZero reports whether the balance carries no amount.
func (b Balance) IsZero() bool {
	return b.Amount.IsZero()
}

// Signed returns the balance as a debit-positive signed amount.
func (b Balance) Signed() decimal.Decimal {
	if b.Type == coa.BalanceCredit {
		return b.Amount.Neg()
	}
	return b.Amount
}

// Resolve applies the balance sign convention: for debit-positive natures
// (assets, expense) the balance is debits minus credits; for the rest it is
// credits minus debits. A negative result flips to the opposite side.
// openingSigned is the opening balance expressed debit-positive and is folded
// in before resolution.
func Resolve(nature coa.Nature, openingSigned, debit, credit decimal.Decimal) Balance {
	net := openingSigned.Add(debit).Sub(credit)
	if !nature.DebitPositive() {
		net = net.Neg()
	}
	side := coa.BalanceDebit
	if !nature.DebitPositive() {
		side = coa.BalanceCredit
	}
	if net.IsNegative() {
		if side == coa.BalanceDebit {
			side = coa.BalanceCredit
		} else {
			side = coa.BalanceDebit
		}
		net = net.Neg()
	}
	return Balance{Amount: net, Type: side}
}
