package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum difference between the statement balance and the
// reconciled balance for which completion is allowed.
var Tolerance = decimal.RequireFromString("0.01")

// Reconciliation matches a bank account's journal entries against an
// external statement balance. AccountBalance is a snapshot computed from the
// balance engine at the statement date when the reconciliation is created;
// ReconciledBalance is recomputed whenever the linked set changes.
type Reconciliation struct {
	ID                int64           `json:"id"`
	BusinessID        int64           `json:"-"`
	LedgerAccountID   int64           `json:"ledger_account_id"`
	StatementDate     time.Time       `json:"statement_date"`
	StatementBalance  decimal.Decimal `json:"statement_balance"`
	AccountBalance    decimal.Decimal `json:"account_balance"`
	ReconciledBalance decimal.Decimal `json:"reconciled_balance"`
	IsCompleted       bool            `json:"is_completed"`
	CompletedBy       *int64          `json:"completed_by,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []Item          `json:"items,omitempty"`
}

// Item links one journal entry to a reconciliation. A journal entry may be
// linked at most once across all reconciliations of the business.
type Item struct {
	ID               int64           `json:"id"`
	ReconciliationID int64           `json:"-"`
	JournalEntryID   int64           `json:"journal_entry_id"`
	DebitAmount      decimal.Decimal `json:"debit_amount"`
	CreditAmount     decimal.Decimal `json:"credit_amount"`
	EntryDate        time.Time       `json:"entry_date"`
	CreatedAt        time.Time       `json:"created_at"`
}

// WithinTolerance reports whether the statement and reconciled balances
// agree closely enough to complete.
func (r Reconciliation) WithinTolerance() bool {
	return r.StatementBalance.Sub(r.ReconciledBalance).Abs().LessThanOrEqual(Tolerance)
}
