package voucher

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeNature classifies a voucher type. It drives how parties and reports
// interpret the voucher: sales and debit notes raise receivables, receipts
// settle them; purchase and credit notes mirror that on the payable side.
type TypeNature string

const (
	NatureReceipt    TypeNature = "receipt"
	NaturePayment    TypeNature = "payment"
	NatureContra     TypeNature = "contra"
	NatureJournal    TypeNature = "journal"
	NatureSales      TypeNature = "sales"
	NaturePurchase   TypeNature = "purchase"
	NatureDebitNote  TypeNature = "debit_note"
	NatureCreditNote TypeNature = "credit_note"
)

// Valid reports whether the nature is one of the known kinds.
func (n TypeNature) Valid() bool {
	switch n {
	case NatureReceipt, NaturePayment, NatureContra, NatureJournal,
		NatureSales, NaturePurchase, NatureDebitNote, NatureCreditNote:
		return true
	}
	return false
}

// VoucherType defines a numbering series and nature for vouchers.
type VoucherType struct {
	ID             int64      `json:"id"`
	BusinessID     int64      `json:"-"`
	Name           string     `json:"name"`
	Code           string     `json:"code"`
	Nature         TypeNature `json:"nature"`
	Prefix         string     `json:"prefix"`
	AutoIncrement  bool       `json:"auto_increment"`
	StartingNumber int64      `json:"starting_number"`
	IsSystem       bool       `json:"is_system"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Voucher is the transaction capture unit. Its items always balance and its
// journal entries exist exactly while it is posted.
type Voucher struct {
	ID              int64           `json:"id"`
	BusinessID      int64           `json:"-"`
	VoucherTypeID   int64           `json:"voucher_type_id"`
	FinancialYearID int64           `json:"financial_year_id"`
	VoucherNumber   string          `json:"voucher_number"`
	Sequence        int64           `json:"-"`
	Date            time.Time       `json:"date"`
	PartyID         *int64          `json:"party_id,omitempty"`
	Narration       string          `json:"narration"`
	Reference       string          `json:"reference"`
	AttachmentKey   *string         `json:"attachment_key,omitempty"`
	IsPosted        bool            `json:"is_posted"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedBy       int64           `json:"created_by"`
	UpdatedBy       int64           `json:"updated_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items,omitempty"`
}

// Item is one debit-or-credit line of a voucher.
type Item struct {
	ID              int64           `json:"id"`
	VoucherID       int64           `json:"-"`
	LedgerAccountID int64           `json:"ledger_account_id"`
	CostCenterID    *int64          `json:"cost_center_id,omitempty"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Narration       string          `json:"narration"`
	Sequence        int             `json:"sequence"`
}

// Totals sums the item sides rounded to 2 decimals, the voucher's stored
// precision.
func Totals(items []Item) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, it := range items {
		debit = debit.Add(it.DebitAmount)
		credit = credit.Add(it.CreditAmount)
	}
	return debit.Round(2), credit.Round(2)
}

// Balanced reports whether the items satisfy the double-entry invariant at
// 2-decimal precision.
func Balanced(items []Item) bool {
	debit, credit := Totals(items)
	return debit.Equal(credit)
}
