package party

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a party by which side of the books it lives on.
type Type string

const (
	TypeCustomer Type = "customer"
	TypeSupplier Type = "supplier"
	TypeBoth     Type = "both"
)

// Valid reports whether the type is one of the known kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeCustomer, TypeSupplier, TypeBoth:
		return true
	}
	return false
}

// Receivable reports whether the party's backing account is held
// debit-positive, under Accounts Receivable.
func (t Type) Receivable() bool {
	return t == TypeCustomer || t == TypeBoth
}

// Party is a customer or supplier. Every party owns exactly one backing
// ledger account, provisioned under Accounts Receivable or Accounts Payable
// when the party is created.
type Party struct {
	ID              int64           `json:"id"`
	BusinessID      int64           `json:"-"`
	LedgerAccountID int64           `json:"ledger_account_id"`
	Name            string          `json:"name"`
	Type            Type            `json:"type"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	CreditPeriod    int             `json:"credit_period"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
