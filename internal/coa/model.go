package coa

import (
	"time"

	"github.com/shopspring/decimal"
)

// Nature classifies an account group for balance-sign purposes.
type Nature string

const (
	NatureAssets      Nature = "assets"
	NatureLiabilities Nature = "liabilities"
	NatureIncome      Nature = "income"
	NatureExpense     Nature = "expense"
	NatureEquity      Nature = "equity"
)

// Valid reports whether the nature is one of the known classifications.
func (n Nature) Valid() bool {
	switch n {
	case NatureAssets, NatureLiabilities, NatureIncome, NatureExpense, NatureEquity:
		return true
	}
	return false
}

// DebitPositive reports whether a positive balance for this nature is a
// debit-type balance (assets and expenses) rather than credit-type.
func (n Nature) DebitPositive() bool {
	return n == NatureAssets || n == NatureExpense
}

// BalanceType marks which side of the ledger a balance sits on.
type BalanceType string

const (
	BalanceDebit  BalanceType = "debit"
	BalanceCredit BalanceType = "credit"
)

// AccountGroup models a node in the chart-of-accounts hierarchy.
type AccountGroup struct {
	ID                 int64
	BusinessID         int64
	ParentID           *int64
	Name               string
	Nature             Nature
	AffectsGrossProfit bool
	Sequence           int
	IsSystem           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LedgerAccount is a leaf of the account tree against which entries post.
type LedgerAccount struct {
	ID                 int64
	BusinessID         int64
	AccountGroupID     int64
	Code               *string
	Name               string
	OpeningBalance     decimal.Decimal
	OpeningBalanceType BalanceType
	IsBankAccount      bool
	IsCashAccount      bool
	IsSystem           bool
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SignedOpening returns the opening balance signed debit-positive, the form
// in which it folds into running debit/credit totals.
func (a LedgerAccount) SignedOpening() decimal.Decimal {
	if a.OpeningBalanceType == BalanceCredit {
		return a.OpeningBalance.Neg()
	}
	return a.OpeningBalance
}

// FlatGroup is one row of the flattened hierarchy used for selection lists.
type FlatGroup struct {
	ID     int64
	Name   string
	Nature Nature
	Depth  int
}
