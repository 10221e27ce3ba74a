package coa

import "github.com/shopspring/decimal"

// GroupRequest is the JSON payload for creating or updating a group.
type GroupRequest struct {
	ParentID           *int64 `json:"parent_id"`
	Name               string `json:"name" validate:"required,max=120"`
	Nature             string `json:"nature" validate:"omitempty,oneof=assets liabilities income expense equity"`
	AffectsGrossProfit bool   `json:"affects_gross_profit"`
	Sequence           int    `json:"sequence" validate:"gte=0"`
}

// NatureRequest is the JSON payload for a nature change.
type NatureRequest struct {
	Nature string `json:"nature" validate:"required,oneof=assets liabilities income expense equity"`
}

// AccountRequest is the JSON payload for creating or updating a ledger account.
type AccountRequest struct {
	AccountGroupID     int64           `json:"account_group_id" validate:"required,gt=0"`
	Code               *string         `json:"code" validate:"omitempty,max=32"`
	Name               string          `json:"name" validate:"required,max=120"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceType string          `json:"opening_balance_type" validate:"required,oneof=debit credit"`
	IsBankAccount      bool            `json:"is_bank_account"`
	IsCashAccount      bool            `json:"is_cash_account"`
	IsActive           *bool           `json:"is_active"`
}
