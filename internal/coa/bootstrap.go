package coa

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type defaultGroup struct {
	name     string
	nature   Nature
	gross    bool
	children []defaultGroup
	accounts []defaultAccount
}

type defaultAccount struct {
	name string
	cash bool
	bank bool
}

// defaultChart is the system chart seeded at business setup. Every group and
// account created from it is flagged is_system and cannot be edited later.
var defaultChart = []defaultGroup{
	{name: "Assets", nature: NatureAssets, children: []defaultGroup{
		{name: "Current Assets", nature: NatureAssets, children: []defaultGroup{
			{name: "Cash In Hand", nature: NatureAssets, accounts: []defaultAccount{{name: "Cash", cash: true}}},
			{name: "Bank Accounts", nature: NatureAssets, accounts: []defaultAccount{{name: "Bank", bank: true}}},
			{name: "Accounts Receivable", nature: NatureAssets},
		}},
		{name: "Fixed Assets", nature: NatureAssets},
	}},
	{name: "Liabilities", nature: NatureLiabilities, children: []defaultGroup{
		{name: "Current Liabilities", nature: NatureLiabilities, children: []defaultGroup{
			{name: "Accounts Payable", nature: NatureLiabilities},
			{name: "Duties & Taxes", nature: NatureLiabilities},
		}},
		{name: "Loans", nature: NatureLiabilities},
	}},
	{name: "Equity", nature: NatureEquity, accounts: []defaultAccount{{name: "Owner's Capital"}, {name: "Retained Earnings"}}},
	{name: "Income", nature: NatureIncome, children: []defaultGroup{
		{name: "Sales Accounts", nature: NatureIncome, gross: true, accounts: []defaultAccount{{name: "Sales"}}},
		{name: "Indirect Income", nature: NatureIncome},
	}},
	{name: "Expenses", nature: NatureExpense, children: []defaultGroup{
		{name: "Purchase Accounts", nature: NatureExpense, gross: true, accounts: []defaultAccount{{name: "Purchases"}}},
		{name: "Direct Expenses", nature: NatureExpense, gross: true},
		{name: "Indirect Expenses", nature: NatureExpense},
	}},
}

// BootstrapDefaults seeds the system chart of accounts for a new business in
// a single transaction. Well-known group names for party provisioning are
// "Accounts Receivable" and "Accounts Payable".
func (s *Service) BootstrapDefaults(ctx context.Context, tenant shared.Tenant) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var insert func(parents []defaultGroup, parentID *int64) error
		insert = func(parents []defaultGroup, parentID *int64) error {
			for seq, def := range parents {
				group, err := tx.InsertGroup(ctx, AccountGroup{
					BusinessID:         tenant.BusinessID,
					ParentID:           parentID,
					Name:               def.name,
					Nature:             def.nature,
					AffectsGrossProfit: def.gross,
					Sequence:           seq + 1,
					IsSystem:           true,
				})
				if err != nil {
					return err
				}
				for _, acc := range def.accounts {
					if _, err := tx.InsertAccount(ctx, LedgerAccount{
						BusinessID:         tenant.BusinessID,
						AccountGroupID:     group.ID,
						Name:               acc.name,
						OpeningBalance:     decimal.Zero,
						OpeningBalanceType: BalanceDebit,
						IsBankAccount:      acc.bank,
						IsCashAccount:      acc.cash,
						IsSystem:           true,
						IsActive:           true,
					}); err != nil {
						return err
					}
				}
				groupID := group.ID
				if err := insert(def.children, &groupID); err != nil {
					return err
				}
			}
			return nil
		}
		return insert(defaultChart, nil)
	})
}
