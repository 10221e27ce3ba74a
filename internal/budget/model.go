package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

const monthsPerYear = 12

// Budget is a named parallel ledger of planned amounts for one financial
// year. Items hold the per-account figures.
type Budget struct {
	ID              int64           `json:"id"`
	BusinessID      int64           `json:"business_id"`
	FinancialYearID int64           `json:"financial_year_id"`
	Name            string          `json:"name"`
	IsActive        bool            `json:"is_active"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items,omitempty"`
}

// Item carries twelve monthly amounts plus the annual figure for one ledger
// account, optionally narrowed to a cost center. The (account, cost center)
// pair is unique within a budget.
type Item struct {
	ID              int64                          `json:"id"`
	BudgetID        int64                          `json:"budget_id"`
	LedgerAccountID int64                          `json:"ledger_account_id"`
	CostCenterID    *int64                         `json:"cost_center_id,omitempty"`
	Months          [monthsPerYear]decimal.Decimal `json:"months"`
	AnnualAmount    decimal.Decimal                `json:"annual_amount"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// MonthsTotal sums the twelve monthly amounts.
func (it Item) MonthsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range it.Months {
		total = total.Add(m)
	}
	return total
}

// samePair reports whether the item targets the given account and cost
// center combination.
func (it Item) samePair(accountID int64, costCenterID *int64) bool {
	if it.LedgerAccountID != accountID {
		return false
	}
	if (it.CostCenterID == nil) != (costCenterID == nil) {
		return false
	}
	return it.CostCenterID == nil || *it.CostCenterID == *costCenterID
}

// VarianceLine compares one budget item against its posted actuals.
type VarianceLine struct {
	LedgerAccountID int64           `json:"ledger_account_id"`
	AccountName     string          `json:"account_name"`
	CostCenterID    *int64          `json:"cost_center_id,omitempty"`
	BudgetAmount    decimal.Decimal `json:"budget_amount"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePct     decimal.Decimal `json:"variance_pct"`
}

// VarianceReport is the budget-versus-actual comparison for a whole budget.
type VarianceReport struct {
	BudgetID      int64           `json:"budget_id"`
	AsOf          time.Time       `json:"as_of"`
	Lines         []VarianceLine  `json:"lines"`
	TotalBudget   decimal.Decimal `json:"total_budget"`
	TotalActual   decimal.Decimal `json:"total_actual"`
	TotalVariance decimal.Decimal `json:"total_variance"`
}
