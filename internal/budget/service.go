package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountSource resolves accounts and their groups. Satisfied by
// coa.Repository.
type AccountSource interface {
	GetAccount(ctx context.Context, businessID, id int64) (coa.LedgerAccount, error)
	GetGroup(ctx context.Context, businessID, id int64) (coa.AccountGroup, error)
}

// YearSource resolves financial years. Satisfied by fiscal.Repository.
type YearSource interface {
	Get(ctx context.Context, businessID, id int64) (fiscal.FinancialYear, error)
}

// Service is the budget and variance engine.
type Service struct {
	repo     Repository
	accounts AccountSource
	years    YearSource
	audit    AuditPort
	now      func() time.Time
}

func NewService(repo Repository, accounts AccountSource, years YearSource, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, years: years, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, tenant shared.Tenant, yearID *int64) ([]Budget, error) {
	return s.repo.List(ctx, tenant.BusinessID, yearID)
}

func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (Budget, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// Input carries the fields for creating or updating a budget.
type Input struct {
	FinancialYearID int64
	Name            string
	IsActive        bool
}

func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input Input) (Budget, error) {
	if _, err := s.years.Get(ctx, tenant.BusinessID, input.FinancialYearID); err != nil {
		return Budget{}, err
	}
	var created Budget
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, Budget{
			BusinessID:      tenant.BusinessID,
			FinancialYearID: input.FinancialYearID,
			Name:            input.Name,
			IsActive:        input.IsActive,
		})
		return err
	})
	if err != nil {
		return Budget{}, err
	}
	s.record(ctx, tenant, "budget.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, tenant shared.Tenant, id int64, input Input) (Budget, error) {
	var updated Budget
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		b.Name = input.Name
		b.IsActive = input.IsActive
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return Budget{}, err
	}
	s.record(ctx, tenant, "budget.update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "budget.delete", id, nil)
	return nil
}

// ItemInput carries one budget line. With DistributeEvenly set, the annual
// amount divided by twelve overwrites every month as-is; fractional cents
// are not reconciled. Otherwise the months are authoritative and the annual
// amount is derived from their sum.
type ItemInput struct {
	LedgerAccountID  int64
	CostCenterID     *int64
	DistributeEvenly bool
	AnnualAmount     decimal.Decimal
	Months           [monthsPerYear]decimal.Decimal
}

// SetItem adds or updates the budget line for the input's (account, cost
// center) pair.
func (s *Service) SetItem(ctx context.Context, tenant shared.Tenant, budgetID int64, input ItemInput) (Item, error) {
	account, err := s.accounts.GetAccount(ctx, tenant.BusinessID, input.LedgerAccountID)
	if err != nil {
		return Item{}, err
	}
	if !account.IsActive {
		return Item{}, fmt.Errorf("%w: account %q is inactive", shared.ErrValidation, account.Name)
	}

	months := input.Months
	annual := input.AnnualAmount
	if input.DistributeEvenly {
		monthly := annual.Div(decimal.NewFromInt(monthsPerYear))
		for i := range months {
			months[i] = monthly
		}
	} else {
		annual = decimal.Zero
		for _, m := range months {
			if m.IsNegative() {
				return Item{}, fmt.Errorf("%w: monthly amounts must not be negative", shared.ErrValidation)
			}
			annual = annual.Add(m)
		}
	}
	if annual.IsNegative() {
		return Item{}, fmt.Errorf("%w: annual amount must not be negative", shared.ErrValidation)
	}

	var saved Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, tenant.BusinessID, budgetID); err != nil {
			return err
		}
		existing, err := tx.ListItems(ctx, budgetID)
		if err != nil {
			return err
		}
		for _, it := range existing {
			if it.samePair(input.LedgerAccountID, input.CostCenterID) {
				it.Months = months
				it.AnnualAmount = annual
				if err := tx.UpdateItem(ctx, it); err != nil {
					return err
				}
				saved = it
				return nil
			}
		}
		saved, err = tx.InsertItem(ctx, Item{
			BudgetID:        budgetID,
			LedgerAccountID: input.LedgerAccountID,
			CostCenterID:    input.CostCenterID,
			Months:          months,
			AnnualAmount:    annual,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, tenant, "budget.set_item", budgetID, map[string]any{"ledger_account_id": input.LedgerAccountID})
	return saved, nil
}

func (s *Service) RemoveItem(ctx context.Context, tenant shared.Tenant, budgetID, itemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, tenant.BusinessID, budgetID); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, budgetID, itemID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "budget.remove_item", budgetID, map[string]any{"item_id": itemID})
	return nil
}

// Variance compares each budget line against posted actuals from the start
// of the budget's financial year through asOf (capped at the year end).
// Actuals are signed by the account's nature, so both income and expense
// budgets compare as positive figures.
func (s *Service) Variance(ctx context.Context, tenant shared.Tenant, budgetID int64, asOf time.Time) (VarianceReport, error) {
	b, err := s.repo.Get(ctx, tenant.BusinessID, budgetID)
	if err != nil {
		return VarianceReport{}, err
	}
	year, err := s.years.Get(ctx, tenant.BusinessID, b.FinancialYearID)
	if err != nil {
		return VarianceReport{}, err
	}
	if asOf.IsZero() || asOf.After(year.EndDate) {
		asOf = year.EndDate
	}

	report := VarianceReport{BudgetID: b.ID, AsOf: asOf}
	for _, it := range b.Items {
		account, err := s.accounts.GetAccount(ctx, tenant.BusinessID, it.LedgerAccountID)
		if err != nil {
			return VarianceReport{}, err
		}
		group, err := s.accounts.GetGroup(ctx, tenant.BusinessID, account.AccountGroupID)
		if err != nil {
			return VarianceReport{}, err
		}
		debit, credit, err := s.repo.AccountActuals(ctx, tenant.BusinessID, it.LedgerAccountID, it.CostCenterID, year.StartDate, asOf)
		if err != nil {
			return VarianceReport{}, err
		}
		actual := debit.Sub(credit)
		if !group.Nature.DebitPositive() {
			actual = actual.Neg()
		}

		line := VarianceLine{
			LedgerAccountID: it.LedgerAccountID,
			AccountName:     account.Name,
			CostCenterID:    it.CostCenterID,
			BudgetAmount:    it.AnnualAmount,
			ActualAmount:    actual,
			Variance:        it.AnnualAmount.Sub(actual),
		}
		if !line.BudgetAmount.IsZero() {
			line.VariancePct = line.Variance.Div(line.BudgetAmount).Mul(decimal.NewFromInt(100)).Round(2)
		}
		report.Lines = append(report.Lines, line)
		report.TotalBudget = report.TotalBudget.Add(line.BudgetAmount)
		report.TotalActual = report.TotalActual.Add(line.ActualAmount)
		report.TotalVariance = report.TotalVariance.Add(line.Variance)
	}
	return report, nil
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityBudget,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
