package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/shared"
)

var tenant = shared.Tenant{BusinessID: 1, UserID: 7}

type actualKey struct {
	accountID    int64
	costCenterID int64 // 0 = no cost center
}

type fakeRepo struct {
	budgets  map[int64]*Budget
	items    map[int64][]Item // budget -> lines
	accounts map[int64]coa.LedgerAccount
	groups   map[int64]coa.AccountGroup
	years    map[int64]fiscal.FinancialYear
	actuals  map[actualKey][2]decimal.Decimal // debit, credit
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		budgets:  map[int64]*Budget{},
		items:    map[int64][]Item{},
		accounts: map[int64]coa.LedgerAccount{},
		groups:   map[int64]coa.AccountGroup{},
		years:    map[int64]fiscal.FinancialYear{},
		actuals:  map[actualKey][2]decimal.Decimal{},
		nextID:   1,
	}
}

func (f *fakeRepo) List(_ context.Context, businessID int64, yearID *int64) ([]Budget, error) {
	var out []Budget
	for _, b := range f.budgets {
		if b.BusinessID != businessID {
			continue
		}
		if yearID != nil && b.FinancialYearID != *yearID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, businessID, id int64) (Budget, error) {
	b, ok := f.budgets[id]
	if !ok || b.BusinessID != businessID {
		return Budget{}, shared.ErrNotFound
	}
	out := *b
	out.Items = append([]Item(nil), f.items[id]...)
	for _, it := range out.Items {
		out.TotalAmount = out.TotalAmount.Add(it.AnnualAmount)
	}
	return out, nil
}

func (f *fakeRepo) AccountActuals(_ context.Context, businessID, accountID int64, costCenterID *int64, from, until time.Time) (decimal.Decimal, decimal.Decimal, error) {
	key := actualKey{accountID: accountID}
	if costCenterID != nil {
		key.costCenterID = *costCenterID
	}
	totals := f.actuals[key]
	return totals[0], totals[1], nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, businessID, id int64) (Budget, error) {
	b, ok := f.budgets[id]
	if !ok || b.BusinessID != businessID {
		return Budget{}, shared.ErrNotFound
	}
	return *b, nil
}

func (f *fakeRepo) Insert(_ context.Context, b Budget) (Budget, error) {
	b.ID = f.nextID
	f.nextID++
	f.budgets[b.ID] = &b
	return b, nil
}

func (f *fakeRepo) Update(_ context.Context, b Budget) error {
	stored, ok := f.budgets[b.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Name = b.Name
	stored.IsActive = b.IsActive
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, businessID, id int64) error {
	delete(f.budgets, id)
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) ListItems(_ context.Context, budgetID int64) ([]Item, error) {
	return append([]Item(nil), f.items[budgetID]...), nil
}

func (f *fakeRepo) InsertItem(_ context.Context, it Item) (Item, error) {
	it.ID = f.nextID
	f.nextID++
	f.items[it.BudgetID] = append(f.items[it.BudgetID], it)
	return it, nil
}

func (f *fakeRepo) UpdateItem(_ context.Context, it Item) error {
	for i, existing := range f.items[it.BudgetID] {
		if existing.ID == it.ID {
			f.items[it.BudgetID][i] = it
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) DeleteItem(_ context.Context, budgetID, itemID int64) error {
	lines := f.items[budgetID]
	for i, existing := range lines {
		if existing.ID == itemID {
			f.items[budgetID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) GetAccount(_ context.Context, businessID, id int64) (coa.LedgerAccount, error) {
	a, ok := f.accounts[id]
	if !ok || a.BusinessID != businessID {
		return coa.LedgerAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) GetGroup(_ context.Context, businessID, id int64) (coa.AccountGroup, error) {
	g, ok := f.groups[id]
	if !ok || g.BusinessID != businessID {
		return coa.AccountGroup{}, shared.ErrNotFound
	}
	return g, nil
}

func (f *fakeRepo) GetYear(ctx context.Context, businessID, id int64) (fiscal.FinancialYear, error) {
	y, ok := f.years[id]
	if !ok || y.BusinessID != businessID {
		return fiscal.FinancialYear{}, shared.ErrNotFound
	}
	return y, nil
}

// yearSource adapts fakeRepo to the YearSource port without colliding with
// TxRepository's GetForUpdate naming.
type yearSource struct{ f *fakeRepo }

func (y yearSource) Get(ctx context.Context, businessID, id int64) (fiscal.FinancialYear, error) {
	return y.f.GetYear(ctx, businessID, id)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedRepo() *fakeRepo {
	f := newFakeRepo()
	f.years[1] = fiscal.FinancialYear{
		ID: 1, BusinessID: 1,
		StartDate: day(2026, time.April, 1), EndDate: day(2027, time.March, 31),
	}
	f.groups[1] = coa.AccountGroup{ID: 1, BusinessID: 1, Name: "Indirect Expenses", Nature: coa.NatureExpense}
	f.groups[2] = coa.AccountGroup{ID: 2, BusinessID: 1, Name: "Direct Income", Nature: coa.NatureIncome}
	f.accounts[10] = coa.LedgerAccount{ID: 10, BusinessID: 1, AccountGroupID: 1, Name: "Rent", IsActive: true}
	f.accounts[20] = coa.LedgerAccount{ID: 20, BusinessID: 1, AccountGroupID: 2, Name: "Sales", IsActive: true}
	f.accounts[30] = coa.LedgerAccount{ID: 30, BusinessID: 1, AccountGroupID: 1, Name: "Old Phone Line", IsActive: false}
	return f
}

func newBudgetService(f *fakeRepo) *Service {
	return NewService(f, f, yearSource{f}, nil)
}

func createBudget(t *testing.T, svc *Service) Budget {
	t.Helper()
	b, err := svc.Create(context.Background(), tenant, Input{FinancialYearID: 1, Name: "FY 2026-27", IsActive: true})
	require.NoError(t, err)
	return b
}

func TestSetItemDistributeEvenly(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	item, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID:  10,
		DistributeEvenly: true,
		AnnualAmount:     dec("1200"),
	})
	require.NoError(t, err)
	require.True(t, item.AnnualAmount.Equal(dec("1200")))
	for _, m := range item.Months {
		require.True(t, m.Equal(dec("100")))
	}
}

func TestSetItemDistributeKeepsFractionalCents(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	item, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID:  10,
		DistributeEvenly: true,
		AnnualAmount:     dec("100"),
	})
	require.NoError(t, err)
	// 100/12 is not overwritten to a rounded figure and the annual stays
	// authoritative even though the months do not re-sum to it exactly.
	require.True(t, item.AnnualAmount.Equal(dec("100")))
	require.True(t, item.Months[0].Equal(dec("100").Div(dec("12"))))
}

func TestSetItemManualDerivesAnnual(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	input := ItemInput{LedgerAccountID: 10}
	for i := range input.Months {
		input.Months[i] = dec("50")
	}
	input.Months[3] = dec("125.50")
	input.AnnualAmount = dec("9999") // ignored in manual mode

	item, err := svc.SetItem(context.Background(), tenant, b.ID, input)
	require.NoError(t, err)
	// 11 months at 50 plus one at 125.50
	require.True(t, item.AnnualAmount.Equal(dec("675.50")))
}

func TestSetItemUpsertsByAccountPair(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	first, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 10, DistributeEvenly: true, AnnualAmount: dec("1200"),
	})
	require.NoError(t, err)
	second, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 10, DistributeEvenly: true, AnnualAmount: dec("2400"),
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, f.items[b.ID], 1)
	require.True(t, f.items[b.ID][0].AnnualAmount.Equal(dec("2400")))

	// Same account under a cost center is a distinct line.
	cc := int64(5)
	_, err = svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 10, CostCenterID: &cc, DistributeEvenly: true, AnnualAmount: dec("300"),
	})
	require.NoError(t, err)
	require.Len(t, f.items[b.ID], 2)
}

func TestSetItemRejectsInactiveAccount(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	_, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 30, DistributeEvenly: true, AnnualAmount: dec("100"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVarianceSignsActualsByNature(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	_, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 10, DistributeEvenly: true, AnnualAmount: dec("1200"),
	})
	require.NoError(t, err)
	_, err = svc.SetItem(context.Background(), tenant, b.ID, ItemInput{
		LedgerAccountID: 20, DistributeEvenly: true, AnnualAmount: dec("6000"),
	})
	require.NoError(t, err)

	// Rent debited 900, sales credited 4500.
	f.actuals[actualKey{accountID: 10}] = [2]decimal.Decimal{dec("900"), decimal.Zero}
	f.actuals[actualKey{accountID: 20}] = [2]decimal.Decimal{decimal.Zero, dec("4500")}

	report, err := svc.Variance(context.Background(), tenant, b.ID, day(2026, time.December, 31))
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)

	byAccount := map[int64]VarianceLine{}
	for _, line := range report.Lines {
		byAccount[line.LedgerAccountID] = line
	}
	rent := byAccount[10]
	require.True(t, rent.ActualAmount.Equal(dec("900")))
	require.True(t, rent.Variance.Equal(dec("300")))
	require.True(t, rent.VariancePct.Equal(dec("25")))

	sales := byAccount[20]
	require.True(t, sales.ActualAmount.Equal(dec("4500")))
	require.True(t, sales.Variance.Equal(dec("1500")))
	require.True(t, sales.VariancePct.Equal(dec("25")))

	require.True(t, report.TotalBudget.Equal(dec("7200")))
	require.True(t, report.TotalActual.Equal(dec("5400")))
	require.True(t, report.TotalVariance.Equal(dec("1800")))
}

func TestVarianceZeroBudgetHasZeroPercentage(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	_, err := svc.SetItem(context.Background(), tenant, b.ID, ItemInput{LedgerAccountID: 10})
	require.NoError(t, err)
	f.actuals[actualKey{accountID: 10}] = [2]decimal.Decimal{dec("250"), decimal.Zero}

	report, err := svc.Variance(context.Background(), tenant, b.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	require.True(t, report.Lines[0].Variance.Equal(dec("-250")))
	require.True(t, report.Lines[0].VariancePct.IsZero())
}

func TestVarianceCapsAsOfAtYearEnd(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	report, err := svc.Variance(context.Background(), tenant, b.ID, day(2030, time.January, 1))
	require.NoError(t, err)
	require.True(t, report.AsOf.Equal(day(2027, time.March, 31)))
}

func TestCrossTenantBudgetHidden(t *testing.T) {
	f := seedRepo()
	svc := newBudgetService(f)
	b := createBudget(t, svc)

	other := shared.Tenant{BusinessID: 2, UserID: 9}
	_, err := svc.Get(context.Background(), other, b.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.SetItem(context.Background(), other, b.ID, ItemInput{LedgerAccountID: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
