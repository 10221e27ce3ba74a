package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
)

func TestResolveSignConvention(t *testing.T) {
	cases := []struct {
		name    string
		nature  coa.Nature
		opening string
		debit   string
		credit  string
		amount  string
		side    coa.BalanceType
	}{
		{"asset debit positive", coa.NatureAssets, "0", "500", "0", "500", coa.BalanceDebit},
		{"income credit positive", coa.NatureIncome, "0", "0", "500", "500", coa.BalanceCredit},
		{"asset overdrawn flips", coa.NatureAssets, "0", "100", "400", "300", coa.BalanceCredit},
		{"liability overpaid flips", coa.NatureLiabilities, "0", "400", "100", "300", coa.BalanceDebit},
		{"opening folded before resolution", coa.NatureAssets, "200", "100", "400", "100", coa.BalanceCredit},
		{"expense debit positive", coa.NatureExpense, "0", "250", "50", "200", coa.BalanceDebit},
		{"equity credit positive", coa.NatureEquity, "0", "0", "1000", "1000", coa.BalanceCredit},
		{"zero stays on natural side", coa.NatureAssets, "0", "0", "0", "0", coa.BalanceDebit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.nature, dec(tc.opening), dec(tc.debit), dec(tc.credit))
			require.True(t, got.Amount.Equal(dec(tc.amount)), "amount %s", got.Amount)
			require.Equal(t, tc.side, got.Type)
		})
	}
}

func TestAccountBalanceFoldsOpening(t *testing.T) {
	f := newFakeLedger()
	f.addGroup(1, "Cash In Hand", coa.NatureAssets, false)
	f.addAccount(10, 1, "Cash", dec("1000"), coa.BalanceDebit)
	f.post(1, 10, 1, day(2026, time.April, 10), dec("500"), decimal.Zero)
	f.post(2, 10, 1, day(2026, time.April, 20), decimal.Zero, dec("200"))

	svc := newTestService(f)
	balance, err := svc.AccountBalance(context.Background(), 1, 10, BalanceQuery{})
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(dec("1300")))
	require.Equal(t, coa.BalanceDebit, balance.Type)
}

func TestAccountBalanceAsOfIsInclusive(t *testing.T) {
	f := newFakeLedger()
	f.addGroup(1, "Cash In Hand", coa.NatureAssets, false)
	f.addAccount(10, 1, "Cash", decimal.Zero, coa.BalanceDebit)
	f.post(1, 10, 1, day(2026, time.April, 10), dec("500"), decimal.Zero)
	f.post(2, 10, 1, day(2026, time.April, 11), dec("250"), decimal.Zero)

	svc := newTestService(f)
	asOf := day(2026, time.April, 10)
	balance, err := svc.AccountBalance(context.Background(), 1, 10, BalanceQuery{AsOf: &asOf})
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(dec("500")))

	// The opening balance of a mid-period view excludes the boundary day.
	opening, err := svc.OpeningBalanceAsOf(context.Background(), 1, 10, asOf, nil)
	require.NoError(t, err)
	require.True(t, opening.IsZero())
}

func TestAccountStatementRunningBalance(t *testing.T) {
	f := newFakeLedger()
	f.addGroup(1, "Bank Accounts", coa.NatureAssets, false)
	f.addAccount(10, 1, "Operating Account", dec("100"), coa.BalanceDebit)
	f.post(1, 10, 1, day(2026, time.April, 1), dec("400"), decimal.Zero)
	f.post(2, 10, 1, day(2026, time.April, 15), decimal.Zero, dec("700"))
	f.post(3, 10, 1, day(2026, time.April, 20), dec("50"), decimal.Zero)

	svc := newTestService(f)
	statement, err := svc.AccountStatement(context.Background(), 1, 10, day(2026, time.April, 10), day(2026, time.April, 30), nil)
	require.NoError(t, err)

	// Opening covers the opening balance plus the April 1 entry.
	require.True(t, statement.Opening.Amount.Equal(dec("500")))
	require.Equal(t, coa.BalanceDebit, statement.Opening.Type)
	require.Len(t, statement.Lines, 2)
	require.True(t, statement.Lines[0].Running.Amount.Equal(dec("200")))
	require.Equal(t, coa.BalanceCredit, statement.Lines[0].Running.Type)
	require.True(t, statement.Lines[1].Running.Amount.Equal(dec("150")))
	require.Equal(t, coa.BalanceCredit, statement.Lines[1].Running.Type)
	require.True(t, statement.Closing.Amount.Equal(statement.Lines[1].Running.Amount))
}

func TestNatureTotalSignedBySide(t *testing.T) {
	f := newFakeLedger()
	f.addGroup(1, "Sales Accounts", coa.NatureIncome, true)
	f.addGroup(2, "Purchase Accounts", coa.NatureExpense, true)
	f.addAccount(10, 1, "Sales", decimal.Zero, coa.BalanceCredit)
	f.addAccount(20, 2, "Purchases", decimal.Zero, coa.BalanceDebit)
	f.post(1, 10, 1, day(2026, time.May, 1), decimal.Zero, dec("900"))
	f.post(1, 20, 1, day(2026, time.May, 1), dec("600"), decimal.Zero)
	f.post(2, 10, 1, day(2026, time.May, 2), dec("100"), decimal.Zero) // credit note

	svc := newTestService(f)
	income, err := svc.NatureTotal(context.Background(), 1, coa.NatureIncome, TotalsFilter{}, false)
	require.NoError(t, err)
	require.True(t, income.Equal(dec("800")))

	expense, err := svc.NatureTotal(context.Background(), 1, coa.NatureExpense, TotalsFilter{}, false)
	require.NoError(t, err)
	require.True(t, expense.Equal(dec("600")))
}

func TestMonthlySeriesZeroFillsYearRange(t *testing.T) {
	f := newFakeLedger()
	f.years[1] = fiscal.FinancialYear{ID: 1, BusinessID: 1, StartDate: day(2026, time.January, 1), EndDate: day(2026, time.March, 31)}
	f.addGroup(1, "Sales Accounts", coa.NatureIncome, true)
	f.addGroup(2, "Indirect Expenses", coa.NatureExpense, false)
	f.addAccount(10, 1, "Sales", decimal.Zero, coa.BalanceCredit)
	f.addAccount(20, 2, "Rent", decimal.Zero, coa.BalanceDebit)
	f.post(1, 10, 1, day(2026, time.January, 15), decimal.Zero, dec("500"))
	f.post(2, 20, 1, day(2026, time.March, 3), dec("120"), decimal.Zero)

	svc := newTestService(f)
	series, err := svc.MonthlySeries(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, series, 3)
	require.True(t, series[0].Income.Equal(dec("500")))
	require.True(t, series[0].Expense.IsZero())
	require.True(t, series[1].Income.IsZero())
	require.True(t, series[1].Expense.IsZero())
	require.True(t, series[2].Expense.Equal(dec("120")))
}
