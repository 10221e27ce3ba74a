package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
)

// AccountSource resolves accounts and their groups. Satisfied by coa.Repository.
type AccountSource interface {
	GetAccount(ctx context.Context, businessID, id int64) (coa.LedgerAccount, error)
	GetGroup(ctx context.Context, businessID, id int64) (coa.AccountGroup, error)
	ListAccounts(ctx context.Context, businessID int64) ([]coa.LedgerAccount, error)
}

// YearSource resolves financial years. Satisfied by fiscal.Repository.
type YearSource interface {
	Get(ctx context.Context, businessID, id int64) (fiscal.FinancialYear, error)
}

// Service is the balance and aggregation engine. All operations are
// side-effect-free reads over posted journal entries.
type Service struct {
	repo     Repository
	accounts AccountSource
	years    YearSource
}

func NewService(repo Repository, accounts AccountSource, years YearSource) *Service {
	return &Service{repo: repo, accounts: accounts, years: years}
}

// BalanceQuery bounds a balance computation.
type BalanceQuery struct {
	AsOf   *time.Time
	YearID *int64
}

// AccountBalance computes the account's balance as of the optional date,
// folding the opening balance into the running totals before sign resolution.
func (s *Service) AccountBalance(ctx context.Context, businessID, accountID int64, q BalanceQuery) (Balance, error) {
	return s.accountBalance(ctx, businessID, accountID, TotalsFilter{Until: q.AsOf, Inclusive: true, YearID: q.YearID})
}

// OpeningBalanceAsOf computes the balance strictly before fromDate, used to
// seed statement views that start mid-period.
func (s *Service) OpeningBalanceAsOf(ctx context.Context, businessID, accountID int64, fromDate time.Time, yearID *int64) (Balance, error) {
	return s.accountBalance(ctx, businessID, accountID, TotalsFilter{Until: &fromDate, Inclusive: false, YearID: yearID})
}

func (s *Service) accountBalance(ctx context.Context, businessID, accountID int64, filter TotalsFilter) (Balance, error) {
	account, err := s.accounts.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return Balance{}, err
	}
	group, err := s.accounts.GetGroup(ctx, businessID, account.AccountGroupID)
	if err != nil {
		return Balance{}, err
	}
	debit, credit, err := s.repo.AccountTotals(ctx, businessID, accountID, filter)
	if err != nil {
		return Balance{}, err
	}
	return Resolve(group.Nature, account.SignedOpening(), debit, credit), nil
}

// StatementLine is one journal entry with a running balance.
type StatementLine struct {
	Entry   Entry
	Running Balance
}

// Statement lists an account's entries in a window with a running balance
// seeded by the opening balance as of the window start.
type Statement struct {
	AccountID int64
	Opening   Balance
	Lines     []StatementLine
	Closing   Balance
}

// AccountStatement builds the ledger view of one account over a date window.
func (s *Service) AccountStatement(ctx context.Context, businessID, accountID int64, from, to time.Time, yearID *int64) (Statement, error) {
	account, err := s.accounts.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return Statement{}, err
	}
	group, err := s.accounts.GetGroup(ctx, businessID, account.AccountGroupID)
	if err != nil {
		return Statement{}, err
	}
	opening, err := s.OpeningBalanceAsOf(ctx, businessID, accountID, from, yearID)
	if err != nil {
		return Statement{}, err
	}
	entries, err := s.repo.ListByAccount(ctx, businessID, accountID, TotalsFilter{From: &from, Until: &to, Inclusive: true, YearID: yearID})
	if err != nil {
		return Statement{}, err
	}
	statement := Statement{AccountID: accountID, Opening: opening, Closing: opening}
	running := opening.Signed()
	for _, e := range entries {
		running = running.Add(e.DebitAmount).Sub(e.CreditAmount)
		line := StatementLine{Entry: e, Running: Resolve(group.Nature, running, decimal.Zero, decimal.Zero)}
		statement.Lines = append(statement.Lines, line)
		statement.Closing = line.Running
	}
	return statement, nil
}

// NatureTotal aggregates the signed total across all accounts of a nature in
// a date window, using the same sign convention as AccountBalance. Opening
// balances are not folded in; callers needing balance-sheet figures combine
// this with account openings via TrialBalance.
func (s *Service) NatureTotal(ctx context.Context, businessID int64, nature coa.Nature, filter TotalsFilter, grossOnly bool) (decimal.Decimal, error) {
	debit, credit, err := s.repo.NatureTotals(ctx, businessID, nature, filter, grossOnly)
	if err != nil {
		return decimal.Zero, err
	}
	if nature.DebitPositive() {
		return debit.Sub(credit), nil
	}
	return credit.Sub(debit), nil
}

// MonthBucket is one calendar month of income and expense totals.
type MonthBucket struct {
	Month   time.Time
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// MonthlySeries breaks income and expense totals down per calendar month
// across the financial year's range, including partial boundary months.
func (s *Service) MonthlySeries(ctx context.Context, businessID, yearID int64) ([]MonthBucket, error) {
	year, err := s.years.Get(ctx, businessID, yearID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.MonthlyNatureTotals(ctx, businessID, yearID, []coa.Nature{coa.NatureIncome, coa.NatureExpense})
	if err != nil {
		return nil, err
	}
	totals := make(map[time.Time]*MonthBucket)
	for _, row := range rows {
		month := time.Date(row.Month.Year(), row.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		bucket, ok := totals[month]
		if !ok {
			bucket = &MonthBucket{Month: month, Income: decimal.Zero, Expense: decimal.Zero}
			totals[month] = bucket
		}
		switch row.Nature {
		case coa.NatureIncome:
			bucket.Income = bucket.Income.Add(row.Credit.Sub(row.Debit))
		case coa.NatureExpense:
			bucket.Expense = bucket.Expense.Add(row.Debit.Sub(row.Credit))
		}
	}
	var series []MonthBucket
	for month := time.Date(year.StartDate.Year(), year.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC); !month.After(year.EndDate); month = month.AddDate(0, 1, 0) {
		if bucket, ok := totals[month]; ok {
			series = append(series, *bucket)
		} else {
			series = append(series, MonthBucket{Month: month, Income: decimal.Zero, Expense: decimal.Zero})
		}
	}
	return series, nil
}
