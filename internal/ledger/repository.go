package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
)

// TotalsFilter bounds a debit/credit aggregation.
type TotalsFilter struct {
	// Until bounds entry dates. Inclusive selects date <= Until, otherwise
	// date < Until (used for opening balances of mid-period views).
	Until     *time.Time
	Inclusive bool
	From      *time.Time
	YearID    *int64
}

// TrialRow is one per-account aggregate feeding the trial balance.
type TrialRow struct {
	AccountID          int64
	AccountCode        *string
	AccountName        string
	GroupID            int64
	GroupName          string
	Nature             coa.Nature
	OpeningBalance     decimal.Decimal
	OpeningBalanceType coa.BalanceType
	Debit              decimal.Decimal
	Credit             decimal.Decimal
}

// MonthRow is one month/nature aggregate feeding the monthly series.
type MonthRow struct {
	Month  time.Time
	Nature coa.Nature
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// VoucherTotal is one voucher's aggregate posting against a single account.
type VoucherTotal struct {
	VoucherID int64
	Date      time.Time
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Repository reads journal-entry aggregates. All computation over entries is
// read-only; writes happen exclusively through the voucher engine.
type Repository interface {
	AccountTotals(ctx context.Context, businessID, accountID int64, filter TotalsFilter) (debit, credit decimal.Decimal, err error)
	VoucherTotals(ctx context.Context, businessID, accountID int64, until time.Time) ([]VoucherTotal, error)
	ListByAccount(ctx context.Context, businessID, accountID int64, filter TotalsFilter) ([]Entry, error)
	TrialBalanceRows(ctx context.Context, businessID int64, asOf time.Time, yearID int64) ([]TrialRow, error)
	NatureTotals(ctx context.Context, businessID int64, nature coa.Nature, filter TotalsFilter, grossOnly bool) (debit, credit decimal.Decimal, err error)
	MonthlyNatureTotals(ctx context.Context, businessID, yearID int64, natures []coa.Nature) ([]MonthRow, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (f TotalsFilter) dateClause(args *[]any, column string) string {
	clause := ""
	if f.From != nil {
		*args = append(*args, *f.From)
		clause += " AND " + column + " >= $" + strconv.Itoa(len(*args))
	}
	if f.Until != nil {
		*args = append(*args, *f.Until)
		op := " < $"
		if f.Inclusive {
			op = " <= $"
		}
		clause += " AND " + column + op + strconv.Itoa(len(*args))
	}
	return clause
}

func (r *repository) AccountTotals(ctx context.Context, businessID, accountID int64, filter TotalsFilter) (decimal.Decimal, decimal.Decimal, error) {
	args := []any{businessID, accountID}
	query := `SELECT COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
FROM journal_entries WHERE business_id=$1 AND ledger_account_id=$2`
	if filter.YearID != nil {
		args = append(args, *filter.YearID)
		query += ` AND financial_year_id=$` + strconv.Itoa(len(args))
	}
	query += filter.dateClause(&args, "date")
	var debit, credit decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) ListByAccount(ctx context.Context, businessID, accountID int64, filter TotalsFilter) ([]Entry, error) {
	args := []any{businessID, accountID}
	query := `SELECT id, business_id, voucher_id, ledger_account_id, cost_center_id, financial_year_id, date, debit_amount, credit_amount, narration, created_at
FROM journal_entries WHERE business_id=$1 AND ledger_account_id=$2`
	if filter.YearID != nil {
		args = append(args, *filter.YearID)
		query += ` AND financial_year_id=$` + strconv.Itoa(len(args))
	}
	query += filter.dateClause(&args, "date")
	query += ` ORDER BY date, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.VoucherID, &e.LedgerAccountID, &e.CostCenterID, &e.FinancialYearID, &e.Date, &e.DebitAmount, &e.CreditAmount, &e.Narration, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) VoucherTotals(ctx context.Context, businessID, accountID int64, until time.Time) ([]VoucherTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT voucher_id, MIN(date), COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
FROM journal_entries
WHERE business_id=$1 AND ledger_account_id=$2 AND date <= $3
GROUP BY voucher_id ORDER BY MIN(date), voucher_id`, businessID, accountID, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VoucherTotal
	for rows.Next() {
		var t VoucherTotal
		if err := rows.Scan(&t.VoucherID, &t.Date, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) TrialBalanceRows(ctx context.Context, businessID int64, asOf time.Time, yearID int64) ([]TrialRow, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, g.id, g.name, g.nature, a.opening_balance, a.opening_balance_type,
COALESCE(SUM(je.debit_amount), 0), COALESCE(SUM(je.credit_amount), 0)
FROM ledger_accounts a
JOIN account_groups g ON g.id = a.account_group_id AND g.business_id = a.business_id
LEFT JOIN journal_entries je ON je.ledger_account_id = a.id AND je.business_id = a.business_id
	AND je.financial_year_id = $3 AND je.date <= $2
WHERE a.business_id = $1
GROUP BY a.id, a.code, a.name, g.id, g.name, g.nature, a.opening_balance, a.opening_balance_type
ORDER BY g.name, a.code NULLS LAST, a.name`, businessID, asOf, yearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialRow
	for rows.Next() {
		var row TrialRow
		if err := rows.Scan(&row.AccountID, &row.AccountCode, &row.AccountName, &row.GroupID, &row.GroupName, &row.Nature, &row.OpeningBalance, &row.OpeningBalanceType, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) NatureTotals(ctx context.Context, businessID int64, nature coa.Nature, filter TotalsFilter, grossOnly bool) (decimal.Decimal, decimal.Decimal, error) {
	args := []any{businessID, nature}
	query := `SELECT COALESCE(SUM(je.debit_amount), 0), COALESCE(SUM(je.credit_amount), 0)
FROM journal_entries je
JOIN ledger_accounts a ON a.id = je.ledger_account_id AND a.business_id = je.business_id
JOIN account_groups g ON g.id = a.account_group_id AND g.business_id = a.business_id
WHERE je.business_id=$1 AND g.nature=$2`
	if filter.YearID != nil {
		args = append(args, *filter.YearID)
		query += ` AND je.financial_year_id=$` + strconv.Itoa(len(args))
	}
	if grossOnly {
		query += ` AND g.affects_gross_profit`
	}
	query += filter.dateClause(&args, "je.date")
	var debit, credit decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) MonthlyNatureTotals(ctx context.Context, businessID, yearID int64, natures []coa.Nature) ([]MonthRow, error) {
	names := make([]string, len(natures))
	for i, n := range natures {
		names[i] = string(n)
	}
	rows, err := r.db.Query(ctx, `SELECT date_trunc('month', je.date)::date, g.nature,
COALESCE(SUM(je.debit_amount), 0), COALESCE(SUM(je.credit_amount), 0)
FROM journal_entries je
JOIN ledger_accounts a ON a.id = je.ledger_account_id AND a.business_id = je.business_id
JOIN account_groups g ON g.id = a.account_group_id AND g.business_id = a.business_id
WHERE je.business_id=$1 AND je.financial_year_id=$2 AND g.nature = ANY($3)
GROUP BY 1, 2 ORDER BY 1`, businessID, yearID, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthRow
	for rows.Next() {
		var row MonthRow
		if err := rows.Scan(&row.Month, &row.Nature, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
