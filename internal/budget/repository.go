package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for budgets.
type Repository interface {
	List(ctx context.Context, businessID int64, yearID *int64) ([]Budget, error)
	Get(ctx context.Context, businessID, id int64) (Budget, error)
	// AccountActuals sums posted journal entry amounts for one account,
	// optionally narrowed to a cost center, over [from, until].
	AccountActuals(ctx context.Context, businessID, accountID int64, costCenterID *int64, from, until time.Time) (debit, credit decimal.Decimal, err error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, businessID, id int64) (Budget, error)
	Insert(ctx context.Context, b Budget) (Budget, error)
	Update(ctx context.Context, b Budget) error
	Delete(ctx context.Context, businessID, id int64) error

	ListItems(ctx context.Context, budgetID int64) ([]Item, error)
	InsertItem(ctx context.Context, it Item) (Item, error)
	UpdateItem(ctx context.Context, it Item) error
	DeleteItem(ctx context.Context, budgetID, itemID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const budgetColumns = `id, business_id, financial_year_id, name, is_active, created_at, updated_at`

var monthColumns = func() string {
	out := ""
	for i := 1; i <= monthsPerYear; i++ {
		if i > 1 {
			out += ", "
		}
		out += fmt.Sprintf("month_%02d", i)
	}
	return out
}()

const itemColumns = `id, budget_id, ledger_account_id, cost_center_id, annual_amount, created_at, updated_at`

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.BusinessID, &b.FinancialYearID, &b.Name, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, shared.ErrNotFound
		}
		return Budget{}, err
	}
	return b, nil
}

func itemDest(it *Item) []any {
	dest := []any{&it.ID, &it.BudgetID, &it.LedgerAccountID, &it.CostCenterID, &it.AnnualAmount, &it.CreatedAt, &it.UpdatedAt}
	for i := range it.Months {
		dest = append(dest, &it.Months[i])
	}
	return dest
}

func (r *repository) List(ctx context.Context, businessID int64, yearID *int64) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE business_id=$1`
	args := []any{businessID}
	if yearID != nil {
		args = append(args, *yearID)
		query += ` AND financial_year_id=$2`
	}
	query += ` ORDER BY id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.FinancialYearID, &b.Name, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Budget, error) {
	row := r.db.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE business_id=$1 AND id=$2`, businessID, id)
	b, err := scanBudget(row)
	if err != nil {
		return Budget{}, err
	}
	b.Items, err = listItems(ctx, r.db, id)
	if err != nil {
		return Budget{}, err
	}
	for _, it := range b.Items {
		b.TotalAmount = b.TotalAmount.Add(it.AnnualAmount)
	}
	return b, nil
}

func (r *repository) AccountActuals(ctx context.Context, businessID, accountID int64, costCenterID *int64, from, until time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
FROM journal_entries
WHERE business_id=$1 AND ledger_account_id=$2 AND date >= $3 AND date <= $4`
	args := []any{businessID, accountID, from, until}
	if costCenterID != nil {
		args = append(args, *costCenterID)
		query += ` AND cost_center_id=$5`
	}
	var debit, credit decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&debit, &credit); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Budget, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id)
	return scanBudget(row)
}

func (t *txRepository) Insert(ctx context.Context, b Budget) (Budget, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO budgets (business_id, financial_year_id, name, is_active)
VALUES ($1, $2, $3, $4)
RETURNING `+budgetColumns, b.BusinessID, b.FinancialYearID, b.Name, b.IsActive)
	created, err := scanBudget(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Budget{}, fmt.Errorf("%w: budget %q already exists for this year", shared.ErrConflict, b.Name)
		}
		return Budget{}, err
	}
	return created, nil
}

func (t *txRepository) Update(ctx context.Context, b Budget) error {
	tag, err := t.tx.Exec(ctx, `UPDATE budgets SET name=$3, is_active=$4, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, b.BusinessID, b.ID, b.Name, b.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM budget_items WHERE budget_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM budgets WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) ListItems(ctx context.Context, budgetID int64) ([]Item, error) {
	return listItems(ctx, t.tx, budgetID)
}

func (t *txRepository) InsertItem(ctx context.Context, it Item) (Item, error) {
	query := `INSERT INTO budget_items (budget_id, ledger_account_id, cost_center_id, annual_amount`
	for i := 1; i <= monthsPerYear; i++ {
		query += fmt.Sprintf(", month_%02d", i)
	}
	query += `) VALUES ($1, $2, $3, $4`
	args := []any{it.BudgetID, it.LedgerAccountID, it.CostCenterID, it.AnnualAmount}
	for i := range it.Months {
		args = append(args, it.Months[i])
		query += fmt.Sprintf(", $%d", len(args))
	}
	query += `) RETURNING ` + itemColumns + `, ` + monthColumns
	var created Item
	if err := t.tx.QueryRow(ctx, query, args...).Scan(itemDest(&created)...); err != nil {
		if isUniqueViolation(err) {
			return Item{}, fmt.Errorf("%w: account already budgeted", shared.ErrConflict)
		}
		return Item{}, err
	}
	return created, nil
}

func (t *txRepository) UpdateItem(ctx context.Context, it Item) error {
	query := `UPDATE budget_items SET annual_amount=$3, updated_at=NOW()`
	args := []any{it.BudgetID, it.ID, it.AnnualAmount}
	for i := range it.Months {
		args = append(args, it.Months[i])
		query += fmt.Sprintf(", month_%02d=$%d", i+1, len(args))
	}
	query += ` WHERE budget_id=$1 AND id=$2`
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) DeleteItem(ctx context.Context, budgetID, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM budget_items WHERE budget_id=$1 AND id=$2`, budgetID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, budgetID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+`, `+monthColumns+`
FROM budget_items WHERE budget_id=$1 ORDER BY id`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(itemDest(&it)...); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
