package recurring

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for recurring transactions.
type Repository interface {
	List(ctx context.Context, businessID int64, activeOnly bool) ([]Transaction, error)
	Get(ctx context.Context, businessID, id int64) (Transaction, error)
	// ActiveBusinessIDs lists businesses that have at least one active
	// schedule, for batch processing fan-out.
	ActiveBusinessIDs(ctx context.Context) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, businessID, id int64) (Transaction, error)
	Insert(ctx context.Context, t Transaction) (Transaction, error)
	Update(ctx context.Context, t Transaction) error
	Delete(ctx context.Context, businessID, id int64) error
	InsertTemplate(ctx context.Context, recurringID int64, items []TemplateItem) ([]TemplateItem, error)
	DeleteTemplate(ctx context.Context, recurringID int64) error
	MarkGenerated(ctx context.Context, businessID, id int64, due time.Time) error
	ReleaseGenerated(ctx context.Context, businessID, id int64, due time.Time, prev *time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, business_id, voucher_type_id, name, frequency, day_of_week, day_of_month, month, start_date, end_date, occurrences, occurrences_generated, last_generated_date, narration, is_active, created_at, updated_at`

func scan(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.BusinessID, &t.VoucherTypeID, &t.Name, &t.Frequency, &t.DayOfWeek, &t.DayOfMonth, &t.Month, &t.StartDate, &t.EndDate, &t.Occurrences, &t.OccurrencesGenerated, &t.LastGeneratedDate, &t.Narration, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, businessID int64, activeOnly bool) ([]Transaction, error) {
	query := `SELECT ` + columns + ` FROM recurring_transactions WHERE business_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY id`
	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.VoucherTypeID, &t.Name, &t.Frequency, &t.DayOfWeek, &t.DayOfMonth, &t.Month, &t.StartDate, &t.EndDate, &t.Occurrences, &t.OccurrencesGenerated, &t.LastGeneratedDate, &t.Narration, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Template, err = listTemplate(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM recurring_transactions WHERE business_id=$1 AND id=$2`, businessID, id)
	t, err := scan(row)
	if err != nil {
		return Transaction{}, err
	}
	t.Template, err = listTemplate(ctx, r.db, id)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) ActiveBusinessIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT business_id FROM recurring_transactions WHERE is_active ORDER BY business_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+columns+` FROM recurring_transactions WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id)
	rec, err := scan(row)
	if err != nil {
		return Transaction{}, err
	}
	rec.Template, err = listTemplate(ctx, t.tx, id)
	if err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

func (t *txRepository) Insert(ctx context.Context, rec Transaction) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO recurring_transactions
(business_id, voucher_type_id, name, frequency, day_of_week, day_of_month, month, start_date, end_date, occurrences, occurrences_generated, narration, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)
RETURNING `+columns,
		rec.BusinessID, rec.VoucherTypeID, rec.Name, rec.Frequency, rec.DayOfWeek, rec.DayOfMonth, rec.Month,
		rec.StartDate, rec.EndDate, rec.Occurrences, rec.Narration, rec.IsActive)
	return scan(row)
}

func (t *txRepository) Update(ctx context.Context, rec Transaction) error {
	tag, err := t.tx.Exec(ctx, `UPDATE recurring_transactions
SET voucher_type_id=$3, name=$4, frequency=$5, day_of_week=$6, day_of_month=$7, month=$8, start_date=$9, end_date=$10, occurrences=$11, narration=$12, is_active=$13, updated_at=NOW()
WHERE business_id=$1 AND id=$2`,
		rec.BusinessID, rec.ID, rec.VoucherTypeID, rec.Name, rec.Frequency, rec.DayOfWeek, rec.DayOfMonth, rec.Month,
		rec.StartDate, rec.EndDate, rec.Occurrences, rec.Narration, rec.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	if err := t.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM recurring_transactions WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) InsertTemplate(ctx context.Context, recurringID int64, items []TemplateItem) ([]TemplateItem, error) {
	out := make([]TemplateItem, 0, len(items))
	for i, it := range items {
		row := t.tx.QueryRow(ctx, `INSERT INTO recurring_template_items
(recurring_id, ledger_account_id, cost_center_id, debit_amount, credit_amount, narration, sequence)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, recurringID, it.LedgerAccountID, it.CostCenterID, it.DebitAmount, it.CreditAmount, it.Narration, i)
		if err := row.Scan(&it.ID); err != nil {
			return nil, err
		}
		it.RecurringID = recurringID
		it.Sequence = i
		out = append(out, it)
	}
	return out, nil
}

func (t *txRepository) DeleteTemplate(ctx context.Context, recurringID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM recurring_template_items WHERE recurring_id=$1`, recurringID)
	return err
}

// MarkGenerated consumes one occurrence and advances the generation
// watermark to due. The guard makes a replay of an already-generated due
// date a no-op, so a repeated batch run cannot double-book a schedule.
func (t *txRepository) MarkGenerated(ctx context.Context, businessID, id int64, due time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE recurring_transactions
SET occurrences_generated = occurrences_generated + 1, last_generated_date=$3, updated_at=NOW()
WHERE business_id=$1 AND id=$2 AND (last_generated_date IS NULL OR last_generated_date < $3)`, businessID, id, due)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}

// ReleaseGenerated undoes MarkGenerated when voucher creation fails after
// the claim, restoring the previous watermark so the occurrence can retry.
func (t *txRepository) ReleaseGenerated(ctx context.Context, businessID, id int64, due time.Time, prev *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE recurring_transactions
SET occurrences_generated = occurrences_generated - 1, last_generated_date=$4, updated_at=NOW()
WHERE business_id=$1 AND id=$2 AND last_generated_date=$3`, businessID, id, due, prev)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTemplate(ctx context.Context, q querier, recurringID int64) ([]TemplateItem, error) {
	rows, err := q.Query(ctx, `SELECT id, recurring_id, ledger_account_id, cost_center_id, debit_amount, credit_amount, narration, sequence
FROM recurring_template_items WHERE recurring_id=$1 ORDER BY sequence`, recurringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TemplateItem
	for rows.Next() {
		var it TemplateItem
		if err := rows.Scan(&it.ID, &it.RecurringID, &it.LedgerAccountID, &it.CostCenterID, &it.DebitAmount, &it.CreditAmount, &it.Narration, &it.Sequence); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
