package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for financial years.
type Repository interface {
	List(ctx context.Context, businessID int64) ([]FinancialYear, error)
	Get(ctx context.Context, businessID, id int64) (FinancialYear, error)
	FindByDate(ctx context.Context, businessID int64, date time.Time) (FinancialYear, error)
	Current(ctx context.Context, businessID int64) (FinancialYear, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	List(ctx context.Context, businessID int64) ([]FinancialYear, error)
	Get(ctx context.Context, businessID, id int64) (FinancialYear, error)
	Insert(ctx context.Context, y FinancialYear) (FinancialYear, error)
	SetLocked(ctx context.Context, businessID, id int64, locked bool) error
	ClearCurrent(ctx context.Context, businessID int64) error
	SetCurrent(ctx context.Context, businessID, id int64) error
	CountVouchers(ctx context.Context, businessID, yearID int64) (int, error)
	Delete(ctx context.Context, businessID, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, business_id, start_date, end_date, is_current, is_locked, created_at, updated_at`

func scan(row pgx.Row) (FinancialYear, error) {
	var y FinancialYear
	err := row.Scan(&y.ID, &y.BusinessID, &y.StartDate, &y.EndDate, &y.IsCurrent, &y.IsLocked, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialYear{}, shared.ErrNotFound
		}
		return FinancialYear{}, err
	}
	return y, nil
}

func list(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, businessID int64) ([]FinancialYear, error) {
	rows, err := q.Query(ctx, `SELECT `+columns+` FROM financial_years WHERE business_id=$1 ORDER BY start_date DESC`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FinancialYear
	for rows.Next() {
		var y FinancialYear
		if err := rows.Scan(&y.ID, &y.BusinessID, &y.StartDate, &y.EndDate, &y.IsCurrent, &y.IsLocked, &y.CreatedAt, &y.UpdatedAt); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (r *repository) List(ctx context.Context, businessID int64) ([]FinancialYear, error) {
	return list(ctx, r.db, businessID)
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (FinancialYear, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) FindByDate(ctx context.Context, businessID int64, date time.Time) (FinancialYear, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE business_id=$1 AND start_date <= $2 AND end_date >= $2`, businessID, date))
}

func (r *repository) Current(ctx context.Context, businessID int64) (FinancialYear, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE business_id=$1 AND is_current`, businessID))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) List(ctx context.Context, businessID int64) ([]FinancialYear, error) {
	return list(ctx, r.tx, businessID)
}

func (r *txRepository) Get(ctx context.Context, businessID, id int64) (FinancialYear, error) {
	return scan(r.tx.QueryRow(ctx, `SELECT `+columns+` FROM financial_years WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) Insert(ctx context.Context, y FinancialYear) (FinancialYear, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO financial_years (business_id, start_date, end_date, is_current, is_locked)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, y.BusinessID, y.StartDate, y.EndDate, y.IsCurrent, y.IsLocked)
	if err := row.Scan(&y.ID, &y.CreatedAt, &y.UpdatedAt); err != nil {
		return FinancialYear{}, err
	}
	return y, nil
}

func (r *txRepository) SetLocked(ctx context.Context, businessID, id int64, locked bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_locked=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, locked)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) ClearCurrent(ctx context.Context, businessID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_current=FALSE, updated_at=NOW() WHERE business_id=$1 AND is_current`, businessID)
	return err
}

func (r *txRepository) SetCurrent(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_years SET is_current=TRUE, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CountVouchers(ctx context.Context, businessID, yearID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers WHERE business_id=$1 AND financial_year_id=$2`, businessID, yearID).Scan(&count)
	return count, err
}

func (r *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM financial_years WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
