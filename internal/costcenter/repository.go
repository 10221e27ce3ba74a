package costcenter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for cost centers.
type Repository interface {
	List(ctx context.Context, businessID int64) ([]CostCenter, error)
	Get(ctx context.Context, businessID, id int64) (CostCenter, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	List(ctx context.Context, businessID int64) ([]CostCenter, error)
	Get(ctx context.Context, businessID, id int64) (CostCenter, error)
	Insert(ctx context.Context, c CostCenter) (CostCenter, error)
	Update(ctx context.Context, c CostCenter) error
	Delete(ctx context.Context, businessID, id int64) error
	CountChildren(ctx context.Context, businessID, id int64) (int, error)
	CountTransactions(ctx context.Context, businessID, id int64) (int, error)
	CodeExists(ctx context.Context, businessID int64, code string, excludeID int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, business_id, parent_id, name, code, is_active, created_at, updated_at`

func list(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, businessID int64) ([]CostCenter, error) {
	rows, err := q.Query(ctx, `SELECT `+columns+` FROM cost_centers WHERE business_id=$1 ORDER BY code, name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var centers []CostCenter
	for rows.Next() {
		var c CostCenter
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.ParentID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}
	return centers, rows.Err()
}

func get(ctx context.Context, row pgx.Row) (CostCenter, error) {
	var c CostCenter
	err := row.Scan(&c.ID, &c.BusinessID, &c.ParentID, &c.Name, &c.Code, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostCenter{}, shared.ErrNotFound
		}
		return CostCenter{}, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, businessID int64) ([]CostCenter, error) {
	return list(ctx, r.db, businessID)
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (CostCenter, error) {
	return get(ctx, r.db.QueryRow(ctx, `SELECT `+columns+` FROM cost_centers WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) List(ctx context.Context, businessID int64) ([]CostCenter, error) {
	return list(ctx, r.tx, businessID)
}

func (r *txRepository) Get(ctx context.Context, businessID, id int64) (CostCenter, error) {
	return get(ctx, r.tx.QueryRow(ctx, `SELECT `+columns+` FROM cost_centers WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) Insert(ctx context.Context, c CostCenter) (CostCenter, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO cost_centers (business_id, parent_id, name, code, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, c.BusinessID, c.ParentID, c.Name, c.Code, c.IsActive)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return CostCenter{}, err
	}
	return c, nil
}

func (r *txRepository) Update(ctx context.Context, c CostCenter) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE cost_centers SET parent_id=$3, name=$4, code=$5, is_active=$6, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, c.BusinessID, c.ID, c.ParentID, c.Name, c.Code, c.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM cost_centers WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CountChildren(ctx context.Context, businessID, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM cost_centers WHERE business_id=$1 AND parent_id=$2`, businessID, id).Scan(&count)
	return count, err
}

func (r *txRepository) CountTransactions(ctx context.Context, businessID, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM voucher_items vi JOIN vouchers v ON v.id = vi.voucher_id
WHERE v.business_id=$1 AND vi.cost_center_id=$2`, businessID, id).Scan(&count)
	return count, err
}

func (r *txRepository) CodeExists(ctx context.Context, businessID int64, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cost_centers WHERE business_id=$1 AND code=$2 AND id <> $3)`, businessID, code, excludeID).Scan(&exists)
	return exists, err
}
