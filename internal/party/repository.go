package party

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for parties and their backing
// accounts.
type Repository interface {
	List(ctx context.Context, businessID int64) ([]Party, error)
	Get(ctx context.Context, businessID, id int64) (Party, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Account
// provisioning writes to the chart-of-accounts tables directly so that a
// party and its account commit or roll back together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, businessID, id int64) (Party, error)
	Insert(ctx context.Context, p Party) (Party, error)
	Update(ctx context.Context, p Party) error
	Delete(ctx context.Context, businessID, id int64) error

	FindGroupIDByName(ctx context.Context, businessID int64, name string) (int64, error)
	InsertAccount(ctx context.Context, a coa.LedgerAccount) (coa.LedgerAccount, error)
	RenameAccount(ctx context.Context, businessID, accountID int64, name string) error
	DeleteAccount(ctx context.Context, businessID, accountID int64) error
	CountAccountEntries(ctx context.Context, businessID, accountID int64) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const partyColumns = `id, business_id, ledger_account_id, name, type, email, phone, address, credit_limit, credit_period, is_active, created_at, updated_at`

func scan(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.BusinessID, &p.LedgerAccountID, &p.Name, &p.Type, &p.Email, &p.Phone, &p.Address, &p.CreditLimit, &p.CreditPeriod, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, shared.ErrNotFound
		}
		return Party{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, businessID int64) ([]Party, error) {
	rows, err := r.db.Query(ctx, `SELECT `+partyColumns+` FROM parties WHERE business_id=$1 ORDER BY name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.LedgerAccountID, &p.Name, &p.Type, &p.Email, &p.Phone, &p.Address, &p.CreditLimit, &p.CreditPeriod, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Party, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Party, error) {
	return scan(r.tx.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) Insert(ctx context.Context, p Party) (Party, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO parties (business_id, ledger_account_id, name, type, email, phone, address, credit_limit, credit_period, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		p.BusinessID, p.LedgerAccountID, p.Name, p.Type, p.Email, p.Phone, p.Address, p.CreditLimit, p.CreditPeriod, p.IsActive)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Party{}, err
	}
	return p, nil
}

func (r *txRepository) Update(ctx context.Context, p Party) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE parties SET name=$3, type=$4, email=$5, phone=$6, address=$7, credit_limit=$8, credit_period=$9, is_active=$10, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, p.BusinessID, p.ID, p.Name, p.Type, p.Email, p.Phone, p.Address, p.CreditLimit, p.CreditPeriod, p.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM parties WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) FindGroupIDByName(ctx context.Context, businessID int64, name string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM account_groups WHERE business_id=$1 AND name=$2`, businessID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return id, err
}

func (r *txRepository) InsertAccount(ctx context.Context, a coa.LedgerAccount) (coa.LedgerAccount, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts (business_id, account_group_id, code, name, opening_balance, opening_balance_type, is_bank_account, is_cash_account, is_system, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		a.BusinessID, a.AccountGroupID, a.Code, a.Name, a.OpeningBalance, a.OpeningBalanceType, a.IsBankAccount, a.IsCashAccount, a.IsSystem, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return coa.LedgerAccount{}, err
	}
	return a, nil
}

func (r *txRepository) RenameAccount(ctx context.Context, businessID, accountID int64, name string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET name=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, accountID, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, businessID, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_accounts WHERE business_id=$1 AND id=$2`, businessID, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CountAccountEntries(ctx context.Context, businessID, accountID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE business_id=$1 AND ledger_account_id=$2`, businessID, accountID).Scan(&count)
	return count, err
}
