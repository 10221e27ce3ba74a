package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	ListGroups(ctx context.Context, businessID int64) ([]AccountGroup, error)
	GetGroup(ctx context.Context, businessID, id int64) (AccountGroup, error)
	ListAccounts(ctx context.Context, businessID int64) ([]LedgerAccount, error)
	GetAccount(ctx context.Context, businessID, id int64) (LedgerAccount, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	ListGroups(ctx context.Context, businessID int64) ([]AccountGroup, error)
	GetGroup(ctx context.Context, businessID, id int64) (AccountGroup, error)
	InsertGroup(ctx context.Context, g AccountGroup) (AccountGroup, error)
	UpdateGroup(ctx context.Context, g AccountGroup) error
	UpdateNature(ctx context.Context, businessID int64, ids []int64, nature Nature) error
	DeleteGroup(ctx context.Context, businessID, id int64) error
	CountChildren(ctx context.Context, businessID, id int64) (int, error)
	CountGroupAccounts(ctx context.Context, businessID, groupID int64) (int, error)

	GetAccount(ctx context.Context, businessID, id int64) (LedgerAccount, error)
	InsertAccount(ctx context.Context, a LedgerAccount) (LedgerAccount, error)
	UpdateAccount(ctx context.Context, a LedgerAccount) error
	DeleteAccount(ctx context.Context, businessID, id int64) error
	CountAccountEntries(ctx context.Context, businessID, accountID int64) (int, error)
	AccountHasParty(ctx context.Context, businessID, accountID int64) (bool, error)
	AccountCodeExists(ctx context.Context, businessID int64, code string, excludeID int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const groupColumns = `id, business_id, parent_id, name, nature, affects_gross_profit, sequence, is_system, created_at, updated_at`

const accountColumns = `id, business_id, account_group_id, code, name, opening_balance, opening_balance_type, is_bank_account, is_cash_account, is_system, is_active, created_at, updated_at`

func scanGroup(row pgx.Row) (AccountGroup, error) {
	var g AccountGroup
	err := row.Scan(&g.ID, &g.BusinessID, &g.ParentID, &g.Name, &g.Nature, &g.AffectsGrossProfit, &g.Sequence, &g.IsSystem, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountGroup{}, shared.ErrNotFound
		}
		return AccountGroup{}, err
	}
	return g, nil
}

func scanAccount(row pgx.Row) (LedgerAccount, error) {
	var a LedgerAccount
	err := row.Scan(&a.ID, &a.BusinessID, &a.AccountGroupID, &a.Code, &a.Name, &a.OpeningBalance, &a.OpeningBalanceType, &a.IsBankAccount, &a.IsCashAccount, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerAccount{}, shared.ErrNotFound
		}
		return LedgerAccount{}, err
	}
	return a, nil
}

func listGroups(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, businessID int64) ([]AccountGroup, error) {
	rows, err := q.Query(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE business_id=$1 ORDER BY sequence, name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []AccountGroup
	for rows.Next() {
		var g AccountGroup
		if err := rows.Scan(&g.ID, &g.BusinessID, &g.ParentID, &g.Name, &g.Nature, &g.AffectsGrossProfit, &g.Sequence, &g.IsSystem, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func listAccounts(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, businessID int64) ([]LedgerAccount, error) {
	rows, err := q.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE business_id=$1 ORDER BY code NULLS LAST, name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []LedgerAccount
	for rows.Next() {
		var a LedgerAccount
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.AccountGroupID, &a.Code, &a.Name, &a.OpeningBalance, &a.OpeningBalanceType, &a.IsBankAccount, &a.IsCashAccount, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) ListGroups(ctx context.Context, businessID int64) ([]AccountGroup, error) {
	return listGroups(ctx, r.db, businessID)
}

func (r *repository) GetGroup(ctx context.Context, businessID, id int64) (AccountGroup, error) {
	return scanGroup(r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) ListAccounts(ctx context.Context, businessID int64) ([]LedgerAccount, error) {
	return listAccounts(ctx, r.db, businessID)
}

func (r *repository) GetAccount(ctx context.Context, businessID, id int64) (LedgerAccount, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ListGroups(ctx context.Context, businessID int64) ([]AccountGroup, error) {
	return listGroups(ctx, r.tx, businessID)
}

func (r *txRepository) GetGroup(ctx context.Context, businessID, id int64) (AccountGroup, error) {
	return scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) InsertGroup(ctx context.Context, g AccountGroup) (AccountGroup, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO account_groups (business_id, parent_id, name, nature, affects_gross_profit, sequence, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		g.BusinessID, g.ParentID, g.Name, g.Nature, g.AffectsGrossProfit, g.Sequence, g.IsSystem)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return AccountGroup{}, err
	}
	return g, nil
}

func (r *txRepository) UpdateGroup(ctx context.Context, g AccountGroup) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_groups SET parent_id=$3, name=$4, nature=$5, affects_gross_profit=$6, sequence=$7, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, g.BusinessID, g.ID, g.ParentID, g.Name, g.Nature, g.AffectsGrossProfit, g.Sequence)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateNature(ctx context.Context, businessID int64, ids []int64, nature Nature) error {
	_, err := r.tx.Exec(ctx, `UPDATE account_groups SET nature=$3, updated_at=NOW() WHERE business_id=$1 AND id = ANY($2)`, businessID, ids, nature)
	return err
}

func (r *txRepository) DeleteGroup(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM account_groups WHERE business_id=$1 AND id=$2`, businessID, id)
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
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM account_groups WHERE business_id=$1 AND parent_id=$2`, businessID, id).Scan(&count)
	return count, err
}

func (r *txRepository) CountGroupAccounts(ctx context.Context, businessID, groupID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_accounts WHERE business_id=$1 AND account_group_id=$2`, businessID, groupID).Scan(&count)
	return count, err
}

func (r *txRepository) GetAccount(ctx context.Context, businessID, id int64) (LedgerAccount, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) InsertAccount(ctx context.Context, a LedgerAccount) (LedgerAccount, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts (business_id, account_group_id, code, name, opening_balance, opening_balance_type, is_bank_account, is_cash_account, is_system, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		a.BusinessID, a.AccountGroupID, a.Code, a.Name, a.OpeningBalance, a.OpeningBalanceType, a.IsBankAccount, a.IsCashAccount, a.IsSystem, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return LedgerAccount{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, a LedgerAccount) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET account_group_id=$3, code=$4, name=$5, opening_balance=$6, opening_balance_type=$7, is_bank_account=$8, is_cash_account=$9, is_active=$10, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, a.BusinessID, a.ID, a.AccountGroupID, a.Code, a.Name, a.OpeningBalance, a.OpeningBalanceType, a.IsBankAccount, a.IsCashAccount, a.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_accounts WHERE business_id=$1 AND id=$2`, businessID, id)
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

func (r *txRepository) AccountHasParty(ctx context.Context, businessID, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parties WHERE business_id=$1 AND ledger_account_id=$2)`, businessID, accountID).Scan(&exists)
	return exists, err
}

func (r *txRepository) AccountCodeExists(ctx context.Context, businessID int64, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE business_id=$1 AND code=$2 AND id <> $3)`, businessID, code, excludeID).Scan(&exists)
	return exists, err
}
