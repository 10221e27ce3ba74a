package recon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// EntryRef is the slice of a journal entry the engine needs to validate and
// total a linked item. It carries the owning business so the service can
// tell a foreign entry apart from a missing one.
type EntryRef struct {
	ID              int64
	BusinessID      int64
	LedgerAccountID int64
	Date            time.Time
	DebitAmount     decimal.Decimal
	CreditAmount    decimal.Decimal
}

// Repository encapsulates DB operations for reconciliations.
type Repository interface {
	List(ctx context.Context, businessID int64, accountID *int64) ([]Reconciliation, error)
	Get(ctx context.Context, businessID, id int64) (Reconciliation, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, businessID, id int64) (Reconciliation, error)
	Insert(ctx context.Context, r Reconciliation) (Reconciliation, error)
	Delete(ctx context.Context, businessID, id int64) error
	SetReconciled(ctx context.Context, businessID, id int64, balance decimal.Decimal) error
	SetCompleted(ctx context.Context, businessID, id int64, by *int64, at *time.Time, completed bool) error

	GetEntry(ctx context.Context, entryID int64) (EntryRef, error)
	InsertItem(ctx context.Context, reconciliationID, entryID int64) error
	DeleteItem(ctx context.Context, reconciliationID, entryID int64) error
	SumItems(ctx context.Context, reconciliationID int64) (debit, credit decimal.Decimal, err error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const reconColumns = `id, business_id, ledger_account_id, statement_date, statement_balance, account_balance, reconciled_balance, is_completed, completed_by, completed_at, created_at, updated_at`

func scan(row pgx.Row) (Reconciliation, error) {
	var r Reconciliation
	err := row.Scan(&r.ID, &r.BusinessID, &r.LedgerAccountID, &r.StatementDate, &r.StatementBalance, &r.AccountBalance, &r.ReconciledBalance, &r.IsCompleted, &r.CompletedBy, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, shared.ErrNotFound
		}
		return Reconciliation{}, err
	}
	return r, nil
}

func (r *repository) List(ctx context.Context, businessID int64, accountID *int64) ([]Reconciliation, error) {
	query := `SELECT ` + reconColumns + ` FROM account_reconciliations WHERE business_id=$1`
	args := []any{businessID}
	if accountID != nil {
		args = append(args, *accountID)
		query += ` AND ledger_account_id=$2`
	}
	query += ` ORDER BY statement_date DESC, id DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reconciliation
	for rows.Next() {
		var rec Reconciliation
		if err := rows.Scan(&rec.ID, &rec.BusinessID, &rec.LedgerAccountID, &rec.StatementDate, &rec.StatementBalance, &rec.AccountBalance, &rec.ReconciledBalance, &rec.IsCompleted, &rec.CompletedBy, &rec.CompletedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Reconciliation, error) {
	rec, err := scan(r.db.QueryRow(ctx, `SELECT `+reconColumns+` FROM account_reconciliations WHERE business_id=$1 AND id=$2`, businessID, id))
	if err != nil {
		return Reconciliation{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT ri.id, ri.reconciliation_id, ri.journal_entry_id, je.debit_amount, je.credit_amount, je.date, ri.created_at
FROM reconciliation_items ri JOIN journal_entries je ON je.id = ri.journal_entry_id
WHERE ri.reconciliation_id=$1 ORDER BY je.date, ri.id`, id)
	if err != nil {
		return Reconciliation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ReconciliationID, &it.JournalEntryID, &it.DebitAmount, &it.CreditAmount, &it.EntryDate, &it.CreatedAt); err != nil {
			return Reconciliation{}, err
		}
		rec.Items = append(rec.Items, it)
	}
	return rec, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Reconciliation, error) {
	return scan(r.tx.QueryRow(ctx, `SELECT `+reconColumns+` FROM account_reconciliations WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) Insert(ctx context.Context, rec Reconciliation) (Reconciliation, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO account_reconciliations (business_id, ledger_account_id, statement_date, statement_balance, account_balance, reconciled_balance)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		rec.BusinessID, rec.LedgerAccountID, rec.StatementDate, rec.StatementBalance, rec.AccountBalance, rec.ReconciledBalance)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}

func (r *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM account_reconciliations WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetReconciled(ctx context.Context, businessID, id int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_reconciliations SET reconciled_balance=$3, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetCompleted(ctx context.Context, businessID, id int64, by *int64, at *time.Time, completed bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_reconciliations SET is_completed=$3, completed_by=$4, completed_at=$5, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, businessID, id, completed, by, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) GetEntry(ctx context.Context, entryID int64) (EntryRef, error) {
	var e EntryRef
	err := r.tx.QueryRow(ctx, `SELECT id, business_id, ledger_account_id, date, debit_amount, credit_amount FROM journal_entries WHERE id=$1`, entryID).
		Scan(&e.ID, &e.BusinessID, &e.LedgerAccountID, &e.Date, &e.DebitAmount, &e.CreditAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return EntryRef{}, shared.ErrNotFound
	}
	return e, err
}

func (r *txRepository) InsertItem(ctx context.Context, reconciliationID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO reconciliation_items (reconciliation_id, journal_entry_id) VALUES ($1,$2)`, reconciliationID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		// journal_entry_id carries a global unique index.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrAlreadyReconciled
		}
		return err
	}
	return nil
}

func (r *txRepository) DeleteItem(ctx context.Context, reconciliationID, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM reconciliation_items WHERE reconciliation_id=$1 AND journal_entry_id=$2`, reconciliationID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SumItems(ctx context.Context, reconciliationID int64) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(je.debit_amount), 0), COALESCE(SUM(je.credit_amount), 0)
FROM reconciliation_items ri JOIN journal_entries je ON je.id = ri.journal_entry_id
WHERE ri.reconciliation_id=$1`, reconciliationID).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}
