package voucher

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// ListFilter narrows voucher listings.
type ListFilter struct {
	TypeID  *int64
	YearID  *int64
	PartyID *int64
	From    *time.Time
	To      *time.Time
	Posted  *bool
}

// Repository encapsulates DB operations for vouchers and voucher types.
type Repository interface {
	ListTypes(ctx context.Context, businessID int64) ([]VoucherType, error)
	GetType(ctx context.Context, businessID, id int64) (VoucherType, error)
	List(ctx context.Context, businessID int64, filter ListFilter) ([]Voucher, error)
	Get(ctx context.Context, businessID, id int64) (Voucher, error)
	ListItems(ctx context.Context, businessID, voucherID int64) ([]Item, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetType(ctx context.Context, businessID, id int64) (VoucherType, error)
	InsertType(ctx context.Context, t VoucherType) (VoucherType, error)
	UpdateType(ctx context.Context, t VoucherType) error
	DeleteType(ctx context.Context, businessID, id int64) error
	CountTypeVouchers(ctx context.Context, businessID, typeID int64) (int, error)

	GetForUpdate(ctx context.Context, businessID, id int64) (Voucher, error)
	ListItems(ctx context.Context, businessID, voucherID int64) ([]Item, error)
	HighestSequence(ctx context.Context, businessID, typeID, yearID int64) (int64, error)
	Insert(ctx context.Context, v Voucher) (Voucher, error)
	Update(ctx context.Context, v Voucher) error
	Delete(ctx context.Context, businessID, id int64) error
	InsertItems(ctx context.Context, voucherID int64, items []Item) ([]Item, error)
	UpdateItem(ctx context.Context, it Item) error
	DeleteItems(ctx context.Context, voucherID int64, ids []int64) error
	SetPosted(ctx context.Context, businessID, id int64, posted bool, updatedBy int64) error
	SetAttachment(ctx context.Context, businessID, id int64, key *string, updatedBy int64) error

	InsertEntries(ctx context.Context, entries []ledger.Entry) error
	DeleteEntries(ctx context.Context, businessID, voucherID int64) error
	CountReconciledEntries(ctx context.Context, businessID, voucherID int64) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const typeColumns = `id, business_id, name, code, nature, prefix, auto_increment, starting_number, is_system, created_at, updated_at`

const voucherColumns = `id, business_id, voucher_type_id, financial_year_id, voucher_number, sequence, date, party_id, narration, reference, attachment_key, is_posted, total_amount, created_by, updated_by, created_at, updated_at`

// isUniqueViolation reports a postgres duplicate-key error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanType(row pgx.Row) (VoucherType, error) {
	var t VoucherType
	err := row.Scan(&t.ID, &t.BusinessID, &t.Name, &t.Code, &t.Nature, &t.Prefix, &t.AutoIncrement, &t.StartingNumber, &t.IsSystem, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoucherType{}, shared.ErrNotFound
		}
		return VoucherType{}, err
	}
	return t, nil
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.BusinessID, &v.VoucherTypeID, &v.FinancialYearID, &v.VoucherNumber, &v.Sequence, &v.Date, &v.PartyID, &v.Narration, &v.Reference, &v.AttachmentKey, &v.IsPosted, &v.TotalAmount, &v.CreatedBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, shared.ErrNotFound
		}
		return Voucher{}, err
	}
	return v, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func listItems(ctx context.Context, q querier, businessID, voucherID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT i.id, i.voucher_id, i.ledger_account_id, i.cost_center_id, i.debit_amount, i.credit_amount, i.narration, i.sequence
FROM voucher_items i JOIN vouchers v ON v.id = i.voucher_id
WHERE v.business_id=$1 AND i.voucher_id=$2 ORDER BY i.sequence, i.id`, businessID, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.VoucherID, &it.LedgerAccountID, &it.CostCenterID, &it.DebitAmount, &it.CreditAmount, &it.Narration, &it.Sequence); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) ListTypes(ctx context.Context, businessID int64) ([]VoucherType, error) {
	rows, err := r.db.Query(ctx, `SELECT `+typeColumns+` FROM voucher_types WHERE business_id=$1 ORDER BY name`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []VoucherType
	for rows.Next() {
		var t VoucherType
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.Name, &t.Code, &t.Nature, &t.Prefix, &t.AutoIncrement, &t.StartingNumber, &t.IsSystem, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repository) GetType(ctx context.Context, businessID, id int64) (VoucherType, error) {
	return scanType(r.db.QueryRow(ctx, `SELECT `+typeColumns+` FROM voucher_types WHERE business_id=$1 AND id=$2`, businessID, id))
}

func (r *repository) List(ctx context.Context, businessID int64, filter ListFilter) ([]Voucher, error) {
	args := []any{businessID}
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE business_id=$1`
	add := func(clause string, value any) {
		args = append(args, value)
		query += ` AND ` + clause + `$` + strconv.Itoa(len(args))
	}
	if filter.TypeID != nil {
		add(`voucher_type_id=`, *filter.TypeID)
	}
	if filter.YearID != nil {
		add(`financial_year_id=`, *filter.YearID)
	}
	if filter.PartyID != nil {
		add(`party_id=`, *filter.PartyID)
	}
	if filter.From != nil {
		add(`date>=`, *filter.From)
	}
	if filter.To != nil {
		add(`date<=`, *filter.To)
	}
	if filter.Posted != nil {
		add(`is_posted=`, *filter.Posted)
	}
	query += ` ORDER BY date DESC, id DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.BusinessID, &v.VoucherTypeID, &v.FinancialYearID, &v.VoucherNumber, &v.Sequence, &v.Date, &v.PartyID, &v.Narration, &v.Reference, &v.AttachmentKey, &v.IsPosted, &v.TotalAmount, &v.CreatedBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *repository) Get(ctx context.Context, businessID, id int64) (Voucher, error) {
	v, err := scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE business_id=$1 AND id=$2`, businessID, id))
	if err != nil {
		return Voucher{}, err
	}
	v.Items, err = listItems(ctx, r.db, businessID, id)
	return v, err
}

func (r *repository) ListItems(ctx context.Context, businessID, voucherID int64) ([]Item, error) {
	return listItems(ctx, r.db, businessID, voucherID)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetType(ctx context.Context, businessID, id int64) (VoucherType, error) {
	return scanType(r.tx.QueryRow(ctx, `SELECT `+typeColumns+` FROM voucher_types WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) InsertType(ctx context.Context, t VoucherType) (VoucherType, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO voucher_types (business_id, name, code, nature, prefix, auto_increment, starting_number, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		t.BusinessID, t.Name, t.Code, t.Nature, t.Prefix, t.AutoIncrement, t.StartingNumber, t.IsSystem)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return VoucherType{}, shared.ErrConflict
		}
		return VoucherType{}, err
	}
	return t, nil
}

func (r *txRepository) UpdateType(ctx context.Context, t VoucherType) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE voucher_types SET name=$3, code=$4, nature=$5, prefix=$6, auto_increment=$7, starting_number=$8, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, t.BusinessID, t.ID, t.Name, t.Code, t.Nature, t.Prefix, t.AutoIncrement, t.StartingNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteType(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM voucher_types WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CountTypeVouchers(ctx context.Context, businessID, typeID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers WHERE business_id=$1 AND voucher_type_id=$2`, businessID, typeID).Scan(&count)
	return count, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Voucher, error) {
	return scanVoucher(r.tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE business_id=$1 AND id=$2 FOR UPDATE`, businessID, id))
}

func (r *txRepository) ListItems(ctx context.Context, businessID, voucherID int64) ([]Item, error) {
	return listItems(ctx, r.tx, businessID, voucherID)
}

func (r *txRepository) HighestSequence(ctx context.Context, businessID, typeID, yearID int64) (int64, error) {
	var highest int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM vouchers
WHERE business_id=$1 AND voucher_type_id=$2 AND financial_year_id=$3`, businessID, typeID, yearID).Scan(&highest)
	return highest, err
}

func (r *txRepository) Insert(ctx context.Context, v Voucher) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO vouchers (business_id, voucher_type_id, financial_year_id, voucher_number, sequence, date, party_id, narration, reference, is_posted, total_amount, created_by, updated_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12) RETURNING id, created_at, updated_at`,
		v.BusinessID, v.VoucherTypeID, v.FinancialYearID, v.VoucherNumber, v.Sequence, v.Date, v.PartyID, v.Narration, v.Reference, v.IsPosted, v.TotalAmount, v.CreatedBy)
	if err := row.Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Voucher{}, shared.ErrDuplicateVoucherNumber
		}
		return Voucher{}, err
	}
	return v, nil
}

func (r *txRepository) Update(ctx context.Context, v Voucher) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET financial_year_id=$3, voucher_number=$4, date=$5, party_id=$6, narration=$7, reference=$8, total_amount=$9, updated_by=$10, updated_at=NOW()
WHERE business_id=$1 AND id=$2`, v.BusinessID, v.ID, v.FinancialYearID, v.VoucherNumber, v.Date, v.PartyID, v.Narration, v.Reference, v.TotalAmount, v.UpdatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrDuplicateVoucherNumber
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) Delete(ctx context.Context, businessID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM vouchers WHERE business_id=$1 AND id=$2`, businessID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertItems(ctx context.Context, voucherID int64, items []Item) ([]Item, error) {
	inserted := make([]Item, 0, len(items))
	for _, it := range items {
		it.VoucherID = voucherID
		row := r.tx.QueryRow(ctx, `INSERT INTO voucher_items (voucher_id, ledger_account_id, cost_center_id, debit_amount, credit_amount, narration, sequence)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			it.VoucherID, it.LedgerAccountID, it.CostCenterID, it.DebitAmount, it.CreditAmount, it.Narration, it.Sequence)
		if err := row.Scan(&it.ID); err != nil {
			return nil, err
		}
		inserted = append(inserted, it)
	}
	return inserted, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, it Item) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE voucher_items SET ledger_account_id=$3, cost_center_id=$4, debit_amount=$5, credit_amount=$6, narration=$7, sequence=$8
WHERE voucher_id=$1 AND id=$2`, it.VoucherID, it.ID, it.LedgerAccountID, it.CostCenterID, it.DebitAmount, it.CreditAmount, it.Narration, it.Sequence)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteItems(ctx context.Context, voucherID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM voucher_items WHERE voucher_id=$1 AND id = ANY($2)`, voucherID, ids)
	return err
}

func (r *txRepository) SetPosted(ctx context.Context, businessID, id int64, posted bool, updatedBy int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET is_posted=$3, updated_by=$4, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, posted, updatedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetAttachment(ctx context.Context, businessID, id int64, key *string, updatedBy int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET attachment_key=$3, updated_by=$4, updated_at=NOW() WHERE business_id=$1 AND id=$2`, businessID, id, key, updatedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (business_id, voucher_id, ledger_account_id, cost_center_id, financial_year_id, date, debit_amount, credit_amount, narration)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			e.BusinessID, e.VoucherID, e.LedgerAccountID, e.CostCenterID, e.FinancialYearID, e.Date, e.DebitAmount, e.CreditAmount, e.Narration)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteEntries(ctx context.Context, businessID, voucherID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE business_id=$1 AND voucher_id=$2`, businessID, voucherID)
	return err
}

func (r *txRepository) CountReconciledEntries(ctx context.Context, businessID, voucherID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_items ri
JOIN journal_entries je ON je.id = ri.journal_entry_id
WHERE je.business_id=$1 AND je.voucher_id=$2`, businessID, voucherID).Scan(&count)
	return count, err
}
