package recon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/shared"
)

var tenant = shared.Tenant{BusinessID: 1, UserID: 7}

type fakeRepo struct {
	recs     map[int64]*Reconciliation
	items    map[int64][]int64 // reconciliation -> entry IDs
	entries  map[int64]EntryRef
	accounts map[int64]coa.LedgerAccount
	balances map[int64]decimal.Decimal
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		recs:     map[int64]*Reconciliation{},
		items:    map[int64][]int64{},
		entries:  map[int64]EntryRef{},
		accounts: map[int64]coa.LedgerAccount{},
		balances: map[int64]decimal.Decimal{},
		nextID:   1,
	}
}

func (f *fakeRepo) List(_ context.Context, businessID int64, accountID *int64) ([]Reconciliation, error) {
	var out []Reconciliation
	for _, r := range f.recs {
		if r.BusinessID != businessID {
			continue
		}
		if accountID != nil && r.LedgerAccountID != *accountID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, businessID, id int64) (Reconciliation, error) {
	r, ok := f.recs[id]
	if !ok || r.BusinessID != businessID {
		return Reconciliation{}, shared.ErrNotFound
	}
	rec := *r
	for _, entryID := range f.items[id] {
		e := f.entries[entryID]
		rec.Items = append(rec.Items, Item{
			ReconciliationID: id,
			JournalEntryID:   entryID,
			DebitAmount:      e.DebitAmount,
			CreditAmount:     e.CreditAmount,
			EntryDate:        e.Date,
		})
	}
	return rec, nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, businessID, id int64) (Reconciliation, error) {
	r, ok := f.recs[id]
	if !ok || r.BusinessID != businessID {
		return Reconciliation{}, shared.ErrNotFound
	}
	return *r, nil
}

func (f *fakeRepo) Insert(_ context.Context, r Reconciliation) (Reconciliation, error) {
	r.ID = f.nextID
	f.nextID++
	f.recs[r.ID] = &r
	return r, nil
}

func (f *fakeRepo) Delete(_ context.Context, businessID, id int64) error {
	delete(f.recs, id)
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) SetReconciled(_ context.Context, businessID, id int64, balance decimal.Decimal) error {
	f.recs[id].ReconciledBalance = balance
	return nil
}

func (f *fakeRepo) SetCompleted(_ context.Context, businessID, id int64, by *int64, at *time.Time, completed bool) error {
	r := f.recs[id]
	r.IsCompleted = completed
	r.CompletedBy = by
	r.CompletedAt = at
	return nil
}

func (f *fakeRepo) GetEntry(_ context.Context, entryID int64) (EntryRef, error) {
	e, ok := f.entries[entryID]
	if !ok {
		return EntryRef{}, shared.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) InsertItem(_ context.Context, reconciliationID, entryID int64) error {
	for id, linked := range f.items {
		for _, existing := range linked {
			if existing == entryID && id != reconciliationID {
				return shared.ErrAlreadyReconciled
			}
		}
	}
	for _, existing := range f.items[reconciliationID] {
		if existing == entryID {
			return shared.ErrAlreadyReconciled
		}
	}
	f.items[reconciliationID] = append(f.items[reconciliationID], entryID)
	return nil
}

func (f *fakeRepo) DeleteItem(_ context.Context, reconciliationID, entryID int64) error {
	linked := f.items[reconciliationID]
	for i, existing := range linked {
		if existing == entryID {
			f.items[reconciliationID] = append(linked[:i], linked[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) SumItems(_ context.Context, reconciliationID int64) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, entryID := range f.items[reconciliationID] {
		e := f.entries[entryID]
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit, nil
}

func (f *fakeRepo) GetAccount(_ context.Context, businessID, id int64) (coa.LedgerAccount, error) {
	a, ok := f.accounts[id]
	if !ok || a.BusinessID != businessID {
		return coa.LedgerAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) AccountBalance(_ context.Context, businessID, accountID int64, _ ledger.BalanceQuery) (ledger.Balance, error) {
	signed := f.balances[accountID]
	b := ledger.Balance{Amount: signed, Type: coa.BalanceDebit}
	if signed.IsNegative() {
		b = ledger.Balance{Amount: signed.Neg(), Type: coa.BalanceCredit}
	}
	return b, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedRepo() *fakeRepo {
	f := newFakeRepo()
	f.accounts[10] = coa.LedgerAccount{
		ID: 10, BusinessID: 1, Name: "HDFC Current Account",
		OpeningBalance: dec("1000"), OpeningBalanceType: coa.BalanceDebit,
		IsBankAccount: true, IsActive: true,
	}
	f.accounts[20] = coa.LedgerAccount{
		ID: 20, BusinessID: 1, Name: "Sales", IsActive: true,
	}
	f.balances[10] = dec("5000")
	f.entries[100] = EntryRef{ID: 100, BusinessID: 1, LedgerAccountID: 10, Date: day(2026, time.April, 5), DebitAmount: dec("4500"), CreditAmount: decimal.Zero}
	f.entries[101] = EntryRef{ID: 101, BusinessID: 1, LedgerAccountID: 10, Date: day(2026, time.April, 9), DebitAmount: decimal.Zero, CreditAmount: dec("500.01")}
	f.entries[102] = EntryRef{ID: 102, BusinessID: 1, LedgerAccountID: 10, Date: day(2026, time.April, 12), DebitAmount: decimal.Zero, CreditAmount: dec("0.01")}
	f.entries[200] = EntryRef{ID: 200, BusinessID: 1, LedgerAccountID: 20, Date: day(2026, time.April, 5), DebitAmount: decimal.Zero, CreditAmount: dec("4500")}
	f.entries[300] = EntryRef{ID: 300, BusinessID: 2, LedgerAccountID: 10, Date: day(2026, time.April, 5), DebitAmount: dec("250"), CreditAmount: decimal.Zero}
	return f
}

func newReconService(f *fakeRepo) *Service {
	svc := NewService(f, f, f, nil)
	svc.WithNow(func() time.Time { return day(2026, time.April, 30) })
	return svc
}

func create(t *testing.T, svc *Service, statement string) Reconciliation {
	t.Helper()
	rec, err := svc.Create(context.Background(), tenant, CreateInput{
		LedgerAccountID:  10,
		StatementDate:    day(2026, time.April, 30),
		StatementBalance: dec(statement),
	})
	require.NoError(t, err)
	return rec
}

func TestCreateSnapshotsAccountBalance(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)

	rec := create(t, svc, "5000.00")
	require.Equal(t, int64(10), rec.LedgerAccountID)
	require.True(t, rec.AccountBalance.Equal(dec("5000")))
	// No items yet: only the opening balance counts as reconciled.
	require.True(t, rec.ReconciledBalance.Equal(dec("1000")))
	require.False(t, rec.IsCompleted)
}

func TestCreateRejectsNonBankAccount(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)

	_, err := svc.Create(context.Background(), tenant, CreateInput{
		LedgerAccountID:  20,
		StatementDate:    day(2026, time.April, 30),
		StatementBalance: dec("100"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddItemRecomputesReconciledBalance(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	rec, err := svc.AddItem(context.Background(), tenant, rec.ID, 100)
	require.NoError(t, err)
	// opening 1000 + debit 4500
	require.True(t, rec.ReconciledBalance.Equal(dec("5500")))

	rec, err = svc.AddItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)
	// minus credit 500.01
	require.True(t, rec.ReconciledBalance.Equal(dec("4999.99")))
}

func TestAddItemRejectsForeignAccountEntry(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 200)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddItemRejectsAnotherBusinessesEntry(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	// Entry 300 exists but belongs to business 2.
	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 300)
	require.ErrorIs(t, err, shared.ErrCrossTenant)
	got, err := svc.Get(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.Empty(t, got.Items)
}

func TestEntryLinksToAtMostOneReconciliation(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	first := create(t, svc, "5000.00")
	second := create(t, svc, "6000.00")

	_, err := svc.AddItem(context.Background(), tenant, first.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), tenant, second.ID, 100)
	require.ErrorIs(t, err, shared.ErrAlreadyReconciled)
}

func TestCompleteWithinTolerance(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)

	// statement 5000.00 vs reconciled 4999.99: off by exactly the tolerance
	done, err := svc.Complete(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedBy)
	require.Equal(t, tenant.UserID, *done.CompletedBy)
	require.NotNil(t, done.CompletedAt)
}

func TestCompleteBeyondToleranceFails(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	for _, entryID := range []int64{100, 101, 102} {
		_, err := svc.AddItem(context.Background(), tenant, rec.ID, entryID)
		require.NoError(t, err)
	}

	// reconciled 4999.98, difference 0.02
	_, err := svc.Complete(context.Background(), tenant, rec.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	got, err := svc.Get(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.False(t, got.IsCompleted)
}

func TestCompletedReconciliationIsFrozen(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")
	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), tenant, rec.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 102)
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.RemoveItem(context.Background(), tenant, rec.ID, 100)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, svc.Delete(context.Background(), tenant, rec.ID), shared.ErrConflict)
}

func TestReopenClearsCompletion(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")
	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), tenant, rec.ID)
	require.NoError(t, err)

	reopened, err := svc.Reopen(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.False(t, reopened.IsCompleted)
	require.Nil(t, reopened.CompletedBy)
	require.Nil(t, reopened.CompletedAt)

	// mutable again
	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 102)
	require.NoError(t, err)
	_, err = svc.Reopen(context.Background(), tenant, rec.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRemoveItemRestoresBalance(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")
	_, err := svc.AddItem(context.Background(), tenant, rec.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)

	rec, err = svc.RemoveItem(context.Background(), tenant, rec.ID, 101)
	require.NoError(t, err)
	require.True(t, rec.ReconciledBalance.Equal(dec("5500")))
}

func TestCrossTenantReconciliationHidden(t *testing.T) {
	f := seedRepo()
	svc := newReconService(f)
	rec := create(t, svc, "5000.00")

	other := shared.Tenant{BusinessID: 2, UserID: 9}
	_, err := svc.Get(context.Background(), other, rec.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Complete(context.Background(), other, rec.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
