package party

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

type fakeRepo struct {
	parties  map[int64]Party
	accounts map[int64]coa.LedgerAccount
	groups   map[string]int64
	entries  map[int64]int // account id -> journal entry count
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		parties:  make(map[int64]Party),
		accounts: make(map[int64]coa.LedgerAccount),
		groups:   map[string]int64{receivableGroup: 1, payableGroup: 2},
		entries:  make(map[int64]int),
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) List(_ context.Context, businessID int64) ([]Party, error) {
	var out []Party
	for _, p := range f.parties {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, businessID, id int64) (Party, error) {
	p, ok := f.parties[id]
	if !ok || p.BusinessID != businessID {
		return Party{}, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, businessID, id int64) (Party, error) {
	return f.Get(ctx, businessID, id)
}

func (f *fakeRepo) Insert(_ context.Context, p Party) (Party, error) {
	p.ID = f.id()
	f.parties[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Update(_ context.Context, p Party) error {
	if _, ok := f.parties[p.ID]; !ok {
		return shared.ErrNotFound
	}
	f.parties[p.ID] = p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, businessID, id int64) error {
	p, ok := f.parties[id]
	if !ok || p.BusinessID != businessID {
		return shared.ErrNotFound
	}
	delete(f.parties, id)
	return nil
}

func (f *fakeRepo) FindGroupIDByName(_ context.Context, _ int64, name string) (int64, error) {
	id, ok := f.groups[name]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return id, nil
}

func (f *fakeRepo) InsertAccount(_ context.Context, a coa.LedgerAccount) (coa.LedgerAccount, error) {
	a.ID = f.id()
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeRepo) RenameAccount(_ context.Context, businessID, accountID int64, name string) error {
	a, ok := f.accounts[accountID]
	if !ok || a.BusinessID != businessID {
		return shared.ErrNotFound
	}
	a.Name = name
	f.accounts[accountID] = a
	return nil
}

func (f *fakeRepo) DeleteAccount(_ context.Context, businessID, accountID int64) error {
	a, ok := f.accounts[accountID]
	if !ok || a.BusinessID != businessID {
		return shared.ErrNotFound
	}
	delete(f.accounts, accountID)
	return nil
}

func (f *fakeRepo) CountAccountEntries(_ context.Context, _, accountID int64) (int, error) {
	return f.entries[accountID], nil
}

type fakeBalances struct {
	balance ledger.Balance
	aging   ledger.Aging
	lastAcc int64
	lastPos bool
}

func (f *fakeBalances) AccountBalance(_ context.Context, _, accountID int64, _ ledger.BalanceQuery) (ledger.Balance, error) {
	f.lastAcc = accountID
	return f.balance, nil
}

func (f *fakeBalances) AccountAging(_ context.Context, _, accountID int64, debitPositive bool, _ time.Time, _ []int) (ledger.Aging, error) {
	f.lastAcc = accountID
	f.lastPos = debitPositive
	return f.aging, nil
}

var tenant = shared.Tenant{BusinessID: 1, UserID: 3}

func customerInput() Input {
	return Input{Name: "Acme Traders", Type: TypeCustomer, IsActive: true}
}

func TestCreateProvisionsBackingAccount(t *testing.T) {
	f := newFakeRepo()
	svc := NewService(f, &fakeBalances{}, nil)

	created, err := svc.Create(context.Background(), tenant, customerInput())
	require.NoError(t, err)

	account, ok := f.accounts[created.LedgerAccountID]
	require.True(t, ok)
	require.Equal(t, "Acme Traders", account.Name)
	require.Equal(t, f.groups[receivableGroup], account.AccountGroupID)
	require.Equal(t, coa.BalanceDebit, account.OpeningBalanceType)

	supplier, err := svc.Create(context.Background(), tenant, Input{Name: "Supply Co", Type: TypeSupplier, IsActive: true})
	require.NoError(t, err)
	require.Equal(t, f.groups[payableGroup], f.accounts[supplier.LedgerAccountID].AccountGroupID)
	require.Equal(t, coa.BalanceCredit, f.accounts[supplier.LedgerAccountID].OpeningBalanceType)
}

func TestCreateWithoutBootstrapFails(t *testing.T) {
	f := newFakeRepo()
	f.groups = map[string]int64{}
	svc := NewService(f, &fakeBalances{}, nil)

	_, err := svc.Create(context.Background(), tenant, customerInput())
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.parties)
	require.Empty(t, f.accounts)
}

func TestUpdateRenamesAccountAndGuardsSideSwitch(t *testing.T) {
	f := newFakeRepo()
	svc := NewService(f, &fakeBalances{}, nil)

	created, err := svc.Create(context.Background(), tenant, customerInput())
	require.NoError(t, err)

	input := customerInput()
	input.Name = "Acme Traders Ltd"
	updated, err := svc.Update(context.Background(), tenant, created.ID, input)
	require.NoError(t, err)
	require.Equal(t, "Acme Traders Ltd", f.accounts[updated.LedgerAccountID].Name)

	// Switching sides is fine while the account has no entries.
	input.Type = TypeSupplier
	_, err = svc.Update(context.Background(), tenant, created.ID, input)
	require.NoError(t, err)

	// With entries the switch is refused.
	f.entries[created.LedgerAccountID] = 4
	input.Type = TypeCustomer
	_, err = svc.Update(context.Background(), tenant, created.ID, input)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteGuardedByJournalEntries(t *testing.T) {
	f := newFakeRepo()
	svc := NewService(f, &fakeBalances{}, nil)

	created, err := svc.Create(context.Background(), tenant, customerInput())
	require.NoError(t, err)

	f.entries[created.LedgerAccountID] = 2
	require.ErrorIs(t, svc.Delete(context.Background(), tenant, created.ID), shared.ErrConflict)

	f.entries[created.LedgerAccountID] = 0
	require.NoError(t, svc.Delete(context.Background(), tenant, created.ID))
	require.Empty(t, f.parties)
	require.Empty(t, f.accounts)
}

func TestOutstandingAndAgingUseBackingAccount(t *testing.T) {
	f := newFakeRepo()
	balances := &fakeBalances{
		balance: ledger.Balance{Amount: decimal.RequireFromString("800"), Type: coa.BalanceDebit},
	}
	svc := NewService(f, balances, nil)

	created, err := svc.Create(context.Background(), tenant, customerInput())
	require.NoError(t, err)

	got, err := svc.Outstanding(context.Background(), tenant, created.ID, nil)
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(decimal.RequireFromString("800")))
	require.Equal(t, created.LedgerAccountID, balances.lastAcc)

	_, err = svc.Aging(context.Background(), tenant, created.ID, time.Now(), nil)
	require.NoError(t, err)
	require.True(t, balances.lastPos)
}

func TestCrossTenantPartyHidden(t *testing.T) {
	f := newFakeRepo()
	svc := NewService(f, &fakeBalances{}, nil)

	created, err := svc.Create(context.Background(), tenant, customerInput())
	require.NoError(t, err)

	other := shared.Tenant{BusinessID: 9, UserID: 1}
	_, err = svc.Get(context.Background(), other, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
