package coa

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

var tenant = shared.Tenant{BusinessID: 1, UserID: 7}

type fakeRepo struct {
	groups   map[int64]*AccountGroup
	accounts map[int64]*LedgerAccount
	entries  map[int64]int // account -> journal entry count
	parties  map[int64]bool
	nextID   int64

	natureCascades [][]int64 // ids passed to each UpdateNature call
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups:   map[int64]*AccountGroup{},
		accounts: map[int64]*LedgerAccount{},
		entries:  map[int64]int{},
		parties:  map[int64]bool{},
		nextID:   1,
	}
}

func (f *fakeRepo) addGroup(g AccountGroup) AccountGroup {
	g.ID = f.nextID
	f.nextID++
	if g.BusinessID == 0 {
		g.BusinessID = tenant.BusinessID
	}
	f.groups[g.ID] = &g
	return g
}

func (f *fakeRepo) ListGroups(_ context.Context, businessID int64) ([]AccountGroup, error) {
	var out []AccountGroup
	for _, g := range f.groups {
		if g.BusinessID == businessID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetGroup(_ context.Context, businessID, id int64) (AccountGroup, error) {
	g, ok := f.groups[id]
	if !ok || g.BusinessID != businessID {
		return AccountGroup{}, shared.ErrNotFound
	}
	return *g, nil
}

func (f *fakeRepo) ListAccounts(_ context.Context, businessID int64) ([]LedgerAccount, error) {
	var out []LedgerAccount
	for _, a := range f.accounts {
		if a.BusinessID == businessID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetAccount(_ context.Context, businessID, id int64) (LedgerAccount, error) {
	a, ok := f.accounts[id]
	if !ok || a.BusinessID != businessID {
		return LedgerAccount{}, shared.ErrNotFound
	}
	return *a, nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) InsertGroup(_ context.Context, g AccountGroup) (AccountGroup, error) {
	g.ID = f.nextID
	f.nextID++
	f.groups[g.ID] = &g
	return g, nil
}

func (f *fakeRepo) UpdateGroup(_ context.Context, g AccountGroup) error {
	stored, ok := f.groups[g.ID]
	if !ok {
		return shared.ErrNotFound
	}
	*stored = g
	return nil
}

func (f *fakeRepo) UpdateNature(_ context.Context, businessID int64, ids []int64, nature Nature) error {
	f.natureCascades = append(f.natureCascades, ids)
	for _, id := range ids {
		g, ok := f.groups[id]
		if !ok || g.BusinessID != businessID {
			return shared.ErrNotFound
		}
		g.Nature = nature
	}
	return nil
}

func (f *fakeRepo) DeleteGroup(_ context.Context, businessID, id int64) error {
	delete(f.groups, id)
	return nil
}

func (f *fakeRepo) CountChildren(_ context.Context, businessID, id int64) (int, error) {
	count := 0
	for _, g := range f.groups {
		if g.BusinessID == businessID && g.ParentID != nil && *g.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CountGroupAccounts(_ context.Context, businessID, groupID int64) (int, error) {
	count := 0
	for _, a := range f.accounts {
		if a.BusinessID == businessID && a.AccountGroupID == groupID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) InsertAccount(_ context.Context, a LedgerAccount) (LedgerAccount, error) {
	a.ID = f.nextID
	f.nextID++
	f.accounts[a.ID] = &a
	return a, nil
}

func (f *fakeRepo) UpdateAccount(_ context.Context, a LedgerAccount) error {
	stored, ok := f.accounts[a.ID]
	if !ok {
		return shared.ErrNotFound
	}
	*stored = a
	return nil
}

func (f *fakeRepo) DeleteAccount(_ context.Context, businessID, id int64) error {
	delete(f.accounts, id)
	return nil
}

func (f *fakeRepo) CountAccountEntries(_ context.Context, businessID, accountID int64) (int, error) {
	return f.entries[accountID], nil
}

func (f *fakeRepo) AccountHasParty(_ context.Context, businessID, accountID int64) (bool, error) {
	return f.parties[accountID], nil
}

func (f *fakeRepo) AccountCodeExists(_ context.Context, businessID int64, code string, excludeID int64) (bool, error) {
	for _, a := range f.accounts {
		if a.BusinessID != businessID || a.ID == excludeID {
			continue
		}
		if a.Code != nil && *a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// seedTree builds assets -> current assets -> bank, plus a sibling income root.
func seedTree(repo *fakeRepo) (root, mid, leaf, income AccountGroup) {
	root = repo.addGroup(AccountGroup{Name: "Assets", Nature: NatureAssets, Sequence: 1})
	mid = repo.addGroup(AccountGroup{Name: "Current Assets", Nature: NatureAssets, ParentID: &root.ID, Sequence: 1})
	leaf = repo.addGroup(AccountGroup{Name: "Bank Accounts", Nature: NatureAssets, ParentID: &mid.ID, Sequence: 1})
	income = repo.addGroup(AccountGroup{Name: "Income", Nature: NatureIncome, Sequence: 2})
	return root, mid, leaf, income
}

func TestCreateGroupRejectsNatureMismatchWithParent(t *testing.T) {
	repo := newFakeRepo()
	root, _, _, _ := seedTree(repo)
	svc := NewService(repo, nil)

	_, err := svc.CreateGroup(context.Background(), tenant, CreateGroupInput{
		ParentID: &root.ID,
		Name:     "Sales",
		Nature:   NatureIncome,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.CreateGroup(context.Background(), tenant, CreateGroupInput{
		ParentID: &root.ID,
		Name:     "Fixed Assets",
		Nature:   NatureAssets,
		Sequence: 2,
	})
	require.NoError(t, err)
	require.Equal(t, root.ID, *created.ParentID)
}

func TestChangeNatureCascadesToEveryDescendant(t *testing.T) {
	repo := newFakeRepo()
	root, mid, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	err := svc.ChangeNature(context.Background(), tenant, root.ID, NatureLiabilities)
	require.NoError(t, err)

	// One cascade statement carrying the whole subtree, not one per group.
	require.Len(t, repo.natureCascades, 1)
	require.ElementsMatch(t, []int64{root.ID, mid.ID, leaf.ID}, repo.natureCascades[0])
	for _, id := range []int64{root.ID, mid.ID, leaf.ID} {
		require.Equal(t, NatureLiabilities, repo.groups[id].Nature)
	}
}

func TestChangeNatureSameValueIsNoop(t *testing.T) {
	repo := newFakeRepo()
	root, _, _, _ := seedTree(repo)
	svc := NewService(repo, nil)

	require.NoError(t, svc.ChangeNature(context.Background(), tenant, root.ID, NatureAssets))
	require.Empty(t, repo.natureCascades)
}

func TestUpdateGroupRefusesCycle(t *testing.T) {
	repo := newFakeRepo()
	root, _, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	// Moving the root under its own grandchild would orphan the subtree.
	_, err := svc.UpdateGroup(context.Background(), tenant, root.ID, UpdateGroupInput{
		ParentID: &leaf.ID,
		Name:     root.Name,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateGroup(context.Background(), tenant, root.ID, UpdateGroupInput{
		ParentID: &root.ID,
		Name:     root.Name,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateGroupReparentsWithinNature(t *testing.T) {
	repo := newFakeRepo()
	root, mid, leaf, income := seedTree(repo)
	svc := NewService(repo, nil)

	moved, err := svc.UpdateGroup(context.Background(), tenant, leaf.ID, UpdateGroupInput{
		ParentID: &root.ID,
		Name:     "Bank Accounts",
		Sequence: 3,
	})
	require.NoError(t, err)
	require.Equal(t, root.ID, *moved.ParentID)

	_, err = svc.UpdateGroup(context.Background(), tenant, mid.ID, UpdateGroupInput{
		ParentID: &income.ID,
		Name:     mid.Name,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSystemGroupsAreImmutable(t *testing.T) {
	repo := newFakeRepo()
	system := repo.addGroup(AccountGroup{Name: "Equity", Nature: NatureEquity, IsSystem: true})
	svc := NewService(repo, nil)

	_, err := svc.UpdateGroup(context.Background(), tenant, system.ID, UpdateGroupInput{Name: "Renamed"})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.ChangeNature(context.Background(), tenant, system.ID, NatureAssets)
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.DeleteGroup(context.Background(), tenant, system.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteGroupBlockedByChildrenAndAccounts(t *testing.T) {
	repo := newFakeRepo()
	root, _, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	err := svc.DeleteGroup(context.Background(), tenant, root.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Main Bank",
		OpeningBalanceType: BalanceDebit,
	})
	require.NoError(t, err)
	err = svc.DeleteGroup(context.Background(), tenant, leaf.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateAccountEnforcesCodeUniqueness(t *testing.T) {
	repo := newFakeRepo()
	_, _, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	code := "1101"
	first, err := svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Code:               &code,
		Name:               "Main Bank",
		OpeningBalance:     decimal.NewFromInt(500),
		OpeningBalanceType: BalanceDebit,
		IsBankAccount:      true,
	})
	require.NoError(t, err)
	require.True(t, first.IsActive)

	_, err = svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Code:               &code,
		Name:               "Second Bank",
		OpeningBalanceType: BalanceDebit,
	})
	require.ErrorIs(t, err, shared.ErrConflict)

	// The holder can keep its own code on update.
	_, err = svc.UpdateAccount(context.Background(), tenant, first.ID, UpdateAccountInput{
		AccountGroupID:     leaf.ID,
		Code:               &code,
		Name:               "Main Bank",
		OpeningBalance:     first.OpeningBalance,
		OpeningBalanceType: BalanceDebit,
		IsBankAccount:      true,
		IsActive:           true,
	})
	require.NoError(t, err)
}

func TestCreateAccountRejectsNegativeOpening(t *testing.T) {
	repo := newFakeRepo()
	_, _, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	_, err := svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Broken",
		OpeningBalance:     decimal.NewFromInt(-1),
		OpeningBalanceType: BalanceDebit,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Broken",
		OpeningBalanceType: BalanceType("sideways"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteAccountBlockedByEntriesOrPartyLink(t *testing.T) {
	repo := newFakeRepo()
	_, _, leaf, _ := seedTree(repo)
	svc := NewService(repo, nil)

	withEntries, err := svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Posted",
		OpeningBalanceType: BalanceDebit,
	})
	require.NoError(t, err)
	repo.entries[withEntries.ID] = 3
	require.ErrorIs(t, svc.DeleteAccount(context.Background(), tenant, withEntries.ID), shared.ErrConflict)

	linked, err := svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Party Control",
		OpeningBalanceType: BalanceCredit,
	})
	require.NoError(t, err)
	repo.parties[linked.ID] = true
	require.ErrorIs(t, svc.DeleteAccount(context.Background(), tenant, linked.ID), shared.ErrConflict)

	clean, err := svc.CreateAccount(context.Background(), tenant, CreateAccountInput{
		AccountGroupID:     leaf.ID,
		Name:               "Scratch",
		OpeningBalanceType: BalanceDebit,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(context.Background(), tenant, clean.ID))
	_, err = svc.GetAccount(context.Background(), tenant, clean.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFlattenHierarchyPreOrderWithDepth(t *testing.T) {
	repo := newFakeRepo()
	root, mid, leaf, income := seedTree(repo)
	svc := NewService(repo, nil)

	flat, err := svc.FlattenHierarchy(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, flat, 4)

	require.Equal(t, root.ID, flat[0].ID)
	require.Equal(t, 0, flat[0].Depth)
	require.Equal(t, mid.ID, flat[1].ID)
	require.Equal(t, 1, flat[1].Depth)
	require.Equal(t, leaf.ID, flat[2].ID)
	require.Equal(t, 2, flat[2].Depth)
	require.Equal(t, income.ID, flat[3].ID)
	require.Equal(t, 0, flat[3].Depth)
}

func TestBootstrapDefaultsSeedsSystemChart(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	require.NoError(t, svc.BootstrapDefaults(context.Background(), tenant))

	groups, err := repo.ListGroups(context.Background(), tenant.BusinessID)
	require.NoError(t, err)
	require.NotEmpty(t, groups)
	natures := map[Nature]bool{}
	for _, g := range groups {
		require.True(t, g.IsSystem)
		natures[g.Nature] = true
	}
	for _, n := range []Nature{NatureAssets, NatureLiabilities, NatureEquity, NatureIncome, NatureExpense} {
		require.True(t, natures[n], "missing %s root", n)
	}

	accounts, err := repo.ListAccounts(context.Background(), tenant.BusinessID)
	require.NoError(t, err)
	require.NotEmpty(t, accounts)
	for _, a := range accounts {
		require.True(t, a.IsSystem)
	}
}
