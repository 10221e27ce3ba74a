package recurring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/voucher"
)

var tenant = shared.Tenant{BusinessID: 1, UserID: 7}

type fakeRepo struct {
	recs   map[int64]*Transaction
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: map[int64]*Transaction{}, nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, businessID int64, activeOnly bool) ([]Transaction, error) {
	var out []Transaction
	for _, rec := range f.recs {
		if rec.BusinessID != businessID {
			continue
		}
		if activeOnly && !rec.IsActive {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, businessID, id int64) (Transaction, error) {
	rec, ok := f.recs[id]
	if !ok || rec.BusinessID != businessID {
		return Transaction{}, shared.ErrNotFound
	}
	return *rec, nil
}

func (f *fakeRepo) ActiveBusinessIDs(_ context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, rec := range f.recs {
		if rec.IsActive && !seen[rec.BusinessID] {
			seen[rec.BusinessID] = true
			out = append(out, rec.BusinessID)
		}
	}
	return out, nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, businessID, id int64) (Transaction, error) {
	return f.Get(ctx, businessID, id)
}

func (f *fakeRepo) Insert(_ context.Context, rec Transaction) (Transaction, error) {
	rec.ID = f.nextID
	f.nextID++
	f.recs[rec.ID] = &rec
	return rec, nil
}

func (f *fakeRepo) Update(_ context.Context, rec Transaction) error {
	stored, ok := f.recs[rec.ID]
	if !ok {
		return shared.ErrNotFound
	}
	template := stored.Template
	*stored = rec
	stored.Template = template
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, businessID, id int64) error {
	delete(f.recs, id)
	return nil
}

func (f *fakeRepo) InsertTemplate(_ context.Context, recurringID int64, items []TemplateItem) ([]TemplateItem, error) {
	out := make([]TemplateItem, 0, len(items))
	for i, it := range items {
		it.ID = f.nextID
		f.nextID++
		it.RecurringID = recurringID
		it.Sequence = i
		out = append(out, it)
	}
	f.recs[recurringID].Template = out
	return out, nil
}

func (f *fakeRepo) DeleteTemplate(_ context.Context, recurringID int64) error {
	if rec, ok := f.recs[recurringID]; ok {
		rec.Template = nil
	}
	return nil
}

func (f *fakeRepo) MarkGenerated(_ context.Context, businessID, id int64, due time.Time) error {
	rec, ok := f.recs[id]
	if !ok || rec.BusinessID != businessID {
		return shared.ErrNotFound
	}
	if rec.LastGeneratedDate != nil && !rec.LastGeneratedDate.Before(due) {
		return shared.ErrConflict
	}
	rec.OccurrencesGenerated++
	d := due
	rec.LastGeneratedDate = &d
	return nil
}

func (f *fakeRepo) ReleaseGenerated(_ context.Context, businessID, id int64, due time.Time, prev *time.Time) error {
	rec, ok := f.recs[id]
	if !ok || rec.BusinessID != businessID {
		return shared.ErrNotFound
	}
	if rec.LastGeneratedDate == nil || !rec.LastGeneratedDate.Equal(due) {
		return nil
	}
	rec.OccurrencesGenerated--
	rec.LastGeneratedDate = prev
	return nil
}

// fakeVouchers records created vouchers and can refuse specific accounts,
// standing in for the voucher engine's inactive-account validation.
type fakeVouchers struct {
	created          []voucher.Input
	inactiveAccounts map[int64]bool
	nextID           int64
}

func (f *fakeVouchers) Create(_ context.Context, _ shared.Tenant, input voucher.Input) (voucher.Voucher, error) {
	for _, it := range input.Items {
		if f.inactiveAccounts[it.LedgerAccountID] {
			return voucher.Voucher{}, fmt.Errorf("%w: account is inactive", shared.ErrValidation)
		}
	}
	f.created = append(f.created, input)
	f.nextID++
	return voucher.Voucher{ID: f.nextID, VoucherNumber: fmt.Sprintf("JV-%d", f.nextID), Date: input.Date, IsPosted: true}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func balancedTemplate() []TemplateItem {
	return []TemplateItem{
		{LedgerAccountID: 10, DebitAmount: dec("500")},
		{LedgerAccountID: 20, CreditAmount: dec("500")},
	}
}

func newRecurringService(f *fakeRepo, v *fakeVouchers, today time.Time) *Service {
	svc := NewService(f, v, nil, nil)
	svc.WithNow(func() time.Time { return today })
	return svc
}

func createSchedule(t *testing.T, svc *Service, input Input) Transaction {
	t.Helper()
	rec, err := svc.Create(context.Background(), tenant, input)
	require.NoError(t, err)
	return rec
}

func monthlyRent() Input {
	return Input{
		VoucherTypeID: 101,
		Name:          "Office Rent",
		Frequency:     FrequencyMonthly,
		DayOfMonth:    intp(1),
		StartDate:     day(2026, time.January, 1),
		IsActive:      true,
		Template:      balancedTemplate(),
	}
}

func TestCreateRejectsImbalancedTemplate(t *testing.T) {
	svc := newRecurringService(newFakeRepo(), &fakeVouchers{}, day(2026, time.March, 1))

	input := monthlyRent()
	input.Template[1].CreditAmount = dec("499")
	_, err := svc.Create(context.Background(), tenant, input)
	require.ErrorIs(t, err, shared.ErrImbalanced)
}

func TestGeneratePostsVoucherAtDueDate(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	generated, err := svc.Generate(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.True(t, generated.IsPosted)
	require.Len(t, v.created, 1)
	require.Equal(t, day(2026, time.March, 1), v.created[0].Date)
	require.True(t, v.created[0].Post)
	require.Len(t, v.created[0].Items, 2)
	require.Equal(t, 1, f.recs[rec.ID].OccurrencesGenerated)
	require.NotNil(t, f.recs[rec.ID].LastGeneratedDate)
	require.Equal(t, day(2026, time.March, 1), *f.recs[rec.ID].LastGeneratedDate)
}

func TestGenerateFailureDoesNotConsumeOccurrence(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{inactiveAccounts: map[int64]bool{20: true}}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	_, err := svc.Generate(context.Background(), tenant, rec.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, v.created)
	require.Equal(t, 0, f.recs[rec.ID].OccurrencesGenerated)
	require.Nil(t, f.recs[rec.ID].LastGeneratedDate)
}

func TestGenerateStopsWhenExhausted(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	input := monthlyRent()
	input.Occurrences = intp(1)
	rec := createSchedule(t, svc, input)

	_, err := svc.Generate(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), tenant, rec.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, v.created, 1)
}

func TestProcessDueContinuesPastFailures(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{inactiveAccounts: map[int64]bool{30: true}}
	svc := newRecurringService(f, v, day(2026, time.March, 1))

	createSchedule(t, svc, monthlyRent())

	broken := monthlyRent()
	broken.Name = "Broken Schedule"
	broken.Template = []TemplateItem{
		{LedgerAccountID: 30, DebitAmount: dec("100")},
		{LedgerAccountID: 20, CreditAmount: dec("100")},
	}
	createSchedule(t, svc, broken)

	notDue := monthlyRent()
	notDue.Name = "Quarterly Insurance"
	notDue.Frequency = FrequencyQuarterly
	notDue.DayOfMonth = intp(15)
	createSchedule(t, svc, notDue)

	count, err := svc.ProcessDue(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, v.created, 1)
}

func TestProcessDueSecondRunSameDayGeneratesNothing(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	count, err := svc.ProcessDue(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// A retried or manually triggered batch on the same day must not
	// post the schedule again.
	count, err = svc.ProcessDue(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Len(t, v.created, 1)
	require.Equal(t, 1, f.recs[rec.ID].OccurrencesGenerated)

	// The next calendar occurrence is still generated.
	svc.WithNow(func() time.Time { return day(2026, time.April, 1) })
	count, err = svc.ProcessDue(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, v.created, 2)
	require.Equal(t, day(2026, time.April, 1), v.created[1].Date)
}

func TestGenerateTwiceSameDayAdvancesToNextOccurrence(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	first, err := svc.Generate(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.Equal(t, day(2026, time.March, 1), first.Date)

	// An explicit second generation moves to the next due date instead of
	// duplicating the one already posted.
	second, err := svc.Generate(context.Background(), tenant, rec.ID)
	require.NoError(t, err)
	require.Equal(t, day(2026, time.April, 1), second.Date)
	require.Equal(t, 2, f.recs[rec.ID].OccurrencesGenerated)
}

func TestUpdateReplacesTemplate(t *testing.T) {
	f := newFakeRepo()
	v := &fakeVouchers{}
	svc := newRecurringService(f, v, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	input := monthlyRent()
	input.Template = []TemplateItem{
		{LedgerAccountID: 10, DebitAmount: dec("750")},
		{LedgerAccountID: 20, CreditAmount: dec("750")},
	}
	updated, err := svc.Update(context.Background(), tenant, rec.ID, input)
	require.NoError(t, err)
	require.Len(t, updated.Template, 2)
	require.True(t, updated.Template[0].DebitAmount.Equal(dec("750")))
}

func TestCrossTenantScheduleHidden(t *testing.T) {
	f := newFakeRepo()
	svc := newRecurringService(f, &fakeVouchers{}, day(2026, time.March, 1))
	rec := createSchedule(t, svc, monthlyRent())

	other := shared.Tenant{BusinessID: 2, UserID: 9}
	_, err := svc.Generate(context.Background(), other, rec.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
