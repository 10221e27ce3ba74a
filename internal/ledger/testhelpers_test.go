package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// fakeLedger backs the service with in-memory accounts, groups, years and
// journal entries.
type fakeLedger struct {
	groups   map[int64]coa.AccountGroup
	accounts map[int64]coa.LedgerAccount
	years    map[int64]fiscal.FinancialYear
	entries  []Entry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		groups:   make(map[int64]coa.AccountGroup),
		accounts: make(map[int64]coa.LedgerAccount),
		years:    make(map[int64]fiscal.FinancialYear),
	}
}

func (f *fakeLedger) addGroup(id int64, name string, nature coa.Nature, gross bool) {
	f.groups[id] = coa.AccountGroup{ID: id, BusinessID: 1, Name: name, Nature: nature, AffectsGrossProfit: gross}
}

func (f *fakeLedger) addAccount(id, groupID int64, name string, opening decimal.Decimal, openingType coa.BalanceType) {
	f.accounts[id] = coa.LedgerAccount{
		ID: id, BusinessID: 1, AccountGroupID: groupID, Name: name,
		OpeningBalance: opening, OpeningBalanceType: openingType,
	}
}

func (f *fakeLedger) post(voucherID, accountID, yearID int64, date time.Time, debit, credit decimal.Decimal) {
	f.entries = append(f.entries, Entry{
		ID:              int64(len(f.entries) + 1),
		BusinessID:      1,
		VoucherID:       voucherID,
		LedgerAccountID: accountID,
		FinancialYearID: yearID,
		Date:            date,
		DebitAmount:     debit,
		CreditAmount:    credit,
	})
}

func (f *fakeLedger) match(e Entry, businessID int64, filter TotalsFilter) bool {
	if e.BusinessID != businessID {
		return false
	}
	if filter.YearID != nil && e.FinancialYearID != *filter.YearID {
		return false
	}
	if filter.From != nil && e.Date.Before(*filter.From) {
		return false
	}
	if filter.Until != nil {
		if filter.Inclusive {
			if e.Date.After(*filter.Until) {
				return false
			}
		} else if !e.Date.Before(*filter.Until) {
			return false
		}
	}
	return true
}

func (f *fakeLedger) AccountTotals(_ context.Context, businessID, accountID int64, filter TotalsFilter) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range f.entries {
		if e.LedgerAccountID != accountID || !f.match(e, businessID, filter) {
			continue
		}
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit, nil
}

func (f *fakeLedger) ListByAccount(_ context.Context, businessID, accountID int64, filter TotalsFilter) ([]Entry, error) {
	var out []Entry
	for _, e := range f.entries {
		if e.LedgerAccountID == accountID && f.match(e, businessID, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeLedger) VoucherTotals(_ context.Context, businessID, accountID int64, until time.Time) ([]VoucherTotal, error) {
	byVoucher := make(map[int64]*VoucherTotal)
	for _, e := range f.entries {
		if e.BusinessID != businessID || e.LedgerAccountID != accountID || e.Date.After(until) {
			continue
		}
		t, ok := byVoucher[e.VoucherID]
		if !ok {
			t = &VoucherTotal{VoucherID: e.VoucherID, Date: e.Date, Debit: decimal.Zero, Credit: decimal.Zero}
			byVoucher[e.VoucherID] = t
		}
		if e.Date.Before(t.Date) {
			t.Date = e.Date
		}
		t.Debit = t.Debit.Add(e.DebitAmount)
		t.Credit = t.Credit.Add(e.CreditAmount)
	}
	var out []VoucherTotal
	for _, t := range byVoucher {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].VoucherID < out[j].VoucherID
	})
	return out, nil
}

func (f *fakeLedger) TrialBalanceRows(ctx context.Context, businessID int64, asOf time.Time, yearID int64) ([]TrialRow, error) {
	var ids []int64
	for id := range f.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var rows []TrialRow
	for _, id := range ids {
		a := f.accounts[id]
		g := f.groups[a.AccountGroupID]
		debit, credit, _ := f.AccountTotals(ctx, businessID, id, TotalsFilter{Until: &asOf, Inclusive: true, YearID: &yearID})
		rows = append(rows, TrialRow{
			AccountID: a.ID, AccountCode: a.Code, AccountName: a.Name,
			GroupID: g.ID, GroupName: g.Name, Nature: g.Nature,
			OpeningBalance: a.OpeningBalance, OpeningBalanceType: a.OpeningBalanceType,
			Debit: debit, Credit: credit,
		})
	}
	return rows, nil
}

func (f *fakeLedger) NatureTotals(_ context.Context, businessID int64, nature coa.Nature, filter TotalsFilter, grossOnly bool) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range f.entries {
		a := f.accounts[e.LedgerAccountID]
		g := f.groups[a.AccountGroupID]
		if g.Nature != nature || !f.match(e, businessID, filter) {
			continue
		}
		if grossOnly && !g.AffectsGrossProfit {
			continue
		}
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit, nil
}

func (f *fakeLedger) MonthlyNatureTotals(_ context.Context, businessID, yearID int64, natures []coa.Nature) ([]MonthRow, error) {
	type key struct {
		month  time.Time
		nature coa.Nature
	}
	wanted := make(map[coa.Nature]bool)
	for _, n := range natures {
		wanted[n] = true
	}
	totals := make(map[key]*MonthRow)
	for _, e := range f.entries {
		if e.BusinessID != businessID || e.FinancialYearID != yearID {
			continue
		}
		g := f.groups[f.accounts[e.LedgerAccountID].AccountGroupID]
		if !wanted[g.Nature] {
			continue
		}
		month := time.Date(e.Date.Year(), e.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		k := key{month: month, nature: g.Nature}
		row, ok := totals[k]
		if !ok {
			row = &MonthRow{Month: month, Nature: g.Nature, Debit: decimal.Zero, Credit: decimal.Zero}
			totals[k] = row
		}
		row.Debit = row.Debit.Add(e.DebitAmount)
		row.Credit = row.Credit.Add(e.CreditAmount)
	}
	var out []MonthRow
	for _, row := range totals {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (f *fakeLedger) GetAccount(_ context.Context, businessID, id int64) (coa.LedgerAccount, error) {
	a, ok := f.accounts[id]
	if !ok || a.BusinessID != businessID {
		return coa.LedgerAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeLedger) GetGroup(_ context.Context, businessID, id int64) (coa.AccountGroup, error) {
	g, ok := f.groups[id]
	if !ok || g.BusinessID != businessID {
		return coa.AccountGroup{}, shared.ErrNotFound
	}
	return g, nil
}

func (f *fakeLedger) ListAccounts(_ context.Context, businessID int64) ([]coa.LedgerAccount, error) {
	var out []coa.LedgerAccount
	for _, a := range f.accounts {
		if a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLedger) Get(_ context.Context, businessID, id int64) (fiscal.FinancialYear, error) {
	y, ok := f.years[id]
	if !ok || y.BusinessID != businessID {
		return fiscal.FinancialYear{}, shared.ErrNotFound
	}
	return y, nil
}

func newTestService(f *fakeLedger) *Service {
	return NewService(f, f, f)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
