package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
)

// TrialBalanceAccount is one account row of a trial balance.
type TrialBalanceAccount struct {
	AccountID int64
	Code      *string
	Name      string
	Opening   Balance
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Closing   Balance
}

// TrialBalanceGroup aggregates accounts of one account group.
type TrialBalanceGroup struct {
	GroupID  int64
	Name     string
	Nature   coa.Nature
	Accounts []TrialBalanceAccount
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// TrialBalance lists every account's totals as of a date. When every account
// is included the grand debit and credit totals are equal, because each
// posted voucher is balanced at source.
type TrialBalance struct {
	AsOf        time.Time
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// TrialBalanceOptions tunes the report shape.
type TrialBalanceOptions struct {
	SkipZero bool
}

// TrialBalance builds the grouped trial balance for a business and year.
func (s *Service) TrialBalance(ctx context.Context, businessID int64, asOf time.Time, yearID int64, opts TrialBalanceOptions) (TrialBalance, error) {
	rows, err := s.repo.TrialBalanceRows(ctx, businessID, asOf, yearID)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, rows, opts), nil
}

// BuildTrialBalance converts per-account aggregates into the grouped report.
func BuildTrialBalance(asOf time.Time, rows []TrialRow, opts TrialBalanceOptions) TrialBalance {
	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	groups := make(map[int64]int)
	for _, row := range rows {
		opening := coa.LedgerAccount{OpeningBalance: row.OpeningBalance, OpeningBalanceType: row.OpeningBalanceType}.SignedOpening()
		closing := Resolve(row.Nature, opening, row.Debit, row.Credit)
		if opts.SkipZero && row.Debit.IsZero() && row.Credit.IsZero() && opening.IsZero() {
			continue
		}
		account := TrialBalanceAccount{
			AccountID: row.AccountID,
			Code:      row.AccountCode,
			Name:      row.AccountName,
			Opening:   Resolve(row.Nature, opening, decimal.Zero, decimal.Zero),
			Debit:     row.Debit,
			Credit:    row.Credit,
			Closing:   closing,
		}
		idx, ok := groups[row.GroupID]
		if !ok {
			tb.Groups = append(tb.Groups, TrialBalanceGroup{
				GroupID: row.GroupID,
				Name:    row.GroupName,
				Nature:  row.Nature,
				Debit:   decimal.Zero,
				Credit:  decimal.Zero,
			})
			idx = len(tb.Groups) - 1
			groups[row.GroupID] = idx
		}
		grp := &tb.Groups[idx]
		grp.Accounts = append(grp.Accounts, account)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)

		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		if opening.IsPositive() {
			tb.TotalDebit = tb.TotalDebit.Add(opening)
		} else if opening.IsNegative() {
			tb.TotalCredit = tb.TotalCredit.Add(opening.Neg())
		}
	}
	return tb
}

// ProfitAndLoss is the income statement for a date window.
type ProfitAndLoss struct {
	From        *time.Time
	To          time.Time
	GrossIncome decimal.Decimal
	GrossCost   decimal.Decimal
	GrossProfit decimal.Decimal
	Income      decimal.Decimal
	Expense     decimal.Decimal
	NetProfit   decimal.Decimal
}

// ProfitAndLoss aggregates income and expense natures over the window.
func (s *Service) ProfitAndLoss(ctx context.Context, businessID int64, yearID int64, from *time.Time, to time.Time) (ProfitAndLoss, error) {
	filter := TotalsFilter{From: from, Until: &to, Inclusive: true, YearID: &yearID}
	income, err := s.NatureTotal(ctx, businessID, coa.NatureIncome, filter, false)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	expense, err := s.NatureTotal(ctx, businessID, coa.NatureExpense, filter, false)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	grossIncome, err := s.NatureTotal(ctx, businessID, coa.NatureIncome, filter, true)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	grossCost, err := s.NatureTotal(ctx, businessID, coa.NatureExpense, filter, true)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return ProfitAndLoss{
		From:        from,
		To:          to,
		GrossIncome: grossIncome,
		GrossCost:   grossCost,
		GrossProfit: grossIncome.Sub(grossCost),
		Income:      income,
		Expense:     expense,
		NetProfit:   income.Sub(expense),
	}, nil
}

// BalanceSheet reports assets against liabilities and equity as of a date.
// Net profit for the period to date is shown on the equity side so the two
// sides agree.
type BalanceSheet struct {
	AsOf        time.Time
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	Equity      decimal.Decimal
	NetProfit   decimal.Decimal
	TotalLeft   decimal.Decimal
	TotalRight  decimal.Decimal
}

// BalanceSheet builds the statement of financial position.
func (s *Service) BalanceSheet(ctx context.Context, businessID int64, asOf time.Time, yearID int64) (BalanceSheet, error) {
	rows, err := s.repo.TrialBalanceRows(ctx, businessID, asOf, yearID)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs := BalanceSheet{
		AsOf:        asOf,
		Assets:      decimal.Zero,
		Liabilities: decimal.Zero,
		Equity:      decimal.Zero,
		NetProfit:   decimal.Zero,
	}
	for _, row := range rows {
		opening := coa.LedgerAccount{OpeningBalance: row.OpeningBalance, OpeningBalanceType: row.OpeningBalanceType}.SignedOpening()
		closing := Resolve(row.Nature, opening, row.Debit, row.Credit)
		switch row.Nature {
		case coa.NatureAssets:
			bs.Assets = bs.Assets.Add(closing.Signed())
		case coa.NatureLiabilities:
			bs.Liabilities = bs.Liabilities.Sub(closing.Signed())
		case coa.NatureEquity:
			bs.Equity = bs.Equity.Sub(closing.Signed())
		case coa.NatureIncome:
			bs.NetProfit = bs.NetProfit.Sub(closing.Signed())
		case coa.NatureExpense:
			bs.NetProfit = bs.NetProfit.Sub(closing.Signed())
		}
	}
	bs.TotalLeft = bs.Assets
	bs.TotalRight = bs.Liabilities.Add(bs.Equity).Add(bs.NetProfit)
	return bs, nil
}

// ClosingLine is one balance-sheet account's closing position, the balance
// the account carries forward as the next year's opening.
type ClosingLine struct {
	AccountID int64
	Code      *string
	Name      string
	Nature    coa.Nature
	Closing   Balance
}

// ClosingSummary lists the carry-forward balances at year end. Income and
// expense accounts reset each year and are omitted; the profit they leave
// behind is reported separately so it can be folded into equity.
type ClosingSummary struct {
	YearID    int64
	AsOf      time.Time
	Lines     []ClosingLine
	NetProfit decimal.Decimal
}

// ClosingSummary computes the carry-forward positions for a financial year.
func (s *Service) ClosingSummary(ctx context.Context, businessID, yearID int64) (ClosingSummary, error) {
	year, err := s.years.Get(ctx, businessID, yearID)
	if err != nil {
		return ClosingSummary{}, err
	}
	rows, err := s.repo.TrialBalanceRows(ctx, businessID, year.EndDate, yearID)
	if err != nil {
		return ClosingSummary{}, err
	}
	summary := ClosingSummary{YearID: yearID, AsOf: year.EndDate, NetProfit: decimal.Zero}
	for _, row := range rows {
		opening := coa.LedgerAccount{OpeningBalance: row.OpeningBalance, OpeningBalanceType: row.OpeningBalanceType}.SignedOpening()
		closing := Resolve(row.Nature, opening, row.Debit, row.Credit)
		switch row.Nature {
		case coa.NatureAssets, coa.NatureLiabilities, coa.NatureEquity:
			if closing.IsZero() {
				continue
			}
			summary.Lines = append(summary.Lines, ClosingLine{
				AccountID: row.AccountID,
				Code:      row.AccountCode,
				Name:      row.AccountName,
				Nature:    row.Nature,
				Closing:   closing,
			})
		case coa.NatureIncome, coa.NatureExpense:
			summary.NetProfit = summary.NetProfit.Sub(closing.Signed())
		}
	}
	return summary, nil
}
