package voucher

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountSource resolves ledger accounts. Satisfied by coa.Repository.
type AccountSource interface {
	GetAccount(ctx context.Context, businessID, id int64) (coa.LedgerAccount, error)
}

// CostCenterSource resolves cost centers. Satisfied by costcenter.Repository.
type CostCenterSource interface {
	Get(ctx context.Context, businessID, id int64) (CostCenterRef, error)
}

// CostCenterRef is the slice of a cost center the engine cares about.
type CostCenterRef struct {
	ID       int64
	IsActive bool
}

// YearSource resolves financial years. Satisfied by fiscal.Repository.
type YearSource interface {
	Get(ctx context.Context, businessID, id int64) (fiscal.FinancialYear, error)
	FindByDate(ctx context.Context, businessID int64, date time.Time) (fiscal.FinancialYear, error)
}

// ReportInvalidator drops cached reports after posting activity. Satisfied
// by ledger.ReportCache.
type ReportInvalidator interface {
	Bump(ctx context.Context, businessID int64) error
}

// Service is the voucher engine: transaction capture, balance validation,
// the posted/unposted state machine and journal generation.
type Service struct {
	repo    Repository
	acc     AccountSource
	costs   CostCenterSource
	years   YearSource
	audit   AuditPort
	reports ReportInvalidator
	now     func() time.Time
}

func NewService(repo Repository, acc AccountSource, costs CostCenterSource, years YearSource, audit AuditPort, reports ReportInvalidator) *Service {
	return &Service{repo: repo, acc: acc, costs: costs, years: years, audit: audit, reports: reports, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ItemInput is one requested voucher line. ID is zero for new lines and the
// existing item id on update.
type ItemInput struct {
	ID              int64
	LedgerAccountID int64
	CostCenterID    *int64
	DebitAmount     decimal.Decimal
	CreditAmount    decimal.Decimal
	Narration       string
}

// Input carries the fields for creating or updating a voucher.
type Input struct {
	VoucherTypeID int64
	VoucherNumber string
	Date          time.Time
	PartyID       *int64
	Narration     string
	Reference     string
	Post          bool
	Items         []ItemInput
}

// List returns vouchers matching the filter.
func (s *Service) List(ctx context.Context, tenant shared.Tenant, filter ListFilter) ([]Voucher, error) {
	return s.repo.List(ctx, tenant.BusinessID, filter)
}

// Get returns one voucher with its items.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (Voucher, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// validateItems checks the line set: at least one line, non-negative
// amounts, exactly one side per line, live accounts and cost centers, and
// the double-entry balance at 2-decimal precision.
func (s *Service) validateItems(ctx context.Context, tenant shared.Tenant, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: a voucher needs at least one item", shared.ErrValidation)
	}
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if in.DebitAmount.IsNegative() || in.CreditAmount.IsNegative() {
			return nil, fmt.Errorf("%w: item %d has a negative amount", shared.ErrValidation, i+1)
		}
		if in.DebitAmount.IsPositive() == in.CreditAmount.IsPositive() {
			return nil, fmt.Errorf("%w: item %d must carry exactly one of debit or credit", shared.ErrValidation, i+1)
		}
		account, err := s.acc.GetAccount(ctx, tenant.BusinessID, in.LedgerAccountID)
		if err != nil {
			return nil, fmt.Errorf("item %d account: %w", i+1, err)
		}
		if !account.IsActive {
			return nil, fmt.Errorf("%w: account %q is inactive", shared.ErrValidation, account.Name)
		}
		if in.CostCenterID != nil {
			cc, err := s.costs.Get(ctx, tenant.BusinessID, *in.CostCenterID)
			if err != nil {
				return nil, fmt.Errorf("item %d cost center: %w", i+1, err)
			}
			if !cc.IsActive {
				return nil, fmt.Errorf("%w: cost center %d is inactive", shared.ErrValidation, cc.ID)
			}
		}
		items = append(items, Item{
			ID:              in.ID,
			LedgerAccountID: in.LedgerAccountID,
			CostCenterID:    in.CostCenterID,
			DebitAmount:     in.DebitAmount.Round(2),
			CreditAmount:    in.CreditAmount.Round(2),
			Narration:       in.Narration,
			Sequence:        i + 1,
		})
	}
	if !Balanced(items) {
		debit, credit := Totals(items)
		return nil, fmt.Errorf("%w: debits %s != credits %s", shared.ErrImbalanced, debit, credit)
	}
	return items, nil
}

// resolveYear finds the financial year containing the date and rejects
// locked years.
func (s *Service) resolveYear(ctx context.Context, tenant shared.Tenant, date time.Time) (fiscal.FinancialYear, error) {
	year, err := s.years.FindByDate(ctx, tenant.BusinessID, date)
	if err != nil {
		return fiscal.FinancialYear{}, fmt.Errorf("%w: no financial year covers %s", shared.ErrValidation, date.Format("2006-01-02"))
	}
	if year.IsLocked {
		return fiscal.FinancialYear{}, shared.ErrLockedPeriod
	}
	return year, nil
}

// Create stores a new voucher and, when Post is set, generates its journal
// entries in the same transaction.
func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input Input) (Voucher, error) {
	items, err := s.validateItems(ctx, tenant, input.Items)
	if err != nil {
		return Voucher{}, err
	}
	year, err := s.resolveYear(ctx, tenant, input.Date)
	if err != nil {
		return Voucher{}, err
	}
	debit, _ := Totals(items)
	var created Voucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		vt, err := tx.GetType(ctx, tenant.BusinessID, input.VoucherTypeID)
		if err != nil {
			return err
		}
		number := normalizeNumber(input.VoucherNumber)
		var sequence int64
		if vt.AutoIncrement {
			highest, err := tx.HighestSequence(ctx, tenant.BusinessID, vt.ID, year.ID)
			if err != nil {
				return err
			}
			sequence = nextSequence(vt, highest)
			number = FormatNumber(vt, sequence)
		} else if number == "" {
			return fmt.Errorf("%w: voucher number required for %s", shared.ErrValidation, vt.Name)
		}
		v := Voucher{
			BusinessID:      tenant.BusinessID,
			VoucherTypeID:   vt.ID,
			FinancialYearID: year.ID,
			VoucherNumber:   number,
			Sequence:        sequence,
			Date:            input.Date,
			PartyID:         input.PartyID,
			Narration:       input.Narration,
			Reference:       input.Reference,
			IsPosted:        false,
			TotalAmount:     debit,
			CreatedBy:       tenant.UserID,
			UpdatedBy:       tenant.UserID,
		}
		inserted, err := tx.Insert(ctx, v)
		if err != nil {
			return err
		}
		inserted.Items, err = tx.InsertItems(ctx, inserted.ID, items)
		if err != nil {
			return err
		}
		if input.Post {
			if err := tx.InsertEntries(ctx, buildEntries(inserted)); err != nil {
				return err
			}
			if err := tx.SetPosted(ctx, tenant.BusinessID, inserted.ID, true, tenant.UserID); err != nil {
				return err
			}
			inserted.IsPosted = true
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, tenant, "voucher.create", created.ID, map[string]any{"number": created.VoucherNumber, "posted": created.IsPosted})
	s.invalidate(ctx, tenant, created.IsPosted)
	return created, nil
}

// Update replaces a voucher's header and items. Posted vouchers get their
// journal entries regenerated as a set in the same transaction. Both the
// current year and the year of the new date must be unlocked.
func (s *Service) Update(ctx context.Context, tenant shared.Tenant, id int64, input Input) (Voucher, error) {
	items, err := s.validateItems(ctx, tenant, input.Items)
	if err != nil {
		return Voucher{}, err
	}
	year, err := s.resolveYear(ctx, tenant, input.Date)
	if err != nil {
		return Voucher{}, err
	}
	debit, _ := Totals(items)
	var updated Voucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if err := s.ensureYearUnlocked(ctx, tenant, current.FinancialYearID); err != nil {
			return err
		}
		reconciled, err := tx.CountReconciledEntries(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if reconciled > 0 {
			return fmt.Errorf("%w: voucher has reconciled entries", shared.ErrConflict)
		}
		v := current
		v.FinancialYearID = year.ID
		v.Date = input.Date
		v.PartyID = input.PartyID
		v.Narration = input.Narration
		v.Reference = input.Reference
		v.TotalAmount = debit
		v.UpdatedBy = tenant.UserID
		if number := normalizeNumber(input.VoucherNumber); number != "" && number != current.VoucherNumber {
			vt, err := tx.GetType(ctx, tenant.BusinessID, current.VoucherTypeID)
			if err != nil {
				return err
			}
			if vt.AutoIncrement {
				return fmt.Errorf("%w: voucher number is auto-assigned for %s", shared.ErrValidation, vt.Name)
			}
			v.VoucherNumber = number
		}
		if err := tx.Update(ctx, v); err != nil {
			return err
		}
		v.Items, err = s.reconcileItems(ctx, tx, tenant, v.ID, items)
		if err != nil {
			return err
		}
		if v.IsPosted {
			if err := tx.DeleteEntries(ctx, tenant.BusinessID, v.ID); err != nil {
				return err
			}
			if err := tx.InsertEntries(ctx, buildEntries(v)); err != nil {
				return err
			}
		}
		updated = v
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, tenant, "voucher.update", updated.ID, map[string]any{"number": updated.VoucherNumber})
	s.invalidate(ctx, tenant, updated.IsPosted)
	return updated, nil
}

// reconcileItems diffs the requested lines against the stored ones: lines
// with a known id are updated, ids not resubmitted are deleted, the rest are
// inserted.
func (s *Service) reconcileItems(ctx context.Context, tx TxRepository, tenant shared.Tenant, voucherID int64, items []Item) ([]Item, error) {
	existing, err := tx.ListItems(ctx, tenant.BusinessID, voucherID)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(existing))
	for _, it := range existing {
		known[it.ID] = true
	}
	kept := make(map[int64]bool, len(items))
	var inserts []Item
	var result []Item
	for _, it := range items {
		if it.ID != 0 && known[it.ID] {
			it.VoucherID = voucherID
			if err := tx.UpdateItem(ctx, it); err != nil {
				return nil, err
			}
			kept[it.ID] = true
			result = append(result, it)
			continue
		}
		it.ID = 0
		inserts = append(inserts, it)
	}
	var stale []int64
	for _, it := range existing {
		if !kept[it.ID] {
			stale = append(stale, it.ID)
		}
	}
	if err := tx.DeleteItems(ctx, voucherID, stale); err != nil {
		return nil, err
	}
	inserted, err := tx.InsertItems(ctx, voucherID, inserts)
	if err != nil {
		return nil, err
	}
	return append(result, inserted...), nil
}

// Delete removes a voucher, its items and any journal entries. Vouchers in
// locked years or with reconciled entries are refused.
func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if err := s.ensureYearUnlocked(ctx, tenant, current.FinancialYearID); err != nil {
			return err
		}
		reconciled, err := tx.CountReconciledEntries(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if reconciled > 0 {
			return fmt.Errorf("%w: voucher has reconciled entries", shared.ErrConflict)
		}
		if err := tx.DeleteEntries(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if err := tx.DeleteItems(ctx, id, ids); err != nil {
			return err
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "voucher.delete", id, nil)
	s.invalidate(ctx, tenant, true)
	return nil
}

// Post materializes a draft voucher's items into journal entries.
func (s *Service) Post(ctx context.Context, tenant shared.Tenant, id int64) (Voucher, error) {
	var posted Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if current.IsPosted {
			return fmt.Errorf("%w: voucher %s is already posted", shared.ErrConflict, current.VoucherNumber)
		}
		if err := s.ensureYearUnlocked(ctx, tenant, current.FinancialYearID); err != nil {
			return err
		}
		current.Items, err = tx.ListItems(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if !Balanced(current.Items) {
			return shared.ErrImbalanced
		}
		if err := tx.InsertEntries(ctx, buildEntries(current)); err != nil {
			return err
		}
		if err := tx.SetPosted(ctx, tenant.BusinessID, id, true, tenant.UserID); err != nil {
			return err
		}
		current.IsPosted = true
		posted = current
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, tenant, "voucher.post", id, map[string]any{"number": posted.VoucherNumber})
	s.invalidate(ctx, tenant, true)
	return posted, nil
}

// Unpost removes a posted voucher's journal entries and returns it to
// draft. Refused when any entry is reconciled.
func (s *Service) Unpost(ctx context.Context, tenant shared.Tenant, id int64) (Voucher, error) {
	var draft Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if !current.IsPosted {
			return fmt.Errorf("%w: voucher %s is not posted", shared.ErrConflict, current.VoucherNumber)
		}
		if err := s.ensureYearUnlocked(ctx, tenant, current.FinancialYearID); err != nil {
			return err
		}
		reconciled, err := tx.CountReconciledEntries(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if reconciled > 0 {
			return fmt.Errorf("%w: voucher has reconciled entries", shared.ErrConflict)
		}
		if err := tx.DeleteEntries(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		if err := tx.SetPosted(ctx, tenant.BusinessID, id, false, tenant.UserID); err != nil {
			return err
		}
		current.IsPosted = false
		draft = current
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, tenant, "voucher.unpost", id, map[string]any{"number": draft.VoucherNumber})
	s.invalidate(ctx, tenant, true)
	return draft, nil
}

// Attach mints a storage key for a voucher attachment and records it. The
// bytes themselves live in the external blob store under the returned key.
func (s *Service) Attach(ctx context.Context, tenant shared.Tenant, id int64, filename string) (string, error) {
	key := fmt.Sprintf("vouchers/%d/%s%s", tenant.BusinessID, uuid.NewString(), path.Ext(filename))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if err := s.ensureYearUnlocked(ctx, tenant, current.FinancialYearID); err != nil {
			return err
		}
		return tx.SetAttachment(ctx, tenant.BusinessID, id, &key, tenant.UserID)
	})
	if err != nil {
		return "", err
	}
	s.record(ctx, tenant, "voucher.attach", id, map[string]any{"key": key})
	return key, nil
}

func (s *Service) ensureYearUnlocked(ctx context.Context, tenant shared.Tenant, yearID int64) error {
	year, err := s.years.Get(ctx, tenant.BusinessID, yearID)
	if err != nil {
		return err
	}
	if year.IsLocked {
		return shared.ErrLockedPeriod
	}
	return nil
}

// buildEntries derives the journal entry set from a voucher, one entry per
// item. Deterministic: same voucher in, same entries out.
func buildEntries(v Voucher) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(v.Items))
	for _, it := range v.Items {
		entries = append(entries, ledger.Entry{
			BusinessID:      v.BusinessID,
			VoucherID:       v.ID,
			LedgerAccountID: it.LedgerAccountID,
			CostCenterID:    it.CostCenterID,
			FinancialYearID: v.FinancialYearID,
			Date:            v.Date,
			DebitAmount:     it.DebitAmount,
			CreditAmount:    it.CreditAmount,
			Narration:       it.Narration,
		})
	}
	return entries
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityVoucher,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}

// invalidate drops cached reports when posting state may have changed.
func (s *Service) invalidate(ctx context.Context, tenant shared.Tenant, touched bool) {
	if s.reports == nil || !touched {
		return
	}
	_ = s.reports.Bump(ctx, tenant.BusinessID)
}
