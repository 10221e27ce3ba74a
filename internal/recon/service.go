package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
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

// BalancePort computes account balances. Satisfied by ledger.Service.
type BalancePort interface {
	AccountBalance(ctx context.Context, businessID, accountID int64, q ledger.BalanceQuery) (ledger.Balance, error)
}

// Service is the reconciliation engine.
type Service struct {
	repo     Repository
	accounts AccountSource
	balances BalancePort
	audit    AuditPort
	now      func() time.Time
}

func NewService(repo Repository, accounts AccountSource, balances BalancePort, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, balances: balances, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns reconciliations, optionally filtered by account.
func (s *Service) List(ctx context.Context, tenant shared.Tenant, accountID *int64) ([]Reconciliation, error) {
	return s.repo.List(ctx, tenant.BusinessID, accountID)
}

// Get returns one reconciliation with its linked entries.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (Reconciliation, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// CreateInput carries the fields for a new reconciliation.
type CreateInput struct {
	LedgerAccountID  int64
	StatementDate    time.Time
	StatementBalance decimal.Decimal
}

// Create opens a reconciliation against a bank account. The account balance
// snapshot is computed from the balance engine at the statement date; it is
// a cached convenience figure, not an authoritative one.
func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input CreateInput) (Reconciliation, error) {
	account, err := s.accounts.GetAccount(ctx, tenant.BusinessID, input.LedgerAccountID)
	if err != nil {
		return Reconciliation{}, err
	}
	if !account.IsBankAccount {
		return Reconciliation{}, fmt.Errorf("%w: %q is not a bank account", shared.ErrValidation, account.Name)
	}
	asOf := input.StatementDate
	balance, err := s.balances.AccountBalance(ctx, tenant.BusinessID, account.ID, ledger.BalanceQuery{AsOf: &asOf})
	if err != nil {
		return Reconciliation{}, err
	}
	var created Reconciliation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err = tx.Insert(ctx, Reconciliation{
			BusinessID:        tenant.BusinessID,
			LedgerAccountID:   account.ID,
			StatementDate:     input.StatementDate,
			StatementBalance:  input.StatementBalance,
			AccountBalance:    balance.Signed(),
			ReconciledBalance: account.SignedOpening(),
		})
		return err
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.record(ctx, tenant, "reconciliation.create", created.ID, map[string]any{"account_id": account.ID})
	return created, nil
}

// AddItem links a journal entry and recomputes the reconciled balance. The
// entry must belong to the reconciliation's account, and may be linked to at
// most one reconciliation overall.
func (s *Service) AddItem(ctx context.Context, tenant shared.Tenant, id, entryID int64) (Reconciliation, error) {
	return s.mutateItems(ctx, tenant, id, entryID, "reconciliation.add_item", func(ctx context.Context, tx TxRepository, rec Reconciliation) error {
		return tx.InsertItem(ctx, rec.ID, entryID)
	})
}

// RemoveItem unlinks a journal entry and recomputes the reconciled balance.
func (s *Service) RemoveItem(ctx context.Context, tenant shared.Tenant, id, entryID int64) (Reconciliation, error) {
	return s.mutateItems(ctx, tenant, id, entryID, "reconciliation.remove_item", func(ctx context.Context, tx TxRepository, rec Reconciliation) error {
		return tx.DeleteItem(ctx, rec.ID, entryID)
	})
}

func (s *Service) mutateItems(ctx context.Context, tenant shared.Tenant, id, entryID int64, action string, mutate func(context.Context, TxRepository, Reconciliation) error) (Reconciliation, error) {
	account := coa.LedgerAccount{}
	var result Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if rec.IsCompleted {
			return fmt.Errorf("%w: reconciliation is completed", shared.ErrConflict)
		}
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.BusinessID != tenant.BusinessID {
			return fmt.Errorf("%w: entry %d belongs to another business", shared.ErrCrossTenant, entryID)
		}
		if entry.LedgerAccountID != rec.LedgerAccountID {
			return fmt.Errorf("%w: entry %d belongs to another account", shared.ErrValidation, entryID)
		}
		if err := mutate(ctx, tx, rec); err != nil {
			return err
		}
		account, err = s.accounts.GetAccount(ctx, tenant.BusinessID, rec.LedgerAccountID)
		if err != nil {
			return err
		}
		debit, credit, err := tx.SumItems(ctx, rec.ID)
		if err != nil {
			return err
		}
		rec.ReconciledBalance = account.SignedOpening().Add(debit).Sub(credit)
		if err := tx.SetReconciled(ctx, tenant.BusinessID, rec.ID, rec.ReconciledBalance); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.record(ctx, tenant, action, id, map[string]any{"journal_entry_id": entryID})
	return result, nil
}

// Complete closes the reconciliation if the statement and reconciled
// balances agree within the tolerance.
func (s *Service) Complete(ctx context.Context, tenant shared.Tenant, id int64) (Reconciliation, error) {
	var result Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if rec.IsCompleted {
			return fmt.Errorf("%w: reconciliation is already completed", shared.ErrConflict)
		}
		if !rec.WithinTolerance() {
			diff := rec.StatementBalance.Sub(rec.ReconciledBalance).Abs()
			return fmt.Errorf("%w: difference %s exceeds tolerance %s", shared.ErrValidation, diff, Tolerance)
		}
		now := s.now()
		by := tenant.UserID
		if err := tx.SetCompleted(ctx, tenant.BusinessID, id, &by, &now, true); err != nil {
			return err
		}
		rec.IsCompleted = true
		rec.CompletedBy = &by
		rec.CompletedAt = &now
		result = rec
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.record(ctx, tenant, "reconciliation.complete", id, nil)
	return result, nil
}

// Reopen clears a completed reconciliation's completion fields.
func (s *Service) Reopen(ctx context.Context, tenant shared.Tenant, id int64) (Reconciliation, error) {
	var result Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if !rec.IsCompleted {
			return fmt.Errorf("%w: reconciliation is not completed", shared.ErrConflict)
		}
		if err := tx.SetCompleted(ctx, tenant.BusinessID, id, nil, nil, false); err != nil {
			return err
		}
		rec.IsCompleted = false
		rec.CompletedBy = nil
		rec.CompletedAt = nil
		result = rec
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.record(ctx, tenant, "reconciliation.reopen", id, nil)
	return result, nil
}

// Delete removes an uncompleted reconciliation and its links.
func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if rec.IsCompleted {
			return fmt.Errorf("%w: completed reconciliations cannot be deleted", shared.ErrConflict)
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "reconciliation.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityRecon,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
