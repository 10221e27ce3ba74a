package party

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Well-known system group names the backing accounts are provisioned under.
const (
	receivableGroup = "Accounts Receivable"
	payableGroup    = "Accounts Payable"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalancePort computes balances and aging over the party's backing account.
// Satisfied by ledger.Service.
type BalancePort interface {
	AccountBalance(ctx context.Context, businessID, accountID int64, q ledger.BalanceQuery) (ledger.Balance, error)
	AccountAging(ctx context.Context, businessID, accountID int64, debitPositive bool, asOf time.Time, periods []int) (ledger.Aging, error)
}

// Service manages parties and their provisioned ledger accounts.
type Service struct {
	repo     Repository
	balances BalancePort
	audit    AuditPort
	now      func() time.Time
}

func NewService(repo Repository, balances BalancePort, audit AuditPort) *Service {
	return &Service{repo: repo, balances: balances, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Input carries the fields for creating or updating a party.
type Input struct {
	Name               string
	Type               Type
	Email              string
	Phone              string
	Address            string
	CreditLimit        decimal.Decimal
	CreditPeriod       int
	OpeningBalance     decimal.Decimal
	OpeningBalanceType coa.BalanceType
	IsActive           bool
}

func (in Input) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: party name required", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown party type %q", shared.ErrValidation, in.Type)
	}
	if in.CreditLimit.IsNegative() || in.CreditPeriod < 0 {
		return fmt.Errorf("%w: credit terms cannot be negative", shared.ErrValidation)
	}
	return nil
}

// List returns the business's parties.
func (s *Service) List(ctx context.Context, tenant shared.Tenant) ([]Party, error) {
	return s.repo.List(ctx, tenant.BusinessID)
}

// Get returns one party.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (Party, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// Create stores a party and provisions its backing ledger account in the
// same transaction: under Accounts Receivable for customers (and "both"),
// under Accounts Payable for suppliers.
func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input Input) (Party, error) {
	if err := input.validate(); err != nil {
		return Party{}, err
	}
	groupName := payableGroup
	openingType := input.OpeningBalanceType
	if input.Type.Receivable() {
		groupName = receivableGroup
	}
	if openingType == "" {
		openingType = coa.BalanceDebit
		if !input.Type.Receivable() {
			openingType = coa.BalanceCredit
		}
	}
	var created Party
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		groupID, err := tx.FindGroupIDByName(ctx, tenant.BusinessID, groupName)
		if err != nil {
			return fmt.Errorf("%w: group %q missing, bootstrap the chart first", shared.ErrValidation, groupName)
		}
		account, err := tx.InsertAccount(ctx, coa.LedgerAccount{
			BusinessID:         tenant.BusinessID,
			AccountGroupID:     groupID,
			Name:               input.Name,
			OpeningBalance:     input.OpeningBalance,
			OpeningBalanceType: openingType,
			IsActive:           true,
		})
		if err != nil {
			return err
		}
		created, err = tx.Insert(ctx, Party{
			BusinessID:      tenant.BusinessID,
			LedgerAccountID: account.ID,
			Name:            input.Name,
			Type:            input.Type,
			Email:           input.Email,
			Phone:           input.Phone,
			Address:         input.Address,
			CreditLimit:     input.CreditLimit,
			CreditPeriod:    input.CreditPeriod,
			IsActive:        input.IsActive,
		})
		return err
	})
	if err != nil {
		return Party{}, err
	}
	s.record(ctx, tenant, "party.create", created.ID, map[string]any{"account_id": created.LedgerAccountID})
	return created, nil
}

// Update edits a party. The backing account's name follows the party's, and
// the side of the books cannot change once transactions exist.
func (s *Service) Update(ctx context.Context, tenant shared.Tenant, id int64, input Input) (Party, error) {
	if err := input.validate(); err != nil {
		return Party{}, err
	}
	var updated Party
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if current.Type.Receivable() != input.Type.Receivable() {
			entries, err := tx.CountAccountEntries(ctx, tenant.BusinessID, current.LedgerAccountID)
			if err != nil {
				return err
			}
			if entries > 0 {
				return fmt.Errorf("%w: party has transactions on the other side of the books", shared.ErrConflict)
			}
		}
		current.Name = input.Name
		current.Type = input.Type
		current.Email = input.Email
		current.Phone = input.Phone
		current.Address = input.Address
		current.CreditLimit = input.CreditLimit
		current.CreditPeriod = input.CreditPeriod
		current.IsActive = input.IsActive
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		if err := tx.RenameAccount(ctx, tenant.BusinessID, current.LedgerAccountID, input.Name); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Party{}, err
	}
	s.record(ctx, tenant, "party.update", id, nil)
	return updated, nil
}

// Delete removes a party and its backing account. Refused while the account
// has journal entries.
func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		entries, err := tx.CountAccountEntries(ctx, tenant.BusinessID, current.LedgerAccountID)
		if err != nil {
			return err
		}
		if entries > 0 {
			return fmt.Errorf("%w: party has %d journal entries", shared.ErrConflict, entries)
		}
		if err := tx.Delete(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		return tx.DeleteAccount(ctx, tenant.BusinessID, current.LedgerAccountID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "party.delete", id, nil)
	return nil
}

// Outstanding returns the party's balance as of the optional date.
func (s *Service) Outstanding(ctx context.Context, tenant shared.Tenant, id int64, asOf *time.Time) (ledger.Balance, error) {
	p, err := s.repo.Get(ctx, tenant.BusinessID, id)
	if err != nil {
		return ledger.Balance{}, err
	}
	return s.balances.AccountBalance(ctx, tenant.BusinessID, p.LedgerAccountID, ledger.BalanceQuery{AsOf: asOf})
}

// Aging buckets the party's outstanding balance by transaction age.
func (s *Service) Aging(ctx context.Context, tenant shared.Tenant, id int64, asOf time.Time, periods []int) (ledger.Aging, error) {
	p, err := s.repo.Get(ctx, tenant.BusinessID, id)
	if err != nil {
		return ledger.Aging{}, err
	}
	return s.balances.AccountAging(ctx, tenant.BusinessID, p.LedgerAccountID, p.Type.Receivable(), asOf, periods)
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityParty,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
