package coa

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service enforces the chart-of-accounts rules.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateGroupInput carries the fields for a new account group.
type CreateGroupInput struct {
	ParentID           *int64
	Name               string
	Nature             Nature
	AffectsGrossProfit bool
	Sequence           int
}

// CreateGroup adds a group under the optional parent. A child's nature must
// match its parent's.
func (s *Service) CreateGroup(ctx context.Context, tenant shared.Tenant, input CreateGroupInput) (AccountGroup, error) {
	if input.Name == "" {
		return AccountGroup{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	if !input.Nature.Valid() {
		return AccountGroup{}, fmt.Errorf("%w: unknown nature %q", shared.ErrValidation, input.Nature)
	}
	var created AccountGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			parent, err := tx.GetGroup(ctx, tenant.BusinessID, *input.ParentID)
			if err != nil {
				return err
			}
			if parent.Nature != input.Nature {
				return fmt.Errorf("%w: nature %q does not match parent nature %q", shared.ErrValidation, input.Nature, parent.Nature)
			}
		}
		group := AccountGroup{
			BusinessID:         tenant.BusinessID,
			ParentID:           input.ParentID,
			Name:               input.Name,
			Nature:             input.Nature,
			AffectsGrossProfit: input.AffectsGrossProfit,
			Sequence:           input.Sequence,
		}
		inserted, err := tx.InsertGroup(ctx, group)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return AccountGroup{}, err
	}
	s.record(ctx, tenant, "account_group.create", shared.AuditEntityAccountGroup, created.ID, nil)
	return created, nil
}

// UpdateGroupInput carries mutable group fields.
type UpdateGroupInput struct {
	ParentID           *int64
	Name               string
	AffectsGrossProfit bool
	Sequence           int
}

// UpdateGroup renames or reparents a group. Reparenting is refused when the
// candidate parent is the group itself or one of its descendants, and when
// the new parent's nature differs.
func (s *Service) UpdateGroup(ctx context.Context, tenant shared.Tenant, id int64, input UpdateGroupInput) (AccountGroup, error) {
	if input.Name == "" {
		return AccountGroup{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	var updated AccountGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroup(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if group.IsSystem {
			return fmt.Errorf("%w: system group cannot be edited", shared.ErrValidation)
		}
		if input.ParentID != nil {
			if *input.ParentID == group.ID {
				return fmt.Errorf("%w: group cannot be its own parent", shared.ErrValidation)
			}
			parent, err := tx.GetGroup(ctx, tenant.BusinessID, *input.ParentID)
			if err != nil {
				return err
			}
			if parent.Nature != group.Nature {
				return fmt.Errorf("%w: parent nature %q does not match group nature %q", shared.ErrValidation, parent.Nature, group.Nature)
			}
			all, err := tx.ListGroups(ctx, tenant.BusinessID)
			if err != nil {
				return err
			}
			if _, isDescendant := DescendantIDs(all, group.ID)[*input.ParentID]; isDescendant {
				return fmt.Errorf("%w: group cannot be moved under its own descendant", shared.ErrValidation)
			}
		}
		group.ParentID = input.ParentID
		group.Name = input.Name
		group.AffectsGrossProfit = input.AffectsGrossProfit
		group.Sequence = input.Sequence
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		updated = group
		return nil
	})
	if err != nil {
		return AccountGroup{}, err
	}
	s.record(ctx, tenant, "account_group.update", shared.AuditEntityAccountGroup, updated.ID, nil)
	return updated, nil
}

// ChangeNature sets a new nature on the group and cascades it to every
// descendant in a single transaction.
func (s *Service) ChangeNature(ctx context.Context, tenant shared.Tenant, id int64, newNature Nature) error {
	if !newNature.Valid() {
		return fmt.Errorf("%w: unknown nature %q", shared.ErrValidation, newNature)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroup(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if group.IsSystem {
			return fmt.Errorf("%w: system group cannot be edited", shared.ErrValidation)
		}
		if group.Nature == newNature {
			return nil
		}
		all, err := tx.ListGroups(ctx, tenant.BusinessID)
		if err != nil {
			return err
		}
		ids := []int64{group.ID}
		for descID := range DescendantIDs(all, group.ID) {
			ids = append(ids, descID)
		}
		return tx.UpdateNature(ctx, tenant.BusinessID, ids, newNature)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "account_group.change_nature", shared.AuditEntityAccountGroup, id, map[string]any{"nature": string(newNature)})
	return nil
}

// DeleteGroup removes a group without children or ledger accounts.
func (s *Service) DeleteGroup(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroup(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if group.IsSystem {
			return fmt.Errorf("%w: system group cannot be deleted", shared.ErrConflict)
		}
		children, err := tx.CountChildren(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: group has child groups", shared.ErrConflict)
		}
		accounts, err := tx.CountGroupAccounts(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if accounts > 0 {
			return fmt.Errorf("%w: group has ledger accounts", shared.ErrConflict)
		}
		return tx.DeleteGroup(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "account_group.delete", shared.AuditEntityAccountGroup, id, nil)
	return nil
}

// FlattenHierarchy returns the pre-order listing of groups for the business.
func (s *Service) FlattenHierarchy(ctx context.Context, tenant shared.Tenant) ([]FlatGroup, error) {
	groups, err := s.repo.ListGroups(ctx, tenant.BusinessID)
	if err != nil {
		return nil, err
	}
	return Flatten(groups), nil
}

// GetGroup fetches one group for the business.
func (s *Service) GetGroup(ctx context.Context, tenant shared.Tenant, id int64) (AccountGroup, error) {
	return s.repo.GetGroup(ctx, tenant.BusinessID, id)
}

// ListGroups fetches all groups for the business.
func (s *Service) ListGroups(ctx context.Context, tenant shared.Tenant) ([]AccountGroup, error) {
	return s.repo.ListGroups(ctx, tenant.BusinessID)
}

// CreateAccountInput carries the fields for a new ledger account.
type CreateAccountInput struct {
	AccountGroupID     int64
	Code               *string
	Name               string
	OpeningBalance     decimal.Decimal
	OpeningBalanceType BalanceType
	IsBankAccount      bool
	IsCashAccount      bool
}

// CreateAccount registers a ledger account under an existing group.
func (s *Service) CreateAccount(ctx context.Context, tenant shared.Tenant, input CreateAccountInput) (LedgerAccount, error) {
	if input.Name == "" {
		return LedgerAccount{}, fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	if input.OpeningBalanceType != BalanceDebit && input.OpeningBalanceType != BalanceCredit {
		return LedgerAccount{}, fmt.Errorf("%w: opening balance type must be debit or credit", shared.ErrValidation)
	}
	if input.OpeningBalance.IsNegative() {
		return LedgerAccount{}, fmt.Errorf("%w: opening balance cannot be negative", shared.ErrValidation)
	}
	var created LedgerAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetGroup(ctx, tenant.BusinessID, input.AccountGroupID); err != nil {
			return err
		}
		if input.Code != nil && *input.Code != "" {
			exists, err := tx.AccountCodeExists(ctx, tenant.BusinessID, *input.Code, 0)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: account code %q already in use", shared.ErrConflict, *input.Code)
			}
		}
		account := LedgerAccount{
			BusinessID:         tenant.BusinessID,
			AccountGroupID:     input.AccountGroupID,
			Code:               input.Code,
			Name:               input.Name,
			OpeningBalance:     input.OpeningBalance,
			OpeningBalanceType: input.OpeningBalanceType,
			IsBankAccount:      input.IsBankAccount,
			IsCashAccount:      input.IsCashAccount,
			IsActive:           true,
		}
		inserted, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return LedgerAccount{}, err
	}
	s.record(ctx, tenant, "ledger_account.create", shared.AuditEntityLedgerAccount, created.ID, nil)
	return created, nil
}

// UpdateAccountInput carries mutable ledger account fields.
type UpdateAccountInput struct {
	AccountGroupID     int64
	Code               *string
	Name               string
	OpeningBalance     decimal.Decimal
	OpeningBalanceType BalanceType
	IsBankAccount      bool
	IsCashAccount      bool
	IsActive           bool
}

// UpdateAccount mutates a non-system ledger account.
func (s *Service) UpdateAccount(ctx context.Context, tenant shared.Tenant, id int64, input UpdateAccountInput) (LedgerAccount, error) {
	if input.Name == "" {
		return LedgerAccount{}, fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	var updated LedgerAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if account.IsSystem {
			return fmt.Errorf("%w: system account cannot be edited", shared.ErrValidation)
		}
		if _, err := tx.GetGroup(ctx, tenant.BusinessID, input.AccountGroupID); err != nil {
			return err
		}
		if input.Code != nil && *input.Code != "" {
			exists, err := tx.AccountCodeExists(ctx, tenant.BusinessID, *input.Code, id)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: account code %q already in use", shared.ErrConflict, *input.Code)
			}
		}
		account.AccountGroupID = input.AccountGroupID
		account.Code = input.Code
		account.Name = input.Name
		account.OpeningBalance = input.OpeningBalance
		account.OpeningBalanceType = input.OpeningBalanceType
		account.IsBankAccount = input.IsBankAccount
		account.IsCashAccount = input.IsCashAccount
		account.IsActive = input.IsActive
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return LedgerAccount{}, err
	}
	s.record(ctx, tenant, "ledger_account.update", shared.AuditEntityLedgerAccount, updated.ID, nil)
	return updated, nil
}

// DeleteAccount removes an account with no journal entries and no party link.
func (s *Service) DeleteAccount(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if account.IsSystem {
			return fmt.Errorf("%w: system account cannot be deleted", shared.ErrConflict)
		}
		entries, err := tx.CountAccountEntries(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if entries > 0 {
			return fmt.Errorf("%w: account has journal entries", shared.ErrConflict)
		}
		linked, err := tx.AccountHasParty(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if linked {
			return fmt.Errorf("%w: account is linked to a party", shared.ErrConflict)
		}
		return tx.DeleteAccount(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "ledger_account.delete", shared.AuditEntityLedgerAccount, id, nil)
	return nil
}

// GetAccount fetches one ledger account for the business.
func (s *Service) GetAccount(ctx context.Context, tenant shared.Tenant, id int64) (LedgerAccount, error) {
	return s.repo.GetAccount(ctx, tenant.BusinessID, id)
}

// ListAccounts fetches all ledger accounts for the business.
func (s *Service) ListAccounts(ctx context.Context, tenant shared.Tenant) ([]LedgerAccount, error) {
	return s.repo.ListAccounts(ctx, tenant.BusinessID)
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entity shared.AuditEntity, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
