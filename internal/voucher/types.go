package voucher

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// TypeInput carries the fields for a voucher type.
type TypeInput struct {
	Name           string
	Code           string
	Nature         TypeNature
	Prefix         string
	AutoIncrement  bool
	StartingNumber int64
}

func (in TypeInput) validate() error {
	if in.Name == "" || in.Code == "" {
		return fmt.Errorf("%w: name and code required", shared.ErrValidation)
	}
	if !in.Nature.Valid() {
		return fmt.Errorf("%w: unknown voucher nature %q", shared.ErrValidation, in.Nature)
	}
	if in.StartingNumber < 1 {
		return fmt.Errorf("%w: starting number must be at least 1", shared.ErrValidation)
	}
	return nil
}

// ListTypes returns the business's voucher types.
func (s *Service) ListTypes(ctx context.Context, tenant shared.Tenant) ([]VoucherType, error) {
	return s.repo.ListTypes(ctx, tenant.BusinessID)
}

// GetType returns one voucher type.
func (s *Service) GetType(ctx context.Context, tenant shared.Tenant, id int64) (VoucherType, error) {
	return s.repo.GetType(ctx, tenant.BusinessID, id)
}

// CreateType adds a numbering series.
func (s *Service) CreateType(ctx context.Context, tenant shared.Tenant, input TypeInput) (VoucherType, error) {
	if err := input.validate(); err != nil {
		return VoucherType{}, err
	}
	var created VoucherType
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertType(ctx, VoucherType{
			BusinessID:     tenant.BusinessID,
			Name:           input.Name,
			Code:           input.Code,
			Nature:         input.Nature,
			Prefix:         input.Prefix,
			AutoIncrement:  input.AutoIncrement,
			StartingNumber: input.StartingNumber,
		})
		return err
	})
	if err != nil {
		return VoucherType{}, err
	}
	s.recordType(ctx, tenant, "voucher_type.create", created.ID)
	return created, nil
}

// UpdateType edits a non-system voucher type.
func (s *Service) UpdateType(ctx context.Context, tenant shared.Tenant, id int64, input TypeInput) (VoucherType, error) {
	if err := input.validate(); err != nil {
		return VoucherType{}, err
	}
	var updated VoucherType
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetType(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return fmt.Errorf("%w: system voucher types cannot be edited", shared.ErrValidation)
		}
		current.Name = input.Name
		current.Code = input.Code
		current.Nature = input.Nature
		current.Prefix = input.Prefix
		current.AutoIncrement = input.AutoIncrement
		current.StartingNumber = input.StartingNumber
		if err := tx.UpdateType(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return VoucherType{}, err
	}
	s.recordType(ctx, tenant, "voucher_type.update", id)
	return updated, nil
}

// DeleteType removes a voucher type that is not system and has no vouchers.
func (s *Service) DeleteType(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetType(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return fmt.Errorf("%w: system voucher types cannot be deleted", shared.ErrValidation)
		}
		count, err := tx.CountTypeVouchers(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: voucher type has %d vouchers", shared.ErrConflict, count)
		}
		return tx.DeleteType(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.recordType(ctx, tenant, "voucher_type.delete", id)
	return nil
}

// defaultTypes is the series every new business starts with.
var defaultTypes = []VoucherType{
	{Name: "Receipt", Code: "RCPT", Nature: NatureReceipt, Prefix: "RV-"},
	{Name: "Payment", Code: "PYMT", Nature: NaturePayment, Prefix: "PV-"},
	{Name: "Contra", Code: "CNTR", Nature: NatureContra, Prefix: "CV-"},
	{Name: "Journal", Code: "JRNL", Nature: NatureJournal, Prefix: "JV-"},
	{Name: "Sales", Code: "SALE", Nature: NatureSales, Prefix: "SV-"},
	{Name: "Purchase", Code: "PURC", Nature: NaturePurchase, Prefix: "PUV-"},
	{Name: "Debit Note", Code: "DBNT", Nature: NatureDebitNote, Prefix: "DN-"},
	{Name: "Credit Note", Code: "CRNT", Nature: NatureCreditNote, Prefix: "CN-"},
}

// BootstrapDefaults seeds the system voucher types for a new business.
// Idempotence is left to the caller; running it twice duplicates nothing
// only because type codes are unique per business.
func (s *Service) BootstrapDefaults(ctx context.Context, tenant shared.Tenant) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, t := range defaultTypes {
			t.BusinessID = tenant.BusinessID
			t.AutoIncrement = true
			t.StartingNumber = 1
			t.IsSystem = true
			if _, err := tx.InsertType(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) recordType(ctx context.Context, tenant shared.Tenant, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityVoucherType,
		EntityID:   entityID,
		At:         s.now(),
	})
}
