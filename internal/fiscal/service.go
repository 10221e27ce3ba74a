package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages financial years.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// CreateInput carries the fields for a new financial year.
type CreateInput struct {
	StartDate time.Time
	EndDate   time.Time
	IsCurrent bool
}

// Create adds a financial year. Ranges may not overlap an existing year of
// the same business; marking it current clears the previous current year.
func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input CreateInput) (FinancialYear, error) {
	if !input.EndDate.After(input.StartDate) {
		return FinancialYear{}, fmt.Errorf("%w: end date must be after start date", shared.ErrValidation)
	}
	var created FinancialYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.List(ctx, tenant.BusinessID)
		if err != nil {
			return err
		}
		for _, y := range existing {
			if y.Overlaps(input.StartDate, input.EndDate) {
				return fmt.Errorf("%w: range overlaps financial year %d", shared.ErrValidation, y.ID)
			}
		}
		if input.IsCurrent {
			if err := tx.ClearCurrent(ctx, tenant.BusinessID); err != nil {
				return err
			}
		}
		inserted, err := tx.Insert(ctx, FinancialYear{
			BusinessID: tenant.BusinessID,
			StartDate:  input.StartDate,
			EndDate:    input.EndDate,
			IsCurrent:  input.IsCurrent,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return FinancialYear{}, err
	}
	s.record(ctx, tenant, "financial_year.create", created.ID, nil)
	return created, nil
}

// SetCurrent marks the year current and clears the flag from any other year
// of the business, atomically.
func (s *Service) SetCurrent(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		if err := tx.ClearCurrent(ctx, tenant.BusinessID); err != nil {
			return err
		}
		return tx.SetCurrent(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "financial_year.set_current", id, nil)
	return nil
}

// Lock freezes the year against voucher mutation.
func (s *Service) Lock(ctx context.Context, tenant shared.Tenant, id int64) error {
	return s.setLocked(ctx, tenant, id, true)
}

// Unlock restores normal voucher mutation for the year.
func (s *Service) Unlock(ctx context.Context, tenant shared.Tenant, id int64) error {
	return s.setLocked(ctx, tenant, id, false)
}

func (s *Service) setLocked(ctx context.Context, tenant shared.Tenant, id int64, locked bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		return tx.SetLocked(ctx, tenant.BusinessID, id, locked)
	})
	if err != nil {
		return err
	}
	action := "financial_year.lock"
	if !locked {
		action = "financial_year.unlock"
	}
	s.record(ctx, tenant, action, id, nil)
	return nil
}

// Delete removes a year with no vouchers.
func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.Get(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if year.IsCurrent {
			return fmt.Errorf("%w: current financial year cannot be deleted", shared.ErrConflict)
		}
		vouchers, err := tx.CountVouchers(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if vouchers > 0 {
			return fmt.Errorf("%w: financial year has vouchers", shared.ErrConflict)
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "financial_year.delete", id, nil)
	return nil
}

// List fetches the business's financial years, newest first.
func (s *Service) List(ctx context.Context, tenant shared.Tenant) ([]FinancialYear, error) {
	return s.repo.List(ctx, tenant.BusinessID)
}

// Get fetches one financial year.
func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (FinancialYear, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// Current returns the business's current financial year.
func (s *Service) Current(ctx context.Context, tenant shared.Tenant) (FinancialYear, error) {
	return s.repo.Current(ctx, tenant.BusinessID)
}

// FindByDate resolves the year containing the date.
func (s *Service) FindByDate(ctx context.Context, tenant shared.Tenant, date time.Time) (FinancialYear, error) {
	return s.repo.FindByDate(ctx, tenant.BusinessID, date)
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityFinancialYear,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
