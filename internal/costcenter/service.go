package costcenter

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

// Service manages the cost-center hierarchy.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Input carries the fields for creating or updating a cost center.
type Input struct {
	ParentID *int64
	Name     string
	Code     string
	IsActive bool
}

func (in Input) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: cost center name required", shared.ErrValidation)
	}
	if in.Code == "" {
		return fmt.Errorf("%w: cost center code required", shared.ErrValidation)
	}
	return nil
}

// Create adds a cost center, optionally under a parent.
func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input Input) (CostCenter, error) {
	if err := input.validate(); err != nil {
		return CostCenter{}, err
	}
	var created CostCenter
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			if _, err := tx.Get(ctx, tenant.BusinessID, *input.ParentID); err != nil {
				return err
			}
		}
		exists, err := tx.CodeExists(ctx, tenant.BusinessID, input.Code, 0)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: cost center code %q already in use", shared.ErrConflict, input.Code)
		}
		inserted, err := tx.Insert(ctx, CostCenter{
			BusinessID: tenant.BusinessID,
			ParentID:   input.ParentID,
			Name:       input.Name,
			Code:       input.Code,
			IsActive:   true,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return CostCenter{}, err
	}
	s.record(ctx, tenant, "cost_center.create", created.ID)
	return created, nil
}

// Update mutates a cost center, guarding against hierarchy cycles.
func (s *Service) Update(ctx context.Context, tenant shared.Tenant, id int64, input Input) (CostCenter, error) {
	if err := input.validate(); err != nil {
		return CostCenter{}, err
	}
	var updated CostCenter
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		center, err := tx.Get(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if input.ParentID != nil {
			if *input.ParentID == center.ID {
				return fmt.Errorf("%w: cost center cannot be its own parent", shared.ErrValidation)
			}
			if _, err := tx.Get(ctx, tenant.BusinessID, *input.ParentID); err != nil {
				return err
			}
			all, err := tx.List(ctx, tenant.BusinessID)
			if err != nil {
				return err
			}
			if _, isDescendant := DescendantIDs(all, center.ID)[*input.ParentID]; isDescendant {
				return fmt.Errorf("%w: cost center cannot be moved under its own descendant", shared.ErrValidation)
			}
		}
		exists, err := tx.CodeExists(ctx, tenant.BusinessID, input.Code, id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: cost center code %q already in use", shared.ErrConflict, input.Code)
		}
		center.ParentID = input.ParentID
		center.Name = input.Name
		center.Code = input.Code
		center.IsActive = input.IsActive
		if err := tx.Update(ctx, center); err != nil {
			return err
		}
		updated = center
		return nil
	})
	if err != nil {
		return CostCenter{}, err
	}
	s.record(ctx, tenant, "cost_center.update", updated.ID)
	return updated, nil
}

// Delete removes a cost center without children or tagged transactions.
func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		children, err := tx.CountChildren(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: cost center has child centers", shared.ErrConflict)
		}
		transactions, err := tx.CountTransactions(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		if transactions > 0 {
			return fmt.Errorf("%w: cost center has transactions", shared.ErrConflict)
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "cost_center.delete", id)
	return nil
}

// List fetches all cost centers for the business.
func (s *Service) List(ctx context.Context, tenant shared.Tenant) ([]CostCenter, error) {
	return s.repo.List(ctx, tenant.BusinessID)
}

// FlattenHierarchy returns the pre-order listing of cost centers.
func (s *Service) FlattenHierarchy(ctx context.Context, tenant shared.Tenant) ([]FlatCostCenter, error) {
	centers, err := s.repo.List(ctx, tenant.BusinessID)
	if err != nil {
		return nil, err
	}
	return Flatten(centers), nil
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityCostCenter,
		EntityID:   entityID,
		At:         s.now(),
	})
}
