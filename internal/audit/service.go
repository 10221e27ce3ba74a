package audit

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Entry is one immutable audit trail row.
type Entry struct {
	ID         int64              `json:"id"`
	BusinessID int64              `json:"business_id"`
	ActorID    int64              `json:"actor_id"`
	Action     string             `json:"action"`
	Entity     shared.AuditEntity `json:"entity"`
	EntityID   int64              `json:"entity_id"`
	Meta       map[string]any     `json:"meta,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Filters narrows a trail query. Zero values mean "any".
type Filters struct {
	Entity   shared.AuditEntity
	EntityID int64
	ActorID  int64
	Action   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// PagingInfo describes the window a result covers.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasNext  bool `json:"has_next"`
}

// Result bundles trail rows with paging information.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

// Repository reads the audit trail.
type Repository interface {
	Trail(ctx context.Context, businessID int64, filters Filters) ([]Entry, int, error)
}

// Service serves read-only audit trail queries; writes happen through
// shared.AuditLogger at the mutation sites.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Trail returns trail rows for the tenant, newest first.
func (s *Service) Trail(ctx context.Context, tenant shared.Tenant, filters Filters) (Result, error) {
	if filters.PageSize <= 0 {
		filters.PageSize = defaultPageSize
	}
	if filters.PageSize > maxPageSize {
		filters.PageSize = maxPageSize
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	entries, total, err := s.repo.Trail(ctx, tenant.BusinessID, filters)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Entries: entries,
		Paging: PagingInfo{
			Page:     filters.Page,
			PageSize: filters.PageSize,
			Total:    total,
			HasNext:  filters.Page*filters.PageSize < total,
		},
	}, nil
}
