package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type fakeRepo struct {
	entries []Entry
	last    Filters
}

func (f *fakeRepo) Trail(_ context.Context, businessID int64, filters Filters) ([]Entry, int, error) {
	f.last = filters
	var matched []Entry
	for _, e := range f.entries {
		if e.BusinessID != businessID {
			continue
		}
		if filters.Entity != "" && e.Entity != filters.Entity {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	start := (filters.Page - 1) * filters.PageSize
	if start > total {
		start = total
	}
	end := start + filters.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func entryAt(id int64, entity shared.AuditEntity) Entry {
	return Entry{ID: id, BusinessID: 1, ActorID: 7, Action: "voucher.create", Entity: entity, EntityID: id, OccurredAt: time.Now()}
}

func TestTrailClampsPaging(t *testing.T) {
	f := &fakeRepo{}
	svc := NewService(f)
	tenant := shared.Tenant{BusinessID: 1, UserID: 7}

	_, err := svc.Trail(context.Background(), tenant, Filters{Page: -1, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 1, f.last.Page)
	require.Equal(t, 50, f.last.PageSize)

	_, err = svc.Trail(context.Background(), tenant, Filters{})
	require.NoError(t, err)
	require.Equal(t, 20, f.last.PageSize)
}

func TestTrailPagingInfo(t *testing.T) {
	f := &fakeRepo{}
	for i := int64(1); i <= 45; i++ {
		f.entries = append(f.entries, entryAt(i, shared.AuditEntityVoucher))
	}
	svc := NewService(f)
	tenant := shared.Tenant{BusinessID: 1, UserID: 7}

	result, err := svc.Trail(context.Background(), tenant, Filters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Entries, 20)
	require.Equal(t, 45, result.Paging.Total)
	require.True(t, result.Paging.HasNext)

	result, err = svc.Trail(context.Background(), tenant, Filters{Page: 3, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Entries, 5)
	require.False(t, result.Paging.HasNext)
}

func TestTrailScopedToTenant(t *testing.T) {
	f := &fakeRepo{entries: []Entry{entryAt(1, shared.AuditEntityVoucher), {ID: 2, BusinessID: 2, Entity: shared.AuditEntityVoucher}}}
	svc := NewService(f)

	result, err := svc.Trail(context.Background(), shared.Tenant{BusinessID: 1, UserID: 7}, Filters{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, int64(1), result.Entries[0].ID)
}
