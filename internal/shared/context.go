package shared

import "context"

// Tenant identifies the business scope and acting user of a request.
// The core never infers it; the caller resolves and supplies it.
type Tenant struct {
	BusinessID int64
	UserID     int64
}

// Valid reports whether the tenant carries a usable business scope.
func (t Tenant) Valid() bool {
	return t.BusinessID > 0
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant in context.
func ContextWithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFromContext extracts the tenant from context.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return t, ok && t.Valid()
}
