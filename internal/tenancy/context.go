package tenancy

import (
	"context"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

type ctxKey string

const (
	tenantKey   ctxKey = "vetclinic.tenant_id"
	userKey     ctxKey = "vetclinic.user_id"
	locationKey ctxKey = "vetclinic.location"
)

// WithTenantID stores the resolved tenant id in context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantIDFromContext extracts the tenant id if present.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, tenantKey)
}

// WithUserID stores the authenticated user id in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserIDFromContext extracts the user id if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, userKey)
}

// WithLocation stores the clinic timezone used for wall-clock rules.
func WithLocation(ctx context.Context, loc *time.Location) context.Context {
	return context.WithValue(ctx, locationKey, loc)
}

// LocationFromContext returns the clinic timezone, or UTC when unset.
func LocationFromContext(ctx context.Context) *time.Location {
	if loc, ok := ctx.Value(locationKey).(*time.Location); ok && loc != nil {
		return loc
	}
	return time.UTC
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	val := ctx.Value(key)
	if val == nil {
		return "", false
	}
	s, ok := val.(string)
	return s, ok && s != ""
}

// RequireTenantID returns the tenant id or an unauthorized error when the
// request never passed tenant resolution.
func RequireTenantID(ctx context.Context) (string, error) {
	tenantID, ok := TenantIDFromContext(ctx)
	if !ok {
		return "", apperr.Unauthorized("tenant context missing")
	}
	return tenantID, nil
}
