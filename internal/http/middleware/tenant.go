package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/internal/tenants"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// TenantHeader carries the clinic subdomain on every tenant-scoped request.
const TenantHeader = "X-Tenant-ID"

// TenantLookup resolves an active tenant by subdomain.
type TenantLookup interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*tenants.Tenant, error)
}

// ResolveTenant loads the tenant named by X-Tenant-ID and stores its id and
// timezone in the request context. It must run after RequireUser: a token
// issued for another tenant is rejected with 403.
func ResolveTenant(lookup TenantLookup, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain := tenants.NormalizeSubdomain(r.Header.Get(TenantHeader))
			if subdomain == "" && isWebSocketUpgrade(r) {
				subdomain = tenants.NormalizeSubdomain(r.URL.Query().Get("tenant"))
			}
			if subdomain == "" {
				httpjson.Error(w, logger, apperr.Validation("Tenant identifier missing. Please provide X-Tenant-ID header."))
				return
			}

			tenant, err := lookup.GetBySubdomain(r.Context(), subdomain)
			if errors.Is(err, tenants.ErrNotFound) {
				httpjson.Error(w, logger, apperr.NotFound("tenant '"+subdomain+"'"))
				return
			}
			if err != nil {
				httpjson.Error(w, logger, err)
				return
			}

			if claims, ok := ClaimsFromContext(r.Context()); ok && claims.TenantID != tenant.ID {
				logger.Warn("tenant mismatch", "header_tenant", tenant.ID, "token_tenant", claims.TenantID, "user_id", claims.Subject)
				httpjson.Error(w, logger, apperr.Forbidden("token is not valid for this tenant"))
				return
			}

			ctx := tenancy.WithTenantID(r.Context(), tenant.ID)
			ctx = tenancy.WithLocation(ctx, tenant.Location())
			w.Header().Set(TenantHeader, tenant.Subdomain)
			w.Header().Set("X-Tenant-Name", tenant.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
