package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

type contextKey string

const claimsKey contextKey = "userClaims"

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// RequireUser verifies an HMAC-signed bearer token and stores the caller's
// user id and claims in the request context. Browsers cannot set headers
// on a WebSocket handshake, so upgrade requests may pass the token as
// ?access_token=.
func RequireUser(secret, issuer string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpjson.Error(w, logger, apperr.Unauthorized("authentication is not configured"))
				return
			}
			raw := bearerToken(r)
			if raw == "" {
				httpjson.Error(w, logger, apperr.Unauthorized("missing authorization header"))
				return
			}
			claims := &Claims{}
			token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" || claims.TenantID == "" {
				httpjson.Error(w, logger, apperr.Unauthorized("could not validate credentials"))
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = tenancy.WithUserID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified token claims if present.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if isWebSocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
