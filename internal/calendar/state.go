package calendar

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

const stateTTL = 10 * time.Minute

var errBadState = apperr.Validation("invalid or expired authorization state")

type stateClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// signState binds an authorization request to a tenant so the public
// callback can trust which tenant it is completing.
func signState(secret []byte, tenantID string, now time.Time) (string, error) {
	claims := stateClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			Subject:   "calendar-oauth",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("calendar: sign state: %w", err)
	}
	return signed, nil
}

func parseState(secret []byte, raw string, now time.Time) (string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject("calendar-oauth"),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || claims.TenantID == "" {
		return "", errBadState
	}
	return claims.TenantID, nil
}
