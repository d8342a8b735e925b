package middleware

import (
	"net/http"
	"strings"
)

// CORS is an allowlist CORS middleware for the clinic dashboards. If
// allowedOrigins contains "*", any Origin is echoed back. An entry such as
// "https://*.vetclinic.app" admits every clinic subdomain of that host.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := OriginMatcher(allowedOrigins)

	allowedHeaders := "Authorization, Content-Type, X-Tenant-ID, X-Request-ID"
	allowedMethods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	exposedHeaders := "X-Tenant-ID, X-Tenant-Name, X-Request-ID"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OriginMatcher compiles an origin allowlist using the rules of CORS.
func OriginMatcher(allowedOrigins []string) func(origin string) bool {
	allowAny := false
	allow := map[string]struct{}{}
	var wildcards []wildcardOrigin
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			wildcards = append(wildcards, wildcardOrigin{prefix: scheme + "://", suffix: "." + host})
			continue
		}
		allow[origin] = struct{}{}
	}
	return func(origin string) bool {
		return allowAny || isAllowedOrigin(allow, wildcards, origin)
	}
}

type wildcardOrigin struct {
	prefix string
	suffix string
}

func isAllowedOrigin(allow map[string]struct{}, wildcards []wildcardOrigin, origin string) bool {
	if _, ok := allow[origin]; ok {
		return true
	}
	for _, w := range wildcards {
		if !strings.HasPrefix(origin, w.prefix) {
			continue
		}
		sub := strings.TrimSuffix(strings.TrimPrefix(origin, w.prefix), w.suffix)
		// Exactly one DNS label in front of the suffix.
		if strings.HasSuffix(origin, w.suffix) && sub != "" && !strings.ContainsAny(sub, "./:") {
			return true
		}
	}
	return false
}
