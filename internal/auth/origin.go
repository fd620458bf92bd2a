package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/cwllll/auth-service/internal/httputil"
)

// RequireTrustedOrigin rejects state-changing requests whose Origin header
// does not match the configured allowlist, before any cookie is set.
// Requests without an Origin header pass: non-browser clients do not send
// one, and they authenticate with bearer headers rather than cookies.
func RequireTrustedOrigin(trustedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !OriginTrusted(origin, trustedOrigins) {
				httputil.RespondError(w, "origin not allowed", httputil.CodeUntrustedOrigin, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OriginTrusted reports whether an Origin header value matches the
// allowlist. Entries are exact origins ("https://app.example.com") or
// wildcard suffixes ("*.example.com") matching any subdomain on any scheme.
func OriginTrusted(origin string, trustedOrigins []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Hostname()

	for _, trusted := range trustedOrigins {
		if trusted == origin {
			return true
		}

		base, ok := strings.CutPrefix(trusted, "*.")
		if !ok {
			continue
		}
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
	}

	return false
}
