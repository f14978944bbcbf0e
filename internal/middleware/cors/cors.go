package cors

import (
	"net/http"
	"net/url"
	"strings"
)

// Middleware applies Cross-Origin Resource Sharing headers and answers
// preflight requests.
//
// allowed is "*" (any origin) or a comma separated list of origins such as
// "http://localhost:5173,https://dash.example.com".
func Middleware(allowed string) func(http.Handler) http.Handler {
	anyOrigin := strings.TrimSpace(allowed) == "" || strings.TrimSpace(allowed) == "*"
	origins := parseOrigins(allowed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case anyOrigin:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && IsOriginAllowed(origin, origins):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			default:
				if r.Method == http.MethodOptions && origin != "" {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Dataset-Status")
			h.Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(allowed string) []string {
	var out []string
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			out = append(out, strings.ToLower(strings.TrimRight(o, "/")))
		}
	}
	return out
}

// IsOriginAllowed compares scheme and host of origin against the allow list.
func IsOriginAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	normalized := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, a := range allowed {
		if a == normalized {
			return true
		}
	}
	return false
}

// OriginChecker returns a predicate for websocket upgrades using the same
// allow list as Middleware. Requests without an Origin header pass.
func OriginChecker(allowed string) func(*http.Request) bool {
	trimmed := strings.TrimSpace(allowed)
	if trimmed == "" || trimmed == "*" {
		return func(*http.Request) bool { return true }
	}
	origins := parseOrigins(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || IsOriginAllowed(origin, origins)
	}
}
