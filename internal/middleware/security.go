// internal/middleware/security.go
//
// Security-header middleware for a JSON API.
//
// Injects headers on every response:
//
//   • X-Content-Type-Options  –  MIME-sniffing defence
//   • Cache-Control           –  API answers are per-request, never cached
//   • X-Frame-Options         –  click-jacking defence
//   • Content-Security-Policy –  nothing to load, nothing to frame
//   • Referrer-Policy         –  no referrer leaves the service
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP, because a handler that calls
//   WriteHeader freezes the header map.  Handlers may still override.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		nosn  = "nosniff"
		cache = "no-store"
		xfo   = "DENY"
		csp   = "default-src 'none'; frame-ancestors 'none'"
		refer = "no-referrer"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Cache-Control", cache)
		h.Set("X-Frame-Options", xfo)
		h.Set("Content-Security-Policy", csp)
		h.Set("Referrer-Policy", refer)
		next.ServeHTTP(w, r)
	})
}
