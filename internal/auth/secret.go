// internal/auth/secret.go
//
// Shared-secret guard for internal trigger endpoints.
//
// Context
// -------
// The reset trigger is called by an external cron or an operator, never
// by end users.  It authenticates with one shared secret presented as
// either header:
//
//	Authorization: Bearer <secret>
//	X-Trigger-Secret: <secret>
//
// Unauthorized requests get 401 and never reach the handler, so no reset
// work happens.
//
// Notes
// -----
// • Comparison is constant-time.
// • An empty configured secret leaves the endpoint open outside
//   production (with a warning per request) and closed in production.
// • Oxford commas, two spaces after periods.

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/availability/internal/metrics"
)

// HeaderSecret is the alternative to a bearer token.
const HeaderSecret = "X-Trigger-Secret"

// RequireSecret returns middleware that admits only requests carrying
// secret.
func RequireSecret(secret string, production bool, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	want := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				if production {
					reject(w, r, log, "no trigger secret configured")
					return
				}
				log.Warnw("trigger secret not configured, admitting request", "path", r.URL.Path, "remote", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}

			got := presented(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				reject(w, r, log, "bad or missing trigger secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presented extracts the caller's secret, preferring the bearer token.
func presented(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return r.Header.Get(HeaderSecret)
}

func reject(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, why string) {
	metrics.TriggerRejectedTotal.Inc()
	log.Warnw("trigger rejected", "reason", why, "path", r.URL.Path, "remote", r.RemoteAddr)
	w.Header().Set("WWW-Authenticate", `Bearer realm="trigger"`)
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
