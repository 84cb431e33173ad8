// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccessLog writes one structured line per request.  Health and metrics
// probes log at debug so they do not drown the file.
func AccessLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start).Truncate(time.Microsecond),
				"request_id", chimw.GetReqID(r.Context()),
			}
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				log.Debugw("http request", fields...)
				return
			}
			log.Infow("http request", fields...)
		})
	}
}
