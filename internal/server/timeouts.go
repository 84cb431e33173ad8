// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout        – abort slow-loris headers and bodies
//   • ReadHeaderTimeout  – same, for the header phase alone
//   • WriteTimeout       – cap total response time; a forced reset cycle
//                          runs inside the request, so keep this generous
//   • IdleTimeout        – close keep-alives on idle clients
//
// The values come from the `http` config block so cmd/web doesn’t repeat
// boilerplate.

package server

import (
	"net/http"
	"time"
)

// Timeouts mirrors config.HTTP.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// New constructs an *http.Server with the given timeouts.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: min(t.Read, 5*time.Second),
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
	}
}
