// Package requesttime pins one ledger time per HTTP request. Attestation
// windows, receipts and repo maturity all read the same instant.
package requesttime

import (
	"net/http"
	"time"

	"custodia/pkg/requestcontext"
)

// Middleware stamps the request context with time.Now.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps the request context with clock(). Tests use it to run
// requests at a fixed ledger time.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
