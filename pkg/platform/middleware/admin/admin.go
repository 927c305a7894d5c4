// Package admin gates administrative routes on a role held by the caller.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"custodia/pkg/platform/httputil"
	request "custodia/pkg/platform/middleware/request"
	"custodia/pkg/requestcontext"
)

// Authorizer checks that the caller in ctx holds role.
type Authorizer[R any] interface {
	Require(ctx context.Context, role R) error
}

// RequireRole rejects callers lacking role before the handler runs. Use it
// for routes whose service has no authorization of its own.
func RequireRole[R any](authz Authorizer[R], role R, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := authz.Require(ctx, role); err != nil {
				logger.WarnContext(ctx, "admin role check failed",
					"request_id", request.GetRequestID(ctx),
					"caller", requestcontext.Caller(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
