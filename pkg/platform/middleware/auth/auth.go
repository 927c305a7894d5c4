// Package auth authenticates bearer tokens and places the calling party in
// the request context.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/platform/middleware/request"
	"custodia/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Party id.PartyID
	JTI   string
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="custodia"`)
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
		Error:            "unauthenticated",
		ErrorDescription: description,
	})
}

// RequireAuth rejects requests without a valid bearer token. On success the
// token subject becomes requestcontext.Caller for the rest of the request.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithCaller(ctx, claims.Party)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
