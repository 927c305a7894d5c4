package testutil

import (
	"context"
	"net/http"
	"time"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// AsCaller returns req authenticated as party, the way the auth middleware
// would leave it.
func AsCaller(req *http.Request, party id.PartyID) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), party))
}

// AtLedgerTime returns req with the ledger time fixed to now.
func AtLedgerTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// CallerContext derives a service call context for party at ledger time now.
// A zero now leaves the wall clock in effect.
func CallerContext(ctx context.Context, party id.PartyID, now time.Time) context.Context {
	ctx = requestcontext.WithCaller(ctx, party)
	if !now.IsZero() {
		ctx = requestcontext.WithTime(ctx, now)
	}
	return ctx
}
