package testutil

import (
	"net/http"

	"leasehold/pkg/domain"
	"leasehold/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware does for authenticated requests.
// Invalid addresses are silently ignored.
func WithCaller(req *http.Request, caller string) *http.Request {
	addr, err := domain.ParseAddress(caller)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), addr))
}
