// Package admin guards operator routes with a shared static token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "leasehold/pkg/domain-errors"
	"leasehold/pkg/platform/httputil"
	request "leasehold/pkg/platform/middleware/request"
)

// HeaderName carries the operator token.
const HeaderName = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderName)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
