package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"leasehold/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	const caller = "0x00000000000000000000000000000000000000aa"

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context()).String()
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad")}, http.StatusUnauthorized},
		{"subject not an address", "Bearer abc", stubValidator{claims: &JWTClaims{Caller: "alice"}}, http.StatusUnauthorized},
		{"valid token", "Bearer abc", stubValidator{claims: &JWTClaims{Caller: caller, JTI: "j"}}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			RequireAuth(tt.validator, logger)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, caller, seen)
			} else {
				assert.Empty(t, seen)
			}
		})
	}
}
