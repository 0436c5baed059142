package admin

import (
	"time"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

const (
	defaultTokenTTL = time.Hour
	maxTokenTTL     = 24 * time.Hour
)

// IssueTokenRequest asks for a bearer token acting as Caller.
type IssueTokenRequest struct {
	Caller     string `json:"caller"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`

	caller domain.Address
	ttl    time.Duration
}

func (r *IssueTokenRequest) Validate() error {
	addr, err := domain.ParseAddress(r.Caller)
	if err != nil {
		return err
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "caller must not be the zero address")
	}
	r.caller = addr
	r.ttl = time.Duration(r.TTLSeconds) * time.Second
	switch {
	case r.TTLSeconds == 0:
		r.ttl = defaultTokenTTL
	case r.TTLSeconds < 0 || r.ttl > maxTokenTTL:
		return dErrors.Newf(dErrors.CodeValidation, "ttl_seconds must be between 1 and %d", int64(maxTokenTTL/time.Second))
	}
	return nil
}
