package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

// RegisterRequest asks for a lease on Label under Parent.
type RegisterRequest struct {
	Parent          domain.Node
	Label           string
	Owner           domain.Address
	ResolvedAddress domain.Address
	Duration        time.Duration
	// MaxFee bounds the accepted price. Nil accepts any price.
	MaxFee  *decimal.Decimal
	Fuses   domain.Fuses
	Records map[string]string
}

const maxRecords = 32

// Normalize trims whitespace from the label.
func (r *RegisterRequest) Normalize() {
	r.Label = strings.TrimSpace(r.Label)
}

// Validate checks request shape. Domain state is checked by the service.
func (r *RegisterRequest) Validate() error {
	if r.Parent.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "parent node is required")
	}
	if err := domain.ValidateLabel(r.Label); err != nil {
		return err
	}
	if r.Owner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "owner is required")
	}
	if r.Duration <= 0 {
		return ErrInvalidDuration()
	}
	if r.MaxFee != nil && r.MaxFee.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "max fee cannot be negative")
	}
	if r.Fuses != 0 && !r.Fuses.Has(domain.ParentCannotControl) {
		return dErrors.New(dErrors.CodeValidation, "child fuses require PARENT_CANNOT_CONTROL")
	}
	if len(r.Records) > maxRecords {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d text records", maxRecords)
	}
	for k := range r.Records {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeValidation, "text record keys must not be empty")
		}
	}
	return nil
}
