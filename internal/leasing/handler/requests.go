package handler

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/models"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	strutil "leasehold/pkg/platform/strings"
)

// maxLabelsPerQuery bounds GET /domains/{node}/available.
const maxLabelsPerQuery = 50

// maxDurationSeconds is the longest duration that still fits a time.Duration.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// OracleRequest is the body of POST /domains/{node}/setup and PUT /domains/{node}/oracle.
type OracleRequest struct {
	Oracle string `json:"oracle"`
}

// Validate implements httputil.Validatable.
func (r *OracleRequest) Validate() error {
	r.Oracle = strings.TrimSpace(r.Oracle)
	if r.Oracle == "" {
		return dErrors.New(dErrors.CodeValidation, "oracle is required")
	}
	return nil
}

// RegisterSubdomainRequest is the body of POST /domains/{node}/subdomains.
type RegisterSubdomainRequest struct {
	Label           string            `json:"label"`
	Owner           string            `json:"owner"`
	ResolvedAddress string            `json:"resolved_address,omitempty"`
	DurationSeconds int64             `json:"duration_seconds"`
	MaxFee          *decimal.Decimal  `json:"max_fee,omitempty"`
	Fuses           uint32            `json:"fuses,omitempty"`
	Records         map[string]string `json:"records,omitempty"`

	owner    domain.Address
	resolved domain.Address
}

// Validate parses addresses and bounds the duration. Label and fee rules are
// the engine's.
func (r *RegisterSubdomainRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.DurationSeconds <= 0 {
		return dErrors.New(dErrors.CodeInvalidDuration, "duration_seconds must be positive")
	}
	if r.DurationSeconds > maxDurationSeconds {
		return dErrors.Newf(dErrors.CodeInvalidDuration, "duration_seconds must not exceed %d", maxDurationSeconds)
	}
	owner, err := domain.ParseAddress(strings.TrimSpace(r.Owner))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "owner must be a 0x-prefixed address")
	}
	r.owner = owner
	r.resolved = owner
	if s := strings.TrimSpace(r.ResolvedAddress); s != "" {
		if r.resolved, err = domain.ParseAddress(s); err != nil {
			return dErrors.New(dErrors.CodeValidation, "resolved_address must be a 0x-prefixed address")
		}
	}
	return nil
}

// ToModel builds the engine request for parent.
func (r *RegisterSubdomainRequest) ToModel(parent domain.Node) models.RegisterRequest {
	return models.RegisterRequest{
		Parent:          parent,
		Label:           r.Label,
		Owner:           r.owner,
		ResolvedAddress: r.resolved,
		Duration:        time.Duration(r.DurationSeconds) * time.Second,
		MaxFee:          r.MaxFee,
		Fuses:           domain.Fuses(r.Fuses),
		Records:         r.Records,
	}
}

// parseNode accepts a 0x node or a dotted name, which is namehashed.
func parseNode(raw string) (domain.Node, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "0x") {
		return domain.ParseNode(raw)
	}
	if raw == "" {
		return domain.Node{}, dErrors.New(dErrors.CodeValidation, "node is required")
	}
	return domain.Namehash(strings.ToLower(raw)), nil
}

func parseLabels(raw string) ([]string, error) {
	labels := strutil.DedupeAndTrim(strings.Split(raw, ","))
	if len(labels) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "labels query parameter is required")
	}
	if len(labels) > maxLabelsPerQuery {
		return nil, dErrors.Newf(dErrors.CodeValidation, "at most %d labels per query", maxLabelsPerQuery)
	}
	return labels, nil
}
