package handler

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/models"
	"leasehold/pkg/domain"
)

// DomainResponse is the JSON form of a domain record.
type DomainResponse struct {
	Node      string     `json:"node"`
	TokenID   string     `json:"token_id"`
	RealOwner string     `json:"real_owner,omitempty"`
	Oracle    string     `json:"oracle,omitempty"`
	IsSetUp   bool       `json:"is_set_up"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toDomainResponse(d *models.DomainRecord) *DomainResponse {
	resp := &DomainResponse{
		Node:    d.Node.String(),
		TokenID: d.Node.TokenID(),
		Oracle:  d.OracleRef,
		IsSetUp: d.IsSetUp,
	}
	if !d.RealOwner.IsZero() {
		resp.RealOwner = d.RealOwner.String()
	}
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// LeaseResponse is the JSON form of a subdomain lease.
type LeaseResponse struct {
	Node            string            `json:"node"`
	Parent          string            `json:"parent,omitempty"`
	Label           string            `json:"label,omitempty"`
	Owner           string            `json:"owner,omitempty"`
	ResolvedAddress string            `json:"resolved_address,omitempty"`
	Status          string            `json:"status"`
	Expiry          *time.Time        `json:"expiry,omitempty"`
	Price           *decimal.Decimal  `json:"price,omitempty"`
	Oracle          string            `json:"oracle,omitempty"`
	Fuses           uint32            `json:"fuses,omitempty"`
	Records         map[string]string `json:"records,omitempty"`
	RegisteredAt    *time.Time        `json:"registered_at,omitempty"`
}

func toLeaseResponse(l *models.SubdomainLease) *LeaseResponse {
	resp := &LeaseResponse{
		Node:   l.Node.String(),
		Status: string(l.Status),
	}
	if l.Status == models.LeaseStatusUnregistered {
		return resp
	}
	expiry, registered, price := l.Expiry, l.RegisteredAt, l.Price
	resp.Parent = l.Parent.String()
	resp.Label = l.Label
	resp.Owner = l.Owner.String()
	if !l.ResolvedAddress.IsZero() {
		resp.ResolvedAddress = l.ResolvedAddress.String()
	}
	resp.Expiry = &expiry
	resp.Price = &price
	resp.Oracle = l.OracleRef
	resp.Fuses = uint32(l.Fuses)
	resp.Records = l.Records
	resp.RegisteredAt = &registered
	return resp
}

// LeaseListResponse is returned by GET /domains/{node}/subdomains.
type LeaseListResponse struct {
	Leases []*LeaseResponse `json:"leases"`
}

// OracleResponse is returned by GET /domains/{node}/oracle.
type OracleResponse struct {
	Node   string `json:"node"`
	Oracle string `json:"oracle"`
}

// PriceResponse is returned by GET /domains/{node}/rent-price.
type PriceResponse struct {
	Node          string          `json:"node"`
	Price         decimal.Decimal `json:"price"`
	PeriodSeconds int64           `json:"period_seconds"`
}

// AvailabilityResponse answers single and batch availability reads.
type AvailabilityResponse struct {
	Node      string          `json:"node,omitempty"`
	Available *bool           `json:"available,omitempty"`
	Labels    map[string]bool `json:"labels,omitempty"`
}

// CanRegisterResponse is returned by GET /domains/{node}/can-register.
type CanRegisterResponse struct {
	Node        string `json:"node"`
	CanRegister bool   `json:"can_register"`
}

// HashResponse is returned by GET /names/hash.
type HashResponse struct {
	Name      string `json:"name"`
	Node      string `json:"node"`
	TokenID   string `json:"token_id"`
	Labelhash string `json:"labelhash,omitempty"`
}

func toHashResponse(name string) *HashResponse {
	node := domain.Namehash(name)
	resp := &HashResponse{Name: name, Node: node.String(), TokenID: node.TokenID()}
	if label, _, _ := strings.Cut(name, "."); label != "" {
		lh := domain.Labelhash(label)
		resp.Labelhash = "0x" + hex.EncodeToString(lh[:])
	}
	return resp
}
