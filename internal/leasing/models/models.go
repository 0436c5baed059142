package models

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

// DomainRecord is the engine's bookkeeping for one parent domain.
//
// Invariants:
//   - IsSetUp implies RealOwner is non-zero and OracleRef is non-empty
//   - RealOwner only changes when a set-up cycle starts
type DomainRecord struct {
	Node      domain.Node    `json:"node"`
	RealOwner domain.Address `json:"real_owner"`
	OracleRef string         `json:"oracle_ref,omitempty"`
	IsSetUp   bool           `json:"is_set_up"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewDomainRecord returns a record that is known but not under custody.
func NewDomainRecord(node domain.Node, now time.Time) *DomainRecord {
	return &DomainRecord{Node: node, CreatedAt: now, UpdatedAt: now}
}

// HasOracle reports whether an oracle reference is bound.
func (d *DomainRecord) HasOracle() bool {
	return d.OracleRef != ""
}

// ApplySetup starts a custody cycle for realOwner.
func (d *DomainRecord) ApplySetup(realOwner domain.Address, oracleRef string, now time.Time) error {
	if realOwner.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "real owner cannot be the zero address")
	}
	if oracleRef == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "oracle reference is required")
	}
	d.RealOwner = realOwner
	d.OracleRef = oracleRef
	d.IsSetUp = true
	d.UpdatedAt = now
	return nil
}

// ApplyRecovery ends the custody cycle. RealOwner and OracleRef are kept.
func (d *DomainRecord) ApplyRecovery(now time.Time) {
	d.IsSetUp = false
	d.UpdatedAt = now
}

// ApplyOracle rebinds the oracle reference.
func (d *DomainRecord) ApplyOracle(ref string, now time.Time) {
	d.OracleRef = ref
	d.UpdatedAt = now
}

// LeaseStatus is the lifecycle state of a subdomain lease.
type LeaseStatus string

const (
	LeaseStatusUnregistered LeaseStatus = "unregistered"
	LeaseStatusActive       LeaseStatus = "active"
	LeaseStatusExpired      LeaseStatus = "expired"
	LeaseStatusRecovered    LeaseStatus = "recovered"
)

// IsValid reports whether s is a known status.
func (s LeaseStatus) IsValid() bool {
	switch s {
	case LeaseStatusUnregistered, LeaseStatusActive, LeaseStatusExpired, LeaseStatusRecovered:
		return true
	}
	return false
}

// SubdomainLease is a time-bounded right to a subdomain.
//
// Only Active and Recovered are stored. Expired is derived from Expiry at read time.
type SubdomainLease struct {
	Node            domain.Node       `json:"node"`
	Parent          domain.Node       `json:"parent"`
	Label           string            `json:"label"`
	Owner           domain.Address    `json:"owner"`
	ResolvedAddress domain.Address    `json:"resolved_address"`
	Status          LeaseStatus       `json:"status"`
	Expiry          time.Time         `json:"expiry"`
	Price           decimal.Decimal   `json:"price"`
	OracleRef       string            `json:"oracle_ref,omitempty"`
	Fuses           domain.Fuses      `json:"fuses"`
	Records         map[string]string `json:"records,omitempty"`
	RegisteredAt    time.Time         `json:"registered_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewLease builds an active lease for label under parent.
func NewLease(parent domain.Node, label string, owner, resolved domain.Address, expiry time.Time, price decimal.Decimal, oracleRef string, fuses domain.Fuses, records map[string]string, now time.Time) (*SubdomainLease, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lease owner cannot be the zero address")
	}
	if !expiry.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lease expiry must be in the future")
	}
	if price.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lease price cannot be negative")
	}
	return &SubdomainLease{
		Node:            domain.Subnode(parent, label),
		Parent:          parent,
		Label:           label,
		Owner:           owner,
		ResolvedAddress: resolved,
		Status:          LeaseStatusActive,
		Expiry:          expiry,
		Price:           price,
		OracleRef:       oracleRef,
		Fuses:           fuses,
		Records:         maps.Clone(records),
		RegisteredAt:    now,
		UpdatedAt:       now,
	}, nil
}

// UnregisteredLease is the record returned for a subdomain nobody has leased.
func UnregisteredLease(node domain.Node) *SubdomainLease {
	return &SubdomainLease{Node: node, Status: LeaseStatusUnregistered, Price: decimal.Zero}
}

// StatusAt returns the effective status at now.
func (l *SubdomainLease) StatusAt(now time.Time) LeaseStatus {
	if l == nil {
		return LeaseStatusUnregistered
	}
	if l.Status == LeaseStatusActive && !now.Before(l.Expiry) {
		return LeaseStatusExpired
	}
	return l.Status
}

// AvailableAt reports whether the subdomain may be registered at now.
func (l *SubdomainLease) AvailableAt(now time.Time) bool {
	switch l.StatusAt(now) {
	case LeaseStatusUnregistered, LeaseStatusExpired, LeaseStatusRecovered:
		return true
	}
	return false
}

// ViewAt returns a copy with the effective status filled in.
func (l *SubdomainLease) ViewAt(now time.Time) *SubdomainLease {
	v := *l
	v.Status = l.StatusAt(now)
	v.Records = maps.Clone(l.Records)
	return &v
}

// ApplyReclaim hands the subdomain back to the parent's real owner.
func (l *SubdomainLease) ApplyReclaim(now time.Time) {
	l.Status = LeaseStatusRecovered
	if l.Expiry.After(now) {
		l.Expiry = now
	}
	l.UpdatedAt = now
}
