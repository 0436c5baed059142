package oracle

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/ports"
	dErrors "leasehold/pkg/domain-errors"
)

// Well-known references.
const (
	RefBasic    = "basic"
	RefTiered   = "tiered"
	RefReserved = "reserved"
	RefRemote   = "remote"
)

// Registry resolves oracle references stored on domain records.
type Registry struct {
	mu      sync.RWMutex
	oracles map[string]ports.Oracle
}

var _ ports.OracleResolver = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{oracles: make(map[string]ports.Oracle)}
}

// Register binds ref to o, replacing any previous binding.
func (r *Registry) Register(ref string, o ports.Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[ref] = o
}

// Resolve returns the oracle bound to ref.
func (r *Registry) Resolve(ref string) (ports.Oracle, error) {
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "oracle reference is required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[ref]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown oracle %q", ref)
	}
	return o, nil
}

// Refs lists registered references in sorted order.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.oracles))
	for ref := range r.oracles {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// ReservedLabels are refused by the "reserved" oracle.
var ReservedLabels = []string{"admin", "root", "www", "mail", "ns1", "ns2"}

// NewDefaultRegistry registers the built-in oracles. basic charges basicPrice
// flat; tiered charges by label length and refuses labels under three characters.
func NewDefaultRegistry(basicPrice decimal.Decimal) *Registry {
	tiered := &Tiered{
		ByLength: map[int]decimal.Decimal{
			3: decimal.NewFromInt(640),
			4: decimal.NewFromInt(160),
		},
		Default:   decimal.NewFromInt(5),
		MinLength: 3,
	}
	r := NewRegistry()
	r.Register(RefBasic, NewFixed(basicPrice))
	r.Register(RefTiered, tiered)
	r.Register(RefReserved, NewReserved(tiered, ReservedLabels...))
	return r
}
