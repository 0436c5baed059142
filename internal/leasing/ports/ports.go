// Package ports declares the collaborators the leasing engine consumes.
package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"leasehold/pkg/domain"
)

// NameData is the Custodian's view of one wrapped name.
type NameData struct {
	Owner           domain.Address
	Fuses           domain.Fuses
	Expiry          time.Time
	ResolvedAddress domain.Address
	Records         map[string]string
}

// SubnodeRecord is what the engine writes into the Custodian for a leased subdomain.
// A zero Expiry inherits the parent's expiry.
type SubnodeRecord struct {
	Owner           domain.Address
	ResolvedAddress domain.Address
	Fuses           domain.Fuses
	Expiry          time.Time
	Records         map[string]string
}

// Custodian is the Name-Wrapping Custodian as seen by the engine account.
// Every mutation is performed with the engine as the acting identity.
type Custodian interface {
	OwnerOf(ctx context.Context, node domain.Node) (domain.Address, error)
	IsWrapped(ctx context.Context, node domain.Node) (bool, error)
	IsApprovedForAll(ctx context.Context, owner, operator domain.Address) (bool, error)
	// TransferCustody fails unless from is the current owner.
	TransferCustody(ctx context.Context, node domain.Node, from, to domain.Address) error
	SetSubnodeRecord(ctx context.Context, parent domain.Node, label string, rec SubnodeRecord) (domain.Node, error)
	GetData(ctx context.Context, node domain.Node) (NameData, error)
}

// QuoteRequest asks an oracle about registering Label under Parent for Duration.
// An empty Label asks for the baseline price.
type QuoteRequest struct {
	Parent   domain.Node
	Label    string
	Duration time.Duration
}

// Quote is an oracle's answer.
type Quote struct {
	Allowed bool
	Price   decimal.Decimal
	Reason  string
}

// Oracle is a pluggable pricing authority.
type Oracle interface {
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
}

// OracleResolver maps the oracle reference stored on a domain to an implementation.
type OracleResolver interface {
	Resolve(ref string) (Oracle, error)
}
