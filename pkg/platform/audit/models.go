package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// It drives retention and routing downstream of the outbox.
type EventCategory string

const (
	// CategoryCompliance covers custody movements: who held a name and when.
	// These require long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who or what may act on a domain,
	// such as a pricing policy being swapped.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine leasing activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the leasing engine to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Domain is the parent domain node the action belongs to.
	Domain string
	// Subject is the node acted on: the domain itself or one of its subdomains.
	Subject string
	// ActorID is the caller address that performed the action.
	ActorID         string
	Decision        string
	Reason          string
	RequestID       string
	RequestingParty string
	Details         map[string]string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDomain(ctx context.Context, domain string) ([]Event, error)
}

type AuditEvent string

const (
	EventDomainSetup         AuditEvent = "domain_setup"
	EventDomainRecovered     AuditEvent = "domain_recovered"
	EventOracleChanged       AuditEvent = "oracle_changed"
	EventSubdomainRegistered AuditEvent = "subdomain_registered"
	EventSubdomainReclaimed  AuditEvent = "subdomain_reclaimed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDomainSetup:         CategoryCompliance,
	EventDomainRecovered:     CategoryCompliance,
	EventSubdomainReclaimed:  CategoryCompliance,
	EventOracleChanged:       CategorySecurity,
	EventSubdomainRegistered: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
