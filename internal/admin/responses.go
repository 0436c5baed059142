package admin

import (
	"time"

	audit "leasehold/pkg/platform/audit"
)

// TokenResponse carries a freshly issued caller token.
type TokenResponse struct {
	Token     string    `json:"token"`
	Caller    string    `json:"caller"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuditEventResponse is one audit entry as operators see it.
type AuditEventResponse struct {
	Action    string            `json:"action"`
	Category  string            `json:"category"`
	Subject   string            `json:"subject,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditTrailResponse lists the audit history of one domain, oldest first.
type AuditTrailResponse struct {
	Domain string                `json:"domain"`
	Events []*AuditEventResponse `json:"events"`
	Total  int                   `json:"total"`
}

func toAuditTrailResponse(domain string, events []audit.Event) *AuditTrailResponse {
	out := make([]*AuditEventResponse, len(events))
	for i, e := range events {
		out[i] = &AuditEventResponse{
			Action:    e.Action,
			Category:  string(e.Category),
			Subject:   e.Subject,
			Actor:     e.ActorID,
			RequestID: e.RequestID,
			ClientIP:  e.RequestingParty,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		}
	}
	return &AuditTrailResponse{Domain: domain, Events: out, Total: len(out)}
}
