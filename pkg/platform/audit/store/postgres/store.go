package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "leasehold/pkg/platform/audit"
	txcontext "leasehold/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// published to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON structure stored in the outbox and published to Kafka.
type Payload struct {
	ID              string            `json:"id"`
	Category        string            `json:"category"`
	Timestamp       string            `json:"timestamp"`
	Action          string            `json:"action"`
	Domain          string            `json:"domain"`
	Subject         string            `json:"subject"`
	ActorID         string            `json:"actor_id,omitempty"`
	Decision        string            `json:"decision,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	RequestID       string            `json:"request_id,omitempty"`
	RequestingParty string            `json:"requesting_party,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
}

// Entry is one outbox row awaiting publication.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	payloadBytes, err := json.Marshal(Payload{
		ID:              eventID.String(),
		Category:        string(category),
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:          event.Action,
		Domain:          event.Domain,
		Subject:         event.Subject,
		ActorID:         event.ActorID,
		Decision:        event.Decision,
		Reason:          event.Reason,
		RequestID:       event.RequestID,
		RequestingParty: event.RequestingParty,
		Details:         event.Details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		"domain",
		event.Domain,
		event.Action,
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByDomain returns the events recorded for a domain, oldest first.
func (s *Store) ListByDomain(ctx context.Context, domain string) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_type = 'domain' AND aggregate_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		event, err := DecodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns up to limit unpublished entries, oldest first,
// locking them so concurrent relays skip rows another relay holds.
// Must be called inside a transaction carried by ctx.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as published.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// DecodePayload turns an outbox payload back into an event.
func DecodePayload(raw []byte) (audit.Event, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("decode outbox payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("decode outbox timestamp: %w", err)
	}
	return audit.Event{
		Category:        audit.EventCategory(p.Category),
		Timestamp:       ts,
		Action:          p.Action,
		Domain:          p.Domain,
		Subject:         p.Subject,
		ActorID:         p.ActorID,
		Decision:        p.Decision,
		Reason:          p.Reason,
		RequestID:       p.RequestID,
		RequestingParty: p.RequestingParty,
		Details:         p.Details,
	}, nil
}
