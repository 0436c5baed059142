// Package service is the leasing engine: it takes custody of wrapped domains,
// leases their subdomains under the domain's bound oracle and hands custody
// back to the real owner.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	leasingmetrics "leasehold/internal/leasing/metrics"
	"leasehold/internal/leasing/models"
	"leasehold/internal/leasing/ports"
	"leasehold/pkg/attrs"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/platform/sentinel"
	"leasehold/pkg/requestcontext"
)

//go:generate mockgen -source=../ports/ports.go -destination=mocks/mocks.go -package=mocks

type DomainStore interface {
	FindDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error)
	FindDomainForUpdate(ctx context.Context, node domain.Node) (*models.DomainRecord, error)
	SaveDomain(ctx context.Context, d *models.DomainRecord) error
}

type LeaseStore interface {
	FindLease(ctx context.Context, node domain.Node) (*models.SubdomainLease, error)
	FindLeases(ctx context.Context, nodes []domain.Node) (map[domain.Node]*models.SubdomainLease, error)
	SaveLease(ctx context.Context, l *models.SubdomainLease) error
	ListByParent(ctx context.Context, parent domain.Node) ([]*models.SubdomainLease, error)
}

// StoreTx runs fn atomically. Stores find the transaction in the context fn receives.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DomainLocker serializes operations on one domain.
type DomainLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// baselineDuration is the duration rentPrice quotes for.
const baselineDuration = 365 * 24 * time.Hour

// Service is the leasing engine.
type Service struct {
	domains        DomainStore
	leases         LeaseStore
	custodian      ports.Custodian
	oracles        ports.OracleResolver
	engine         domain.Address
	tx             StoreTx
	locker         DomainLocker
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *leasingmetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *leasingmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithLocker(locker DomainLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs the engine. engine is the address the Custodian knows the engine by.
func New(domains DomainStore, leases LeaseStore, custodian ports.Custodian, oracles ports.OracleResolver, engine domain.Address, opts ...Option) (*Service, error) {
	if domains == nil || leases == nil {
		return nil, errors.New("domain and lease stores are required")
	}
	if custodian == nil {
		return nil, errors.New("custodian is required")
	}
	if oracles == nil {
		return nil, errors.New("oracle resolver is required")
	}
	if engine.IsZero() {
		return nil, errors.New("engine address is required")
	}
	s := &Service{
		domains:   domains,
		leases:    leases,
		custodian: custodian,
		oracles:   oracles,
		engine:    engine,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = &serialTx{}
	}
	if s.locker == nil {
		s.locker = &serialTx{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("leasehold/internal/leasing/service")
	}
	return s, nil
}

// Engine returns the engine's custodian identity.
func (s *Service) Engine() domain.Address {
	return s.engine
}

// begin opens a span and returns the function that closes it and records metrics.
func (s *Service) begin(ctx context.Context, op string, kv ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "leasing."+op, trace.WithAttributes(kv...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
		s.metrics.ObserveOperation(op, start, err)
	}
}

// undoFunc reverses a collaborator side effect made inside a transaction.
type undoFunc func(ctx context.Context) error

// locked runs fn while holding the domain's lock.
func (s *Service) locked(ctx context.Context, node domain.Node, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, node.String())
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// inTx runs fn in a transaction under the domain lock. When fn made a
// collaborator change and the commit then fails, the returned undo runs
// before the lock is released.
func (s *Service) inTx(ctx context.Context, node domain.Node, fn func(ctx context.Context) (undoFunc, error)) error {
	return s.locked(ctx, node, func(ctx context.Context) error {
		var undo undoFunc
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			u, err := fn(txCtx)
			undo = u
			return err
		})
		if err != nil && undo != nil {
			s.metrics.IncrementCompensation()
			if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
				s.logger.ErrorContext(ctx, "compensation failed, custodian and engine state diverge",
					"domain", node.String(), "error", uerr, "cause", err)
			} else {
				s.logger.WarnContext(ctx, "collaborator change reversed after commit failure",
					"domain", node.String(), "cause", err)
			}
		}
		return err
	})
}

// loadDomain returns the record or nil when the domain was never seen.
func (s *Service) loadDomain(ctx context.Context, node domain.Node, forUpdate bool) (*models.DomainRecord, error) {
	find := s.domains.FindDomain
	if forUpdate {
		find = s.domains.FindDomainForUpdate
	}
	d, err := find(ctx, node)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "failed to load domain")
	}
	return d, nil
}

func (s *Service) loadLease(ctx context.Context, node domain.Node) (*models.SubdomainLease, error) {
	l, err := s.leases.FindLease(ctx, node)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "failed to load lease")
	}
	return l, nil
}

// resolveOracle maps the stored reference to an oracle. A reference that no
// longer resolves is a collaborator failure, not a caller error.
func (s *Service) resolveOracle(node domain.Node, d *models.DomainRecord) (ports.Oracle, error) {
	if d == nil || !d.HasOracle() {
		return nil, models.ErrNoOracleBound(node)
	}
	o, err := s.oracles.Resolve(d.OracleRef)
	if err != nil {
		return nil, collaboratorErr("resolve oracle "+d.OracleRef, err)
	}
	return o, nil
}

// logAudit writes the audit log line and emits the audit event. Inside a
// transaction the event commits or rolls back with it.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, node domain.Node, attributes ...any) error {
	caller := requestcontext.Caller(ctx)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attributes = append(attributes, "trace_id", sc.TraceID().String())
	}
	args := append(attributes, "event", string(event), "log_type", "audit",
		"domain", node.String(), "caller", caller.String())
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return nil
	}
	subject := attrs.ExtractString(attributes, "subdomain")
	if subject == "" {
		subject = node.String()
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:          string(event),
		Domain:          node.String(),
		Subject:         subject,
		ActorID:         caller.String(),
		Decision:        "granted",
		RequestingParty: requestcontext.ClientIP(ctx),
		Details:         attrs.ToDetails(attributes),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// serialTx is the fallback when no transaction runner or locker is wired:
// one global mutex, no rollback.
type serialTx struct {
	mu sync.Mutex
}

func (t *serialTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (t *serialTx) Lock(ctx context.Context, _ string) (func(), error) {
	t.mu.Lock()
	return t.mu.Unlock, nil
}
