package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "leasehold/pkg/platform/audit"
)

// CustodyHandler projects compliance events (custody moving in and out of the
// engine, subdomain reclaims) into a store. Failures are retried.
type CustodyHandler struct {
	store  audit.Store
	logger *slog.Logger
}

func NewCustodyHandler(store audit.Store, logger *slog.Logger) *CustodyHandler {
	return &CustodyHandler{store: store, logger: logger}
}

func (h *CustodyHandler) Handle(ctx context.Context, event audit.Event) error {
	if err := h.store.Append(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to store custody event",
			"action", event.Action,
			"domain", event.Domain,
			"error", err,
		)
		return fmt.Errorf("store custody event: %w", err)
	}
	return nil
}

// SecurityHandler writes oracle rebinds as security log lines for SIEM shipping.
type SecurityHandler struct {
	logger *slog.Logger
}

func NewSecurityHandler(logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{logger: logger}
}

func (h *SecurityHandler) Handle(ctx context.Context, event audit.Event) error {
	h.logger.WarnContext(ctx, event.Action,
		"log_type", "security",
		"domain", event.Domain,
		"actor", event.ActorID,
		"request_id", event.RequestID,
		"client_ip", event.RequestingParty,
		"oracle", event.Details["oracle"],
		"previous_oracle", event.Details["previous_oracle"],
		"occurred_at", event.Timestamp,
	)
	return nil
}

// OpsHandler counts routine events. It never fails.
type OpsHandler struct {
	consumed *prometheus.CounterVec
}

// NewOpsHandler registers its counter with reg; nil uses the default registerer.
func NewOpsHandler(reg prometheus.Registerer) *OpsHandler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &OpsHandler{
		consumed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "leasehold_audit_events_consumed_total",
			Help: "Audit events read back from the audit topic, by action",
		}, []string{"action"}),
	}
}

func (h *OpsHandler) Handle(_ context.Context, event audit.Event) error {
	h.consumed.WithLabelValues(event.Action).Inc()
	return nil
}
