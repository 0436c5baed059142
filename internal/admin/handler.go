// Package admin serves operator-only views of the leasing engine. Routes are
// mounted behind the admin token middleware.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/platform/httputil"
	request "leasehold/pkg/platform/middleware/request"
	"leasehold/pkg/requestcontext"
)

// AuditLister reads the audit trail of one domain.
type AuditLister interface {
	ListByDomain(ctx context.Context, domain string) ([]audit.Event, error)
}

// TokenIssuer mints caller tokens for the bearer auth middleware.
type TokenIssuer interface {
	GenerateCallerToken(caller domain.Address, expiresIn time.Duration) (string, error)
}

type Handler struct {
	trail     AuditLister
	delivered AuditLister
	tokens    TokenIssuer
	logger    *slog.Logger
}

type Option func(*Handler)

// WithDelivered exposes the events the audit consumer has read back from
// Kafka under /admin/delivered/{node}.
func WithDelivered(l AuditLister) Option {
	return func(h *Handler) {
		h.delivered = l
	}
}

// WithTokenIssuer enables POST /admin/tokens.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(h *Handler) {
		h.tokens = t
	}
}

func New(trail AuditLister, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{trail: trail, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the admin routes under /admin.
func (h *Handler) Register(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/audit/{node}", h.HandleAuditTrail)
		if h.delivered != nil {
			r.Get("/delivered/{node}", h.HandleDelivered)
		}
		if h.tokens != nil {
			r.Post("/tokens", h.HandleIssueToken)
		}
	})
}

// HandleAuditTrail handles GET /admin/audit/{node}. The optional category
// query parameter narrows the trail, e.g. category=compliance for custody moves.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	h.serveTrail(w, r, h.trail)
}

// HandleDelivered handles GET /admin/delivered/{node}.
func (h *Handler) HandleDelivered(w http.ResponseWriter, r *http.Request) {
	h.serveTrail(w, r, h.delivered)
}

// HandleIssueToken handles POST /admin/tokens.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[IssueTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := h.tokens.GenerateCallerToken(req.caller, req.ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue caller token", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	h.logger.InfoContext(ctx, "caller token issued",
		"event", "caller_token_issued",
		"log_type", "audit",
		"caller", req.caller.String(),
		"ttl", req.ttl.String(),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusCreated, &TokenResponse{
		Token:     token,
		Caller:    req.caller.String(),
		ExpiresAt: requestcontext.Now(ctx).Add(req.ttl),
	})
}

func (h *Handler) serveTrail(w http.ResponseWriter, r *http.Request, lister AuditLister) {
	ctx := r.Context()
	node, err := parseNode(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	category := audit.EventCategory(strings.TrimSpace(r.URL.Query().Get("category")))
	switch category {
	case "", audit.CategoryCompliance, audit.CategorySecurity, audit.CategoryOperations:
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown category %q", category))
		return
	}

	events, err := lister.ListByDomain(ctx, node.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit trail",
			"domain", node.String(),
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit trail"))
		return
	}
	if category != "" {
		filtered := events[:0:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditTrailResponse(node.String(), events))
}

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
