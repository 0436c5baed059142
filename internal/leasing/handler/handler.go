// Package handler exposes the leasing engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/models"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	"leasehold/pkg/platform/httputil"
	"leasehold/pkg/requestcontext"
)

// Service is the slice of the leasing engine the HTTP layer drives.
type Service interface {
	SetupDomain(ctx context.Context, node domain.Node, oracleRef string) (*models.DomainRecord, error)
	RecoverDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error)
	SetSubdomainOracle(ctx context.Context, node domain.Node, oracleRef string) (*models.DomainRecord, error)
	GetSubdomainOracle(ctx context.Context, node domain.Node) (string, error)
	GetDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error)
	CanRegister(ctx context.Context, node domain.Node) (bool, error)
	RentPrice(ctx context.Context, node domain.Node) (decimal.Decimal, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.SubdomainLease, error)
	ReclaimSubdomain(ctx context.Context, parent domain.Node, label string) (*models.SubdomainLease, error)
	IsSubdomainAvailable(ctx context.Context, subnode domain.Node) (bool, error)
	AvailableLabels(ctx context.Context, parent domain.Node, labels []string) (map[string]bool, error)
	GetLease(ctx context.Context, subnode domain.Node) (*models.SubdomainLease, error)
	ListLeases(ctx context.Context, parent domain.Node) ([]*models.SubdomainLease, error)
}

// Handler wires leasing endpoints to the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. Reads are public; mutations go through requireAuth.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/names/hash", h.HandleHash)

	r.Route("/domains/{node}", func(r chi.Router) {
		r.Get("/", h.HandleGetDomain)
		r.Get("/oracle", h.HandleGetOracle)
		r.Get("/rent-price", h.HandleRentPrice)
		r.Get("/can-register", h.HandleCanRegister)
		r.Get("/available", h.HandleAvailableLabels)
		r.Get("/subdomains", h.HandleListLeases)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/setup", h.HandleSetup)
			r.Post("/recover", h.HandleRecover)
			r.Put("/oracle", h.HandleSetOracle)
			r.Post("/subdomains", h.HandleRegister)
			r.Post("/subdomains/{label}/reclaim", h.HandleReclaim)
		})
	})

	r.Get("/subdomains/{node}", h.HandleGetLease)
	r.Get("/subdomains/{node}/available", h.HandleSubdomainAvailable)
}

// HandleHash handles GET /names/hash?name=.
func (h *Handler) HandleHash(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("name")))
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name query parameter is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHashResponse(name))
}

// HandleSetup handles POST /domains/{node}/setup.
func (h *Handler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OracleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	d, err := h.service.SetupDomain(ctx, node, req.Oracle)
	if err != nil {
		h.fail(ctx, w, "setup domain", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDomainResponse(d))
}

// HandleRecover handles POST /domains/{node}/recover.
func (h *Handler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	d, err := h.service.RecoverDomain(ctx, node)
	if err != nil {
		h.fail(ctx, w, "recover domain", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDomainResponse(d))
}

// HandleGetDomain handles GET /domains/{node}.
func (h *Handler) HandleGetDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDomain(ctx, node)
	if err != nil {
		h.fail(ctx, w, "get domain", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDomainResponse(d))
}

// HandleGetOracle handles GET /domains/{node}/oracle.
func (h *Handler) HandleGetOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	ref, err := h.service.GetSubdomainOracle(ctx, node)
	if err != nil {
		h.fail(ctx, w, "get oracle", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OracleResponse{Node: node.String(), Oracle: ref})
}

// HandleSetOracle handles PUT /domains/{node}/oracle.
func (h *Handler) HandleSetOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OracleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	d, err := h.service.SetSubdomainOracle(ctx, node, req.Oracle)
	if err != nil {
		h.fail(ctx, w, "set oracle", err, "domain", node.String(), "oracle", req.Oracle)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDomainResponse(d))
}

// HandleRentPrice handles GET /domains/{node}/rent-price.
func (h *Handler) HandleRentPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	price, err := h.service.RentPrice(ctx, node)
	if err != nil {
		h.fail(ctx, w, "rent price", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PriceResponse{
		Node:          node.String(),
		Price:         price,
		PeriodSeconds: 365 * 24 * 60 * 60,
	})
}

// HandleCanRegister handles GET /domains/{node}/can-register.
func (h *Handler) HandleCanRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	can, err := h.service.CanRegister(ctx, node)
	if err != nil {
		h.fail(ctx, w, "can register", err, "domain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CanRegisterResponse{Node: node.String(), CanRegister: can})
}

// HandleRegister handles POST /domains/{node}/subdomains.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parent, ok := h.node(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterSubdomainRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	lease, err := h.service.Register(ctx, req.ToModel(parent))
	if err != nil {
		h.fail(ctx, w, "register subdomain", err, "domain", parent.String(), "label", req.Label)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLeaseResponse(lease))
}

// HandleListLeases handles GET /domains/{node}/subdomains.
func (h *Handler) HandleListLeases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parent, ok := h.node(w, r)
	if !ok {
		return
	}
	leases, err := h.service.ListLeases(ctx, parent)
	if err != nil {
		h.fail(ctx, w, "list leases", err, "domain", parent.String())
		return
	}
	resp := LeaseListResponse{Leases: make([]*LeaseResponse, len(leases))}
	for i, l := range leases {
		resp.Leases[i] = toLeaseResponse(l)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleAvailableLabels handles GET /domains/{node}/available?labels=a,b.
func (h *Handler) HandleAvailableLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parent, ok := h.node(w, r)
	if !ok {
		return
	}
	labels, err := parseLabels(r.URL.Query().Get("labels"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	avail, err := h.service.AvailableLabels(ctx, parent, labels)
	if err != nil {
		h.fail(ctx, w, "available labels", err, "domain", parent.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AvailabilityResponse{Node: parent.String(), Labels: avail})
}

// HandleReclaim handles POST /domains/{node}/subdomains/{label}/reclaim.
func (h *Handler) HandleReclaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parent, ok := h.node(w, r)
	if !ok {
		return
	}
	label := chi.URLParam(r, "label")
	lease, err := h.service.ReclaimSubdomain(ctx, parent, label)
	if err != nil {
		h.fail(ctx, w, "reclaim subdomain", err, "domain", parent.String(), "label", label)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleGetLease handles GET /subdomains/{node}.
func (h *Handler) HandleGetLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	lease, err := h.service.GetLease(ctx, node)
	if err != nil {
		h.fail(ctx, w, "get lease", err, "subdomain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

// HandleSubdomainAvailable handles GET /subdomains/{node}/available.
func (h *Handler) HandleSubdomainAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, ok := h.node(w, r)
	if !ok {
		return
	}
	avail, err := h.service.IsSubdomainAvailable(ctx, node)
	if err != nil {
		h.fail(ctx, w, "subdomain available", err, "subdomain", node.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AvailabilityResponse{Node: node.String(), Available: &avail})
}

func (h *Handler) node(w http.ResponseWriter, r *http.Request) (domain.Node, bool) {
	node, err := parseNode(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Node{}, false
	}
	return node, true
}

// fail logs at error level only for failures the caller could not have caused.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error, kv ...any) {
	args := append([]any{
		"error", err,
		"code", string(dErrors.CodeOf(err)),
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx).String(),
		"token_id", requestcontext.TokenID(ctx),
	}, kv...)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeCollaboratorFailure, dErrors.CodeTimeout, dErrors.CodeUnavailable:
		h.logger.ErrorContext(ctx, op+" failed", args...)
	default:
		h.logger.WarnContext(ctx, op+" failed", args...)
	}
	httputil.WriteError(w, err)
}
