package namewrapper

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	"leasehold/pkg/platform/httputil"
	"leasehold/pkg/requestcontext"
)

// Handler exposes the wrapper to name owners: wrapping .eth names, approving
// operators such as the leasing engine, and transfers.
type Handler struct {
	wrapper *NameWrapper
	logger  *slog.Logger
}

func NewHandler(wrapper *NameWrapper, logger *slog.Logger) *Handler {
	return &Handler{wrapper: wrapper, logger: logger}
}

// Register mounts the wrapper routes. Reads are public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/wrapper/names/{node}", h.HandleGetName)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/wrapper/names", h.HandleWrap)
		r.Put("/wrapper/approvals", h.HandleApproval)
		r.Post("/wrapper/names/{node}/transfer", h.HandleTransfer)
	})
}

type WrapRequest struct {
	Label         string `json:"label"`
	Fuses         uint32 `json:"fuses,omitempty"`
	ExpirySeconds int64  `json:"expiry_seconds"`
}

func (r *WrapRequest) Validate() error {
	r.Label = strings.ToLower(strings.TrimSpace(r.Label))
	if err := domain.ValidateLabel(r.Label); err != nil {
		return err
	}
	if r.ExpirySeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "expiry_seconds must be positive")
	}
	return nil
}

type ApprovalRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`

	operator domain.Address
}

func (r *ApprovalRequest) Validate() error {
	op, err := domain.ParseAddress(strings.TrimSpace(r.Operator))
	if err != nil || op.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "operator must be a non-zero address")
	}
	r.operator = op
	return nil
}

type TransferRequest struct {
	To string `json:"to"`

	to domain.Address
}

func (r *TransferRequest) Validate() error {
	to, err := domain.ParseAddress(strings.TrimSpace(r.To))
	if err != nil || to.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "to must be a non-zero address")
	}
	r.to = to
	return nil
}

// NameResponse is the wrapper's view of one name.
type NameResponse struct {
	Node    string            `json:"node"`
	Wrapped bool              `json:"wrapped"`
	Owner   string            `json:"owner,omitempty"`
	Fuses   uint32            `json:"fuses"`
	Expiry  *time.Time        `json:"expiry,omitempty"`
	Records map[string]string `json:"records,omitempty"`
}

func (h *Handler) view(r *http.Request, node domain.Node) NameResponse {
	ctx := r.Context()
	data := h.wrapper.GetData(ctx, node)
	resp := NameResponse{
		Node:    node.String(),
		Wrapped: h.wrapper.IsWrapped(ctx, node),
		Fuses:   uint32(data.Fuses),
		Records: data.Records,
	}
	if !data.Owner.IsZero() {
		resp.Owner = data.Owner.String()
	}
	if !data.Expiry.IsZero() {
		resp.Expiry = &data.Expiry
	}
	return resp
}

// HandleWrap wraps <label>.eth for the caller.
func (h *Handler) HandleWrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[WrapRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	caller := requestcontext.Caller(ctx)
	expiry := requestcontext.Now(ctx).Add(time.Duration(req.ExpirySeconds) * time.Second)
	node, err := h.wrapper.Wrap(ctx, domain.Namehash("eth"), req.Label, caller, domain.Fuses(req.Fuses), expiry)
	if err != nil {
		h.fail(r, w, "wrap", err)
		return
	}
	h.logger.InfoContext(ctx, "name wrapped",
		"node", node.String(), "owner", caller.String(), "request_id", requestcontext.RequestID(ctx))
	httputil.WriteJSON(w, http.StatusCreated, h.view(r, node))
}

// HandleApproval sets or clears an operator for the caller.
func (h *Handler) HandleApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ApprovalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.wrapper.SetApprovalForAll(requestcontext.Caller(ctx), req.operator, req.Approved)
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransfer moves a name from its owner on behalf of the caller.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, err := domain.ParseNode(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	caller := requestcontext.Caller(ctx)
	if err := h.wrapper.Transfer(ctx, caller, node, h.wrapper.OwnerOf(ctx, node), req.to); err != nil {
		h.fail(r, w, "transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(r, node))
}

func (h *Handler) HandleGetName(w http.ResponseWriter, r *http.Request) {
	node, err := domain.ParseNode(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(r, node))
}

func (h *Handler) fail(r *http.Request, w http.ResponseWriter, op string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, "wrapper "+op+" failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	httputil.WriteError(w, toCodedError(err))
}

// toCodedError maps wrapper errors onto API error codes.
func toCodedError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorised):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "not the owner or an approved operator")
	case errors.Is(err, ErrOperationProhibited):
		return dErrors.Wrap(err, dErrors.CodeFuseBurned, "prohibited by a burned fuse")
	case errors.Is(err, ErrNotWrapped):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "name is not wrapped")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid wrapper request")
}
