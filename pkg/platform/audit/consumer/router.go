package consumer

import (
	"context"
	"log/slog"

	audit "leasehold/pkg/platform/audit"
)

// Router dispatches events to the handler registered for their category.
type Router struct {
	handlers map[audit.EventCategory]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a category router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[audit.EventCategory]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for a category.
func (r *Router) Register(category audit.EventCategory, handler Handler) {
	r.handlers[category] = handler
}

// Handle routes the event. Events nobody handles are acknowledged.
func (r *Router) Handle(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	handler, ok := r.handlers[category]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, event)
		}
		r.logger.WarnContext(ctx, "no handler for audit category, skipping",
			"category", string(category),
			"action", event.Action,
		)
		return nil
	}
	return handler.Handle(ctx, event)
}
