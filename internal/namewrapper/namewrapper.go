// Package namewrapper is an in-process Name-Wrapping Custodian.
//
// It keeps wrapped-name ownership, burned fuses, expiries and operator
// approvals, and enforces the fuse rules of the ENS NameWrapper. The leasing
// engine talks to it through a Session bound to the engine's own address.
package namewrapper

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"leasehold/internal/leasing/ports"
	"leasehold/pkg/domain"
	"leasehold/pkg/requestcontext"
)

var (
	// ErrUnauthorised is returned when the actor neither owns the name nor is an approved operator.
	ErrUnauthorised = errors.New("unauthorised")
	// ErrOperationProhibited is returned when a burned fuse forbids the operation.
	ErrOperationProhibited = errors.New("operation prohibited")
	// ErrNotWrapped is returned for names the wrapper does not hold.
	ErrNotWrapped = errors.New("name not wrapped")
)

type name struct {
	owner    domain.Address
	fuses    domain.Fuses
	expiry   time.Time
	resolved domain.Address
	records  map[string]string
	wrapped  bool
}

func (n *name) live(now time.Time) bool {
	return n.wrapped && (n.expiry.IsZero() || now.Before(n.expiry))
}

// NameWrapper holds wrapped names in memory.
type NameWrapper struct {
	mu        sync.RWMutex
	names     map[domain.Node]*name
	approvals map[domain.Address]map[domain.Address]bool
}

// New returns an empty wrapper.
func New() *NameWrapper {
	return &NameWrapper{
		names:     make(map[domain.Node]*name),
		approvals: make(map[domain.Address]map[domain.Address]bool),
	}
}

// Wrap wraps a second-level name under parent for owner. The parent is implied
// to control nothing afterwards, so PARENT_CANNOT_CONTROL is always burned.
func (w *NameWrapper) Wrap(ctx context.Context, parent domain.Node, label string, owner domain.Address, fuses domain.Fuses, expiry time.Time) (domain.Node, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return domain.Node{}, err
	}
	if owner.IsZero() {
		return domain.Node{}, fmt.Errorf("wrap %q: owner is the zero address", label)
	}
	if fuses != fuses.OwnerControlled() {
		return domain.Node{}, fmt.Errorf("wrap %q: %w: only owner-controlled fuses may be set", label, ErrOperationProhibited)
	}
	now := requestcontext.Now(ctx)
	node := domain.Subnode(parent, label)

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.names[node]; ok && existing.live(now) {
		return domain.Node{}, fmt.Errorf("wrap %q: %w: already wrapped", label, ErrOperationProhibited)
	}
	w.names[node] = &name{
		owner:   owner,
		fuses:   fuses | domain.ParentCannotControl | domain.IsDotEth,
		expiry:  expiry,
		records: map[string]string{},
		wrapped: true,
	}
	return node, nil
}

// SetApprovalForAll lets operator act on every name owner holds.
func (w *NameWrapper) SetApprovalForAll(owner, operator domain.Address, approved bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ops, ok := w.approvals[owner]
	if !ok {
		ops = make(map[domain.Address]bool)
		w.approvals[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
}

// IsApprovedForAll reports whether operator may act for owner.
func (w *NameWrapper) IsApprovedForAll(owner, operator domain.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.approvals[owner][operator]
}

// OwnerOf returns the owner of node, or the zero address for unknown, unwrapped or expired names.
func (w *NameWrapper) OwnerOf(ctx context.Context, node domain.Node) domain.Address {
	now := requestcontext.Now(ctx)
	w.mu.RLock()
	defer w.mu.RUnlock()
	n, ok := w.names[node]
	if !ok || !n.live(now) {
		return domain.ZeroAddress
	}
	return n.owner
}

// IsWrapped reports whether node is currently held by the wrapper.
func (w *NameWrapper) IsWrapped(ctx context.Context, node domain.Node) bool {
	now := requestcontext.Now(ctx)
	w.mu.RLock()
	defer w.mu.RUnlock()
	n, ok := w.names[node]
	return ok && n.live(now)
}

// GetData returns owner, fuses and expiry of node. Expired names report no owner and no fuses.
func (w *NameWrapper) GetData(ctx context.Context, node domain.Node) ports.NameData {
	now := requestcontext.Now(ctx)
	w.mu.RLock()
	defer w.mu.RUnlock()
	n, ok := w.names[node]
	if !ok {
		return ports.NameData{}
	}
	if !n.live(now) {
		return ports.NameData{Expiry: n.expiry}
	}
	return ports.NameData{
		Owner:           n.owner,
		Fuses:           n.fuses,
		Expiry:          n.expiry,
		ResolvedAddress: n.resolved,
		Records:         maps.Clone(n.records),
	}
}

// Transfer moves node from from to to on behalf of actor.
func (w *NameWrapper) Transfer(ctx context.Context, actor domain.Address, node domain.Node, from, to domain.Address) error {
	if to.IsZero() {
		return fmt.Errorf("transfer %s: recipient is the zero address", node)
	}
	now := requestcontext.Now(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.liveName(node, now)
	if err != nil {
		return err
	}
	if n.owner != from {
		return fmt.Errorf("transfer %s: %w: %s is not the owner", node, ErrUnauthorised, from)
	}
	if !w.canAct(n.owner, actor) {
		return fmt.Errorf("transfer %s: %w: %s", node, ErrUnauthorised, actor)
	}
	if n.fuses.Has(domain.CannotTransfer) {
		return fmt.Errorf("transfer %s: %w: CANNOT_TRANSFER burned", node, ErrOperationProhibited)
	}
	n.owner = to
	return nil
}

// SetSubnodeRecord creates or replaces the record of label under parent.
func (w *NameWrapper) SetSubnodeRecord(ctx context.Context, actor domain.Address, parent domain.Node, label string, rec ports.SubnodeRecord) (domain.Node, error) {
	if err := domain.ValidateLabel(label); err != nil {
		return domain.Node{}, err
	}
	now := requestcontext.Now(ctx)
	node := domain.Subnode(parent, label)

	w.mu.Lock()
	defer w.mu.Unlock()
	p, err := w.liveName(parent, now)
	if err != nil {
		return domain.Node{}, err
	}
	if !w.canAct(p.owner, actor) {
		return domain.Node{}, fmt.Errorf("set subnode %s: %w: %s", node, ErrUnauthorised, actor)
	}
	child, exists := w.names[node]
	if !exists || !child.live(now) {
		if p.fuses.Has(domain.CannotCreateSubdomain) {
			return domain.Node{}, fmt.Errorf("set subnode %s: %w: CANNOT_CREATE_SUBDOMAIN burned on parent", node, ErrOperationProhibited)
		}
	} else if child.fuses.Has(domain.ParentCannotControl) {
		return domain.Node{}, fmt.Errorf("set subnode %s: %w: PARENT_CANNOT_CONTROL burned", node, ErrOperationProhibited)
	}
	if err := checkChildFuses(p, rec.Fuses); err != nil {
		return domain.Node{}, fmt.Errorf("set subnode %s: %w", node, err)
	}

	expiry := rec.Expiry
	if expiry.IsZero() || (!p.expiry.IsZero() && expiry.After(p.expiry)) {
		expiry = p.expiry
	}
	records := maps.Clone(rec.Records)
	if records == nil {
		records = map[string]string{}
	}
	w.names[node] = &name{
		owner:    rec.Owner,
		fuses:    rec.Fuses,
		expiry:   expiry,
		resolved: rec.ResolvedAddress,
		records:  records,
		wrapped:  !rec.Owner.IsZero(),
	}
	return node, nil
}

// SetFuses burns owner-controlled fuses on node. Only the owner may burn.
func (w *NameWrapper) SetFuses(ctx context.Context, actor domain.Address, node domain.Node, fuses domain.Fuses) (domain.Fuses, error) {
	if fuses != fuses.OwnerControlled() {
		return 0, fmt.Errorf("set fuses %s: %w: parent-controlled bits", node, ErrOperationProhibited)
	}
	now := requestcontext.Now(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.liveName(node, now)
	if err != nil {
		return 0, err
	}
	if !w.canAct(n.owner, actor) {
		return 0, fmt.Errorf("set fuses %s: %w: %s", node, ErrUnauthorised, actor)
	}
	if n.fuses.Has(domain.CannotBurnFuses) {
		return 0, fmt.Errorf("set fuses %s: %w: CANNOT_BURN_FUSES burned", node, ErrOperationProhibited)
	}
	if !n.fuses.Has(domain.ParentCannotControl) {
		return 0, fmt.Errorf("set fuses %s: %w: PARENT_CANNOT_CONTROL not burned", node, ErrOperationProhibited)
	}
	merged := n.fuses | fuses
	if merged.OwnerControlled()&^domain.CannotUnwrap != 0 && !merged.Has(domain.CannotUnwrap) {
		return 0, fmt.Errorf("set fuses %s: %w: CANNOT_UNWRAP must be burned first", node, ErrOperationProhibited)
	}
	n.fuses = merged
	return n.fuses, nil
}

// SetChildFuses burns fuses on label under parent on behalf of the parent's owner.
func (w *NameWrapper) SetChildFuses(ctx context.Context, actor domain.Address, parent domain.Node, label string, fuses domain.Fuses, expiry time.Time) error {
	now := requestcontext.Now(ctx)
	node := domain.Subnode(parent, label)
	w.mu.Lock()
	defer w.mu.Unlock()
	p, err := w.liveName(parent, now)
	if err != nil {
		return err
	}
	if !w.canAct(p.owner, actor) {
		return fmt.Errorf("set child fuses %s: %w: %s", node, ErrUnauthorised, actor)
	}
	child, err := w.liveName(node, now)
	if err != nil {
		return err
	}
	if child.fuses.Has(domain.ParentCannotControl) {
		return fmt.Errorf("set child fuses %s: %w: PARENT_CANNOT_CONTROL burned", node, ErrOperationProhibited)
	}
	if err := checkChildFuses(p, child.fuses|fuses); err != nil {
		return fmt.Errorf("set child fuses %s: %w", node, err)
	}
	child.fuses |= fuses
	if !expiry.IsZero() {
		if !p.expiry.IsZero() && expiry.After(p.expiry) {
			expiry = p.expiry
		}
		child.expiry = expiry
	}
	return nil
}

// Unwrap releases node from the wrapper. It fails once CANNOT_UNWRAP is burned.
func (w *NameWrapper) Unwrap(ctx context.Context, actor domain.Address, node domain.Node) error {
	now := requestcontext.Now(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.liveName(node, now)
	if err != nil {
		return err
	}
	if !w.canAct(n.owner, actor) {
		return fmt.Errorf("unwrap %s: %w: %s", node, ErrUnauthorised, actor)
	}
	if n.fuses.Has(domain.CannotUnwrap) {
		return fmt.Errorf("unwrap %s: %w: CANNOT_UNWRAP burned", node, ErrOperationProhibited)
	}
	n.wrapped = false
	n.owner = domain.ZeroAddress
	return nil
}

// checkChildFuses enforces the burn ordering for a child of p:
// PARENT_CANNOT_CONTROL needs the parent's CANNOT_UNWRAP, and any
// owner-controlled fuse needs PARENT_CANNOT_CONTROL.
func checkChildFuses(p *name, fuses domain.Fuses) error {
	if fuses.Has(domain.ParentCannotControl) && !p.fuses.Has(domain.CannotUnwrap) {
		return fmt.Errorf("%w: parent has not burned CANNOT_UNWRAP", ErrOperationProhibited)
	}
	if fuses.OwnerControlled() != 0 && !fuses.Has(domain.ParentCannotControl) {
		return fmt.Errorf("%w: owner-controlled fuses need PARENT_CANNOT_CONTROL", ErrOperationProhibited)
	}
	if fuses.OwnerControlled()&^domain.CannotUnwrap != 0 && !fuses.Has(domain.CannotUnwrap) {
		return fmt.Errorf("%w: CANNOT_UNWRAP must be burned first", ErrOperationProhibited)
	}
	return nil
}

func (w *NameWrapper) liveName(node domain.Node, now time.Time) (*name, error) {
	n, ok := w.names[node]
	if !ok || !n.live(now) {
		return nil, fmt.Errorf("%s: %w", node, ErrNotWrapped)
	}
	return n, nil
}

func (w *NameWrapper) canAct(owner, actor domain.Address) bool {
	return owner == actor || w.approvals[owner][actor]
}
