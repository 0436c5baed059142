package service

import (
	"context"
	"maps"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"leasehold/internal/leasing/models"
	"leasehold/internal/leasing/ports"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/requestcontext"
)

// Register leases req.Label under req.Parent. The subdomain must be available,
// the bound oracle must allow it and its price must fit under req.MaxFee.
// Re-registering an active lease fails even for the same owner.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (_ *models.SubdomainLease, err error) {
	ctx, end := s.begin(ctx, "register",
		attribute.String("domain", req.Parent.String()), attribute.String("label", req.Label))
	defer func() { end(err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var lease *models.SubdomainLease
	err = s.inTx(ctx, req.Parent, func(txCtx context.Context) (undoFunc, error) {
		now := requestcontext.Now(txCtx)
		d, err := s.loadDomain(txCtx, req.Parent, true)
		if err != nil {
			return nil, err
		}
		if d == nil || !d.IsSetUp {
			return nil, models.ErrNotSetUp(req.Parent)
		}
		subnode := domain.Subnode(req.Parent, req.Label)
		existing, err := s.loadLease(txCtx, subnode)
		if err != nil {
			return nil, err
		}
		if !existing.AvailableAt(now) {
			return nil, models.ErrSubdomainUnavailable(subnode)
		}

		o, err := s.resolveOracle(req.Parent, d)
		if err != nil {
			return nil, err
		}
		q, err := o.Quote(txCtx, ports.QuoteRequest{Parent: req.Parent, Label: req.Label, Duration: req.Duration})
		if err != nil {
			return nil, collaboratorErr("oracle quote", err)
		}
		if !q.Allowed {
			return nil, models.ErrOracleRejected(q.Reason)
		}
		if req.MaxFee != nil && q.Price.GreaterThan(*req.MaxFee) {
			return nil, dErrors.Newf(dErrors.CodeFeeExceeded, "price %s exceeds max fee %s", q.Price, req.MaxFee)
		}

		l, err := models.NewLease(req.Parent, req.Label, req.Owner, req.ResolvedAddress,
			now.Add(req.Duration), q.Price, d.OracleRef, req.Fuses, req.Records, now)
		if err != nil {
			return nil, err
		}
		previous, err := s.checkSubnodeWritable(txCtx, req.Parent, subnode, req.Fuses)
		if err != nil {
			return nil, err
		}
		if err := s.leases.SaveLease(txCtx, l); err != nil {
			return nil, wrapStoreErr(err, "failed to save lease")
		}
		if err := s.logAudit(txCtx, audit.EventSubdomainRegistered, req.Parent,
			"subdomain", subnode.String(),
			"label", req.Label,
			"owner", req.Owner.String(),
			"price", q.Price.String(),
			"duration_seconds", strconv.FormatInt(int64(req.Duration.Seconds()), 10)); err != nil {
			return nil, err
		}
		lease = l
		return s.propagateSubnode(txCtx, req.Parent, req.Label, ports.SubnodeRecord{
			Owner:           l.Owner,
			ResolvedAddress: l.ResolvedAddress,
			Fuses:           l.Fuses,
			Expiry:          l.Expiry,
			Records:         l.Records,
		}, previous)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRegistrations()
	return lease.ViewAt(requestcontext.Now(ctx)), nil
}

// ReclaimSubdomain lets the real owner of a set-up domain take a subdomain
// back. The lease becomes Recovered and immediately available. A child that
// burned PARENT_CANNOT_CONTROL cannot be reclaimed, nor can an expired child
// under a parent that burned CANNOT_CREATE_SUBDOMAIN.
func (s *Service) ReclaimSubdomain(ctx context.Context, parent domain.Node, label string) (_ *models.SubdomainLease, err error) {
	ctx, end := s.begin(ctx, "reclaim_subdomain",
		attribute.String("domain", parent.String()), attribute.String("label", label))
	defer func() { end(err) }()

	caller := requestcontext.Caller(ctx)
	if err := domain.ValidateLabel(label); err != nil {
		return nil, err
	}

	var lease *models.SubdomainLease
	err = s.inTx(ctx, parent, func(txCtx context.Context) (undoFunc, error) {
		now := requestcontext.Now(txCtx)
		d, err := s.loadDomain(txCtx, parent, true)
		if err != nil {
			return nil, err
		}
		if d == nil || caller.IsZero() || d.RealOwner != caller {
			return nil, models.ErrUnauthorised(parent, caller)
		}
		if !d.IsSetUp {
			return nil, models.ErrNotSetUp(parent)
		}
		subnode := domain.Subnode(parent, label)
		l, err := s.loadLease(txCtx, subnode)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "subdomain %s has never been leased", subnode)
		}
		previous, err := s.checkSubnodeWritable(txCtx, parent, subnode, 0)
		if err != nil {
			return nil, err
		}

		l.ApplyReclaim(now)
		if err := s.leases.SaveLease(txCtx, l); err != nil {
			return nil, wrapStoreErr(err, "failed to save lease")
		}
		if err := s.logAudit(txCtx, audit.EventSubdomainReclaimed, parent,
			"subdomain", subnode.String(), "label", label, "previous_owner", l.Owner.String()); err != nil {
			return nil, err
		}
		lease = l
		return s.propagateSubnode(txCtx, parent, label, ports.SubnodeRecord{Owner: s.engine}, previous)
	})
	if err != nil {
		return nil, err
	}
	return lease.ViewAt(requestcontext.Now(ctx)), nil
}

// IsSubdomainAvailable applies the availability rule to subnode without mutating anything.
func (s *Service) IsSubdomainAvailable(ctx context.Context, subnode domain.Node) (bool, error) {
	l, err := s.loadLease(ctx, subnode)
	if err != nil {
		return false, err
	}
	return l.AvailableAt(requestcontext.Now(ctx)), nil
}

// AvailableLabels checks several labels under parent in one store round trip.
func (s *Service) AvailableLabels(ctx context.Context, parent domain.Node, labels []string) (map[string]bool, error) {
	nodes := make([]domain.Node, 0, len(labels))
	for _, label := range labels {
		if err := domain.ValidateLabel(label); err != nil {
			return nil, err
		}
		nodes = append(nodes, domain.Subnode(parent, label))
	}
	found, err := s.leases.FindLeases(ctx, nodes)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load leases")
	}
	now := requestcontext.Now(ctx)
	out := make(map[string]bool, len(labels))
	for i, label := range labels {
		out[label] = found[nodes[i]].AvailableAt(now)
	}
	return out, nil
}

// GetLease returns the lease for subnode with its status computed now.
// Subdomains never leased read as Unregistered.
func (s *Service) GetLease(ctx context.Context, subnode domain.Node) (*models.SubdomainLease, error) {
	l, err := s.loadLease(ctx, subnode)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return models.UnregisteredLease(subnode), nil
	}
	return l.ViewAt(requestcontext.Now(ctx)), nil
}

// ListLeases returns every lease ever recorded under parent.
func (s *Service) ListLeases(ctx context.Context, parent domain.Node) ([]*models.SubdomainLease, error) {
	leases, err := s.leases.ListByParent(ctx, parent)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list leases")
	}
	now := requestcontext.Now(ctx)
	out := make([]*models.SubdomainLease, len(leases))
	for i, l := range leases {
		out[i] = l.ViewAt(now)
	}
	return out, nil
}

// checkSubnodeWritable reports fuse conflicts before the Custodian is asked to
// write, and returns the subnode's current data for compensation.
func (s *Service) checkSubnodeWritable(ctx context.Context, parent, subnode domain.Node, childFuses domain.Fuses) (ports.NameData, error) {
	parentData, err := s.custodian.GetData(ctx, parent)
	if err != nil {
		return ports.NameData{}, collaboratorErr("custodian getData", err)
	}
	current, err := s.custodian.GetData(ctx, subnode)
	if err != nil {
		return ports.NameData{}, collaboratorErr("custodian getData", err)
	}
	exists := !current.Owner.IsZero()
	if !exists && parentData.Fuses.Has(domain.CannotCreateSubdomain) {
		return ports.NameData{}, dErrors.New(dErrors.CodeFuseBurned, "parent has burned CANNOT_CREATE_SUBDOMAIN")
	}
	if exists && current.Fuses.Has(domain.ParentCannotControl) {
		return ports.NameData{}, dErrors.Newf(dErrors.CodeFuseBurned, "subdomain %s has burned PARENT_CANNOT_CONTROL", subnode)
	}
	if childFuses.Has(domain.ParentCannotControl) && !parentData.Fuses.Has(domain.CannotUnwrap) {
		return ports.NameData{}, dErrors.New(dErrors.CodeFuseBurned, "parent must burn CANNOT_UNWRAP before children can be emancipated")
	}
	return current, nil
}

// propagateSubnode writes rec into the Custodian. The undo restores previous.
func (s *Service) propagateSubnode(ctx context.Context, parent domain.Node, label string, rec ports.SubnodeRecord, previous ports.NameData) (undoFunc, error) {
	if _, err := s.custodian.SetSubnodeRecord(ctx, parent, label, rec); err != nil {
		return nil, collaboratorErr("custodian setSubnodeRecord", err)
	}
	return func(ctx context.Context) error {
		_, err := s.custodian.SetSubnodeRecord(ctx, parent, label, ports.SubnodeRecord{
			Owner:           previous.Owner,
			ResolvedAddress: previous.ResolvedAddress,
			Fuses:           previous.Fuses,
			Expiry:          previous.Expiry,
			Records:         maps.Clone(previous.Records),
		})
		return err
	}, nil
}
