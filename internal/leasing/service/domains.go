package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"leasehold/internal/leasing/models"
	"leasehold/internal/leasing/ports"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/requestcontext"
)

// SetupDomain takes custody of node and binds oracleRef.
//
// The caller must be the Custodian owner of node or an operator it approved,
// and the engine must already be approved to move the name. The real owner of
// an already set-up domain gets AlreadySetUp; everyone else gets Unauthorised.
func (s *Service) SetupDomain(ctx context.Context, node domain.Node, oracleRef string) (_ *models.DomainRecord, err error) {
	ctx, end := s.begin(ctx, "setup_domain", attribute.String("domain", node.String()))
	defer func() { end(err) }()

	caller := requestcontext.Caller(ctx)
	if node.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "domain node is required")
	}

	var record *models.DomainRecord
	err = s.inTx(ctx, node, func(txCtx context.Context) (undoFunc, error) {
		now := requestcontext.Now(txCtx)
		d, err := s.loadDomain(txCtx, node, true)
		if err != nil {
			return nil, err
		}
		if d != nil && d.IsSetUp {
			if d.RealOwner == caller {
				return nil, models.ErrAlreadySetUp(node)
			}
			return nil, models.ErrUnauthorised(node, caller)
		}
		owner, err := s.authorizeCustodyOwner(txCtx, node, caller)
		if err != nil {
			return nil, err
		}
		if err := s.requireWrapped(txCtx, node); err != nil {
			return nil, err
		}
		if _, err := s.oracles.Resolve(oracleRef); err != nil {
			return nil, err
		}

		if d == nil {
			d = models.NewDomainRecord(node, now)
		}
		if err := d.ApplySetup(caller, oracleRef, now); err != nil {
			return nil, err
		}
		if err := s.domains.SaveDomain(txCtx, d); err != nil {
			return nil, wrapStoreErr(err, "failed to save domain")
		}
		if err := s.logAudit(txCtx, audit.EventDomainSetup, node,
			"oracle", oracleRef, "custodian_owner", owner.String()); err != nil {
			return nil, err
		}
		record = d
		return s.moveCustody(txCtx, node, owner, s.engine)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RecoverDomain returns custody of node to its real owner. The oracle binding
// and every lease are kept.
func (s *Service) RecoverDomain(ctx context.Context, node domain.Node) (_ *models.DomainRecord, err error) {
	ctx, end := s.begin(ctx, "recover_domain", attribute.String("domain", node.String()))
	defer func() { end(err) }()

	caller := requestcontext.Caller(ctx)
	var record *models.DomainRecord
	err = s.inTx(ctx, node, func(txCtx context.Context) (undoFunc, error) {
		d, err := s.loadDomain(txCtx, node, true)
		if err != nil {
			return nil, err
		}
		if d == nil || caller.IsZero() || d.RealOwner != caller {
			return nil, models.ErrUnauthorised(node, caller)
		}
		if !d.IsSetUp {
			return nil, models.ErrNotSetUp(node)
		}

		d.ApplyRecovery(requestcontext.Now(txCtx))
		if err := s.domains.SaveDomain(txCtx, d); err != nil {
			return nil, wrapStoreErr(err, "failed to save domain")
		}
		if err := s.logAudit(txCtx, audit.EventDomainRecovered, node, "real_owner", d.RealOwner.String()); err != nil {
			return nil, err
		}
		record = d
		return s.moveCustody(txCtx, node, s.engine, d.RealOwner)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SetSubdomainOracle rebinds the oracle of node whether or not it is set up.
// Before any record exists the Custodian owner (or its operator) may pre-bind.
// Existing leases are untouched.
func (s *Service) SetSubdomainOracle(ctx context.Context, node domain.Node, oracleRef string) (_ *models.DomainRecord, err error) {
	ctx, end := s.begin(ctx, "set_subdomain_oracle",
		attribute.String("domain", node.String()), attribute.String("oracle", oracleRef))
	defer func() { end(err) }()

	caller := requestcontext.Caller(ctx)
	if node.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "domain node is required")
	}

	var record *models.DomainRecord
	err = s.inTx(ctx, node, func(txCtx context.Context) (undoFunc, error) {
		now := requestcontext.Now(txCtx)
		d, err := s.loadDomain(txCtx, node, true)
		if err != nil {
			return nil, err
		}
		if d != nil {
			if caller.IsZero() || d.RealOwner != caller {
				return nil, models.ErrUnauthorised(node, caller)
			}
		} else {
			if _, err := s.authorizeCustodyOwner(txCtx, node, caller); err != nil {
				return nil, err
			}
			d = models.NewDomainRecord(node, now)
			d.RealOwner = caller
		}
		if _, err := s.oracles.Resolve(oracleRef); err != nil {
			return nil, err
		}

		previous := d.OracleRef
		d.ApplyOracle(oracleRef, now)
		if err := s.domains.SaveDomain(txCtx, d); err != nil {
			return nil, wrapStoreErr(err, "failed to save domain")
		}
		if err := s.logAudit(txCtx, audit.EventOracleChanged, node,
			"oracle", oracleRef, "previous_oracle", previous); err != nil {
			return nil, err
		}
		record = d
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetSubdomainOracle returns the bound oracle reference, empty when none.
func (s *Service) GetSubdomainOracle(ctx context.Context, node domain.Node) (string, error) {
	d, err := s.loadDomain(ctx, node, false)
	if err != nil || d == nil {
		return "", err
	}
	return d.OracleRef, nil
}

// GetDomain returns the domain record. Unknown domains read as an empty,
// not set-up record.
func (s *Service) GetDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error) {
	d, err := s.loadDomain(ctx, node, false)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &models.DomainRecord{Node: node}, nil
	}
	return d, nil
}

// CanRegister reports whether node is set up and has an oracle bound.
func (s *Service) CanRegister(ctx context.Context, node domain.Node) (bool, error) {
	d, err := s.loadDomain(ctx, node, false)
	if err != nil || d == nil {
		return false, err
	}
	return d.IsSetUp && d.HasOracle(), nil
}

// RentPrice returns the bound oracle's baseline quote: the empty label for one year.
func (s *Service) RentPrice(ctx context.Context, node domain.Node) (_ decimal.Decimal, err error) {
	ctx, end := s.begin(ctx, "rent_price", attribute.String("domain", node.String()))
	defer func() { end(err) }()

	d, err := s.loadDomain(ctx, node, false)
	if err != nil {
		return decimal.Zero, err
	}
	o, err := s.resolveOracle(node, d)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := o.Quote(ctx, ports.QuoteRequest{Parent: node, Duration: baselineDuration})
	if err != nil {
		return decimal.Zero, collaboratorErr("oracle quote", err)
	}
	if !q.Allowed {
		return decimal.Zero, models.ErrOracleRejected(q.Reason)
	}
	return q.Price, nil
}
