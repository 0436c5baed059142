package service

import (
	"context"

	"leasehold/internal/leasing/models"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

const (
	custodyIn  = "in"
	custodyOut = "out"
)

// moveCustody is the only place custody of a domain changes hands. setupDomain
// moves it in, recoverDomain moves it out. The returned undo moves it back.
func (s *Service) moveCustody(ctx context.Context, node domain.Node, from, to domain.Address) (undoFunc, error) {
	direction := custodyIn
	if from == s.engine {
		direction = custodyOut
	}
	if err := s.custodian.TransferCustody(ctx, node, from, to); err != nil {
		return nil, collaboratorErr("transfer custody", err)
	}
	s.metrics.IncrementCustodyTransfer(direction)
	return func(ctx context.Context) error {
		return s.custodian.TransferCustody(ctx, node, to, from)
	}, nil
}

// authorizeCustodyOwner checks that caller is the Custodian-recognised owner
// of node or an operator the owner approved, and returns that owner.
func (s *Service) authorizeCustodyOwner(ctx context.Context, node domain.Node, caller domain.Address) (domain.Address, error) {
	if caller.IsZero() {
		return domain.ZeroAddress, models.ErrUnauthorised(node, caller)
	}
	owner, err := s.custodian.OwnerOf(ctx, node)
	if err != nil {
		return domain.ZeroAddress, collaboratorErr("custodian ownerOf", err)
	}
	if owner.IsZero() {
		return domain.ZeroAddress, models.ErrUnauthorised(node, caller)
	}
	if owner == caller {
		return owner, nil
	}
	approved, err := s.custodian.IsApprovedForAll(ctx, owner, caller)
	if err != nil {
		return domain.ZeroAddress, collaboratorErr("custodian isApprovedForAll", err)
	}
	if !approved {
		return domain.ZeroAddress, models.ErrUnauthorised(node, caller)
	}
	return owner, nil
}

func (s *Service) requireWrapped(ctx context.Context, node domain.Node) error {
	wrapped, err := s.custodian.IsWrapped(ctx, node)
	if err != nil {
		return collaboratorErr("custodian isWrapped", err)
	}
	if !wrapped {
		return dErrors.Newf(dErrors.CodeConflict, "domain %s is not wrapped", node)
	}
	return nil
}
