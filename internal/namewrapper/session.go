package namewrapper

import (
	"context"

	"leasehold/internal/leasing/ports"
	"leasehold/pkg/domain"
)

// Session is the wrapper seen through one acting identity.
type Session struct {
	wrapper *NameWrapper
	actor   domain.Address
}

var _ ports.Custodian = (*Session)(nil)

// As binds the wrapper to actor.
func (w *NameWrapper) As(actor domain.Address) *Session {
	return &Session{wrapper: w, actor: actor}
}

func (s *Session) OwnerOf(ctx context.Context, node domain.Node) (domain.Address, error) {
	return s.wrapper.OwnerOf(ctx, node), nil
}

func (s *Session) IsWrapped(ctx context.Context, node domain.Node) (bool, error) {
	return s.wrapper.IsWrapped(ctx, node), nil
}

func (s *Session) IsApprovedForAll(_ context.Context, owner, operator domain.Address) (bool, error) {
	return s.wrapper.IsApprovedForAll(owner, operator), nil
}

func (s *Session) TransferCustody(ctx context.Context, node domain.Node, from, to domain.Address) error {
	return s.wrapper.Transfer(ctx, s.actor, node, from, to)
}

func (s *Session) SetSubnodeRecord(ctx context.Context, parent domain.Node, label string, rec ports.SubnodeRecord) (domain.Node, error) {
	return s.wrapper.SetSubnodeRecord(ctx, s.actor, parent, label, rec)
}

func (s *Session) GetData(ctx context.Context, node domain.Node) (ports.NameData, error) {
	return s.wrapper.GetData(ctx, node), nil
}
