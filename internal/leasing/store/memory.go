// Package store persists domain records and subdomain leases.
//
// Both backends read the active transaction from the context: Postgres via
// pkg/platform/tx, memory via a staging overlay installed by MemoryTx.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"leasehold/internal/leasing/models"
	"leasehold/pkg/domain"
	"leasehold/pkg/platform/sentinel"
)

// MemoryStore keeps records in maps guarded by one RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	domains map[domain.Node]models.DomainRecord
	leases  map[domain.Node]models.SubdomainLease
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		domains: make(map[domain.Node]models.DomainRecord),
		leases:  make(map[domain.Node]models.SubdomainLease),
	}
}

func (s *MemoryStore) FindDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error) {
	if st := stagingFrom(ctx); st != nil {
		if d, ok := st.lookupDomain(node); ok {
			return &d, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[node]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

// FindDomainForUpdate is FindDomain; per-domain locks serialize writers in memory mode.
func (s *MemoryStore) FindDomainForUpdate(ctx context.Context, node domain.Node) (*models.DomainRecord, error) {
	return s.FindDomain(ctx, node)
}

func (s *MemoryStore) SaveDomain(ctx context.Context, d *models.DomainRecord) error {
	if st := stagingFrom(ctx); st != nil {
		st.putDomain(*d)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[d.Node] = *d
	return nil
}

func (s *MemoryStore) FindLease(ctx context.Context, node domain.Node) (*models.SubdomainLease, error) {
	if st := stagingFrom(ctx); st != nil {
		if l, ok := st.lookupLease(node); ok {
			return &l, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leases[node]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	l.Records = maps.Clone(l.Records)
	return &l, nil
}

// FindLeases returns the leases that exist among nodes, keyed by node.
func (s *MemoryStore) FindLeases(ctx context.Context, nodes []domain.Node) (map[domain.Node]*models.SubdomainLease, error) {
	out := make(map[domain.Node]*models.SubdomainLease, len(nodes))
	for _, n := range nodes {
		l, err := s.FindLease(ctx, n)
		if err != nil {
			continue
		}
		out[n] = l
	}
	return out, nil
}

func (s *MemoryStore) SaveLease(ctx context.Context, l *models.SubdomainLease) error {
	cp := *l
	cp.Records = maps.Clone(l.Records)
	if st := stagingFrom(ctx); st != nil {
		st.putLease(cp)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases[l.Node] = cp
	return nil
}

// ListByParent returns every lease under parent ordered by registration time.
func (s *MemoryStore) ListByParent(ctx context.Context, parent domain.Node) ([]*models.SubdomainLease, error) {
	byNode := make(map[domain.Node]models.SubdomainLease)
	s.mu.RLock()
	for n, l := range s.leases {
		if l.Parent == parent {
			byNode[n] = l
		}
	}
	s.mu.RUnlock()
	if st := stagingFrom(ctx); st != nil {
		st.mu.Lock()
		for n, l := range st.leases {
			if l.Parent == parent {
				byNode[n] = l
			}
		}
		st.mu.Unlock()
	}

	out := make([]*models.SubdomainLease, 0, len(byNode))
	for _, l := range byNode {
		l.Records = maps.Clone(l.Records)
		out = append(out, &l)
	}
	slices.SortFunc(out, func(a, b *models.SubdomainLease) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return slices.Compare(a.Node[:], b.Node[:])
	})
	return out, nil
}

// apply commits a staging overlay in one critical section.
func (s *MemoryStore) apply(st *staging) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, d := range st.domains {
		s.domains[n] = d
	}
	for n, l := range st.leases {
		s.leases[n] = l
	}
}

type stagingKey struct{}

// staging buffers writes and post-commit hooks for one memory transaction.
type staging struct {
	mu          sync.Mutex
	domains     map[domain.Node]models.DomainRecord
	leases      map[domain.Node]models.SubdomainLease
	afterCommit []func(context.Context) error
}

func newStaging() *staging {
	return &staging{
		domains: make(map[domain.Node]models.DomainRecord),
		leases:  make(map[domain.Node]models.SubdomainLease),
	}
}

func stagingFrom(ctx context.Context) *staging {
	st, _ := ctx.Value(stagingKey{}).(*staging)
	return st
}

func (st *staging) lookupDomain(n domain.Node) (models.DomainRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	d, ok := st.domains[n]
	return d, ok
}

func (st *staging) putDomain(d models.DomainRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.domains[d.Node] = d
}

func (st *staging) lookupLease(n domain.Node) (models.SubdomainLease, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	l, ok := st.leases[n]
	l.Records = maps.Clone(l.Records)
	return l, ok
}

func (st *staging) putLease(l models.SubdomainLease) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.leases[l.Node] = l
}

func (st *staging) onCommit(fn func(context.Context) error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.afterCommit = append(st.afterCommit, fn)
}
