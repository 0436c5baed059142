package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"leasehold/internal/leasing/lock"
	leasingmetrics "leasehold/internal/leasing/metrics"
	"leasehold/internal/leasing/oracle"
	"leasehold/internal/leasing/store"
	"leasehold/internal/namewrapper"
	"leasehold/pkg/domain"
	"leasehold/pkg/platform/audit/publisher"
	auditmemory "leasehold/pkg/platform/audit/store/memory"
	"leasehold/pkg/requestcontext"
)

var (
	ethNode     = domain.Namehash("eth")
	exampleNode = domain.Namehash("example.eth")
	engineAddr  = domain.MustParseAddress("0x000000000000000000000000000000000000e1e1")
	ownerAddr   = domain.MustParseAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	otherAddr   = domain.MustParseAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	t0          = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
)

// refAnother is a second flat-priced oracle used to check rebinding.
const refAnother = "another"

type fixture struct {
	wrapper *namewrapper.NameWrapper
	store   *store.MemoryStore
	audit   *auditmemory.InMemoryStore
	metrics *leasingmetrics.Metrics
	oracles *oracle.Registry
	service *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		wrapper: namewrapper.New(),
		store:   store.NewMemoryStore(),
		audit:   auditmemory.NewInMemoryStore(),
		metrics: leasingmetrics.NewWithRegistry(prometheus.NewRegistry()),
		oracles: oracle.NewDefaultRegistry(decimal.NewFromInt(1000)),
	}
	f.oracles.Register(refAnother, oracle.NewFixed(decimal.NewFromInt(500)))

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStoreTx(store.NewMemoryTx(f.store)),
		WithLocker(lock.NewMemory(time.Second)),
		WithAuditPublisher(store.NewTxAuditPublisher(publisher.NewPublisher(f.audit))),
		WithMetrics(f.metrics),
	}
	svc, err := New(f.store, f.store, f.wrapper.As(engineAddr), f.oracles, engineAddr, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	f.service = svc
	return f
}

// wrapExample wraps example.eth for ownerAddr with CANNOT_UNWRAP burned and
// approves the engine, mirroring what an owner does before setup.
func (f *fixture) wrapExample(approveEngine bool) {
	_, err := f.wrapper.Wrap(at(ownerAddr, t0), ethNode, "example", ownerAddr, domain.CannotUnwrap, t0.Add(5*365*24*time.Hour))
	if err != nil {
		panic(err)
	}
	if approveEngine {
		f.wrapper.SetApprovalForAll(ownerAddr, engineAddr, true)
	}
}

func at(caller domain.Address, now time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), caller)
	ctx = requestcontext.WithRequestID(ctx, "req-test")
	return requestcontext.WithTime(ctx, now)
}
