package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasehold/internal/leasing/models"
	"leasehold/internal/leasing/oracle"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	bdd "leasehold/pkg/testutil"
)

func TestLeaseOutlivesRecovery(t *testing.T) {
	f := newFixture()
	f.wrapExample(true)
	subnode := domain.Namehash("sub.example.eth")

	bdd.Given(t, "a set-up domain with a one hour lease on sub", func(t *testing.T) {
		_, err := f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
		require.NoError(t, err)
		lease, err := f.service.Register(at(otherAddr, t0), models.RegisterRequest{
			Parent: exampleNode, Label: "sub", Owner: otherAddr, Duration: 3600 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, subnode, lease.Node)
	})

	bdd.When(t, "the owner recovers the domain", func(t *testing.T) {
		_, err := f.service.RecoverDomain(at(ownerAddr, t0.Add(time.Minute)), exampleNode)
		require.NoError(t, err)
	})

	bdd.Then(t, "the lease still holds until it expires", func(t *testing.T) {
		ok, err := f.service.IsSubdomainAvailable(at(otherAddr, t0.Add(3599*time.Second)), subnode)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.service.IsSubdomainAvailable(at(otherAddr, t0.Add(3600*time.Second)), subnode)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, otherAddr, f.wrapper.OwnerOf(at(otherAddr, t0.Add(time.Minute)), subnode))
	})

	bdd.Then(t, "new registrations are refused", func(t *testing.T) {
		_, err := f.service.Register(at(otherAddr, t0.Add(2*time.Hour)), models.RegisterRequest{
			Parent: exampleNode, Label: "sub", Owner: otherAddr, Duration: time.Hour,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotSetUp))
	})
}

func TestRebindingLeavesLeasesAlone(t *testing.T) {
	f := newFixture()
	f.wrapExample(true)

	bdd.Given(t, "a lease priced by the basic oracle", func(t *testing.T) {
		_, err := f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
		require.NoError(t, err)
		_, err = f.service.Register(at(otherAddr, t0), models.RegisterRequest{
			Parent: exampleNode, Label: "kept", Owner: otherAddr, Duration: 24 * time.Hour,
		})
		require.NoError(t, err)
	})

	bdd.When(t, "the owner switches to the tiered oracle", func(t *testing.T) {
		_, err := f.service.SetSubdomainOracle(at(ownerAddr, t0.Add(time.Hour)), exampleNode, oracle.RefTiered)
		require.NoError(t, err)
	})

	bdd.Then(t, "the existing lease keeps its terms and new ones use the new oracle", func(t *testing.T) {
		now := t0.Add(2 * time.Hour)
		kept, err := f.service.GetLease(at(otherAddr, now), domain.Subnode(exampleNode, "kept"))
		require.NoError(t, err)
		assert.Equal(t, models.LeaseStatusActive, kept.Status)
		assert.Equal(t, oracle.RefBasic, kept.OracleRef)
		assert.True(t, kept.Price.Equal(decimal.NewFromInt(1000)))

		fresh, err := f.service.Register(at(otherAddr, now), models.RegisterRequest{
			Parent: exampleNode, Label: "abc", Owner: otherAddr, Duration: oracle.Year,
		})
		require.NoError(t, err)
		assert.Equal(t, oracle.RefTiered, fresh.OracleRef)
		assert.True(t, fresh.Price.Equal(decimal.NewFromInt(640)))

		_, err = f.service.Register(at(otherAddr, now), models.RegisterRequest{
			Parent: exampleNode, Label: "ab", Owner: otherAddr, Duration: oracle.Year,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleRejected))
	})
}

func TestOperationMetrics(t *testing.T) {
	f := newFixture()
	f.wrapExample(true)
	ctx := at(ownerAddr, t0)

	_, err := f.service.SetupDomain(ctx, exampleNode, oracle.RefBasic)
	require.NoError(t, err)
	_, err = f.service.Register(at(otherAddr, t0), models.RegisterRequest{
		Parent: exampleNode, Label: "m", Owner: otherAddr, Duration: time.Hour,
	})
	require.NoError(t, err)
	_, err = f.service.RecoverDomain(ctx, exampleNode)
	require.NoError(t, err)
	_, err = f.service.RecoverDomain(ctx, exampleNode)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Registrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CustodyTransfers.WithLabelValues("in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CustodyTransfers.WithLabelValues("out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.OperationFailures.WithLabelValues("recover_domain", string(dErrors.CodeNotSetUp))))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.CustodyCompensations))
}

func TestCancelledContextChangesNothing(t *testing.T) {
	f := newFixture()
	f.wrapExample(true)
	ctx, cancel := context.WithCancel(at(ownerAddr, t0))
	cancel()

	_, err := f.service.SetupDomain(ctx, exampleNode, oracle.RefBasic)
	require.Error(t, err)
	assert.Equal(t, ownerAddr, f.wrapper.OwnerOf(at(ownerAddr, t0), exampleNode))
}
