package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"leasehold/internal/leasing/models"
	"leasehold/internal/leasing/oracle"
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
	audit "leasehold/pkg/platform/audit"
)

type ServiceSuite struct {
	suite.Suite
	f *fixture
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.f = newFixture()
	s.f.wrapExample(true)
}

func (s *ServiceSuite) setUp() {
	_, err := s.f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
	s.Require().NoError(err)
}

func (s *ServiceSuite) register(label string, d time.Duration, now time.Time) (*models.SubdomainLease, error) {
	return s.f.service.Register(at(otherAddr, now), models.RegisterRequest{
		Parent:          exampleNode,
		Label:           label,
		Owner:           otherAddr,
		ResolvedAddress: otherAddr,
		Duration:        d,
	})
}

func (s *ServiceSuite) custodyOwner() domain.Address {
	return s.f.wrapper.OwnerOf(at(ownerAddr, t0), exampleNode)
}

func (s *ServiceSuite) assertCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "error: %v", err)
}

func (s *ServiceSuite) TestSetupDomain() {
	s.Run("non-owner is unauthorised and nothing changes", func() {
		_, err := s.f.service.SetupDomain(at(otherAddr, t0), exampleNode, oracle.RefBasic)
		s.assertCode(err, dErrors.CodeForbidden)
		s.Equal("unauthorised(27755718912946858216851288133620079020604200818669015994469856642925265228324, 0x70997970c51812dc3a010c7d01b50e0d17dc79c8)", err.Error())

		d, err := s.f.service.GetDomain(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.False(d.IsSetUp)
		s.Equal(ownerAddr, s.custodyOwner())
	})

	s.Run("unknown oracle is rejected", func() {
		_, err := s.f.service.SetupDomain(at(ownerAddr, t0), exampleNode, "nope")
		s.assertCode(err, dErrors.CodeValidation)
		s.Equal(ownerAddr, s.custodyOwner())
	})

	s.Run("owner takes custody to the engine", func() {
		d, err := s.f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
		s.Require().NoError(err)
		s.True(d.IsSetUp)
		s.Equal(ownerAddr, d.RealOwner)
		s.Equal(oracle.RefBasic, d.OracleRef)
		s.Equal(engineAddr, s.custodyOwner())

		ok, err := s.f.service.CanRegister(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("second setup never rebinds", func() {
		_, err := s.f.service.SetupDomain(at(ownerAddr, t0), exampleNode, refAnother)
		s.assertCode(err, dErrors.CodeAlreadySetUp)

		_, err = s.f.service.SetupDomain(at(otherAddr, t0), exampleNode, refAnother)
		s.assertCode(err, dErrors.CodeForbidden)

		ref, err := s.f.service.GetSubdomainOracle(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.Equal(oracle.RefBasic, ref)
	})
}

func (s *ServiceSuite) TestSetupByApprovedOperator() {
	operator := domain.MustParseAddress("0x00000000000000000000000000000000000000cc")
	s.f.wrapper.SetApprovalForAll(ownerAddr, operator, true)

	d, err := s.f.service.SetupDomain(at(operator, t0), exampleNode, oracle.RefBasic)
	s.Require().NoError(err)
	s.Equal(operator, d.RealOwner, "the caller becomes the real owner")
	s.Equal(engineAddr, s.custodyOwner())

	_, err = s.f.service.RecoverDomain(at(operator, t0), exampleNode)
	s.Require().NoError(err)
	s.Equal(operator, s.custodyOwner())
}

func (s *ServiceSuite) TestSetupWithoutEngineApprovalLeavesNoState() {
	f := newFixture()
	f.wrapExample(false)

	_, err := f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
	s.assertCode(err, dErrors.CodeCollaboratorFailure)

	d, err := f.service.GetDomain(at(ownerAddr, t0), exampleNode)
	s.Require().NoError(err)
	s.False(d.IsSetUp)
	s.True(d.RealOwner.IsZero())
	s.Equal(ownerAddr, f.wrapper.OwnerOf(at(ownerAddr, t0), exampleNode))

	events, err := f.audit.ListByDomain(context.Background(), exampleNode.String())
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestSetupUnwrappedDomain() {
	_, err := s.f.service.SetupDomain(at(ownerAddr, t0), domain.Namehash("unwrapped.eth"), oracle.RefBasic)
	s.assertCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestRecoverDomain() {
	s.Run("unknown domain is unauthorised", func() {
		_, err := s.f.service.RecoverDomain(at(ownerAddr, t0), domain.Namehash("unknown.eth"))
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.Run("non-owner is unauthorised before setup", func() {
		_, err := s.f.service.RecoverDomain(at(otherAddr, t0), exampleNode)
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.setUp()

	s.Run("non-owner is unauthorised while set up", func() {
		_, err := s.f.service.RecoverDomain(at(otherAddr, t0), exampleNode)
		s.assertCode(err, dErrors.CodeForbidden)
		s.Equal(engineAddr, s.custodyOwner())
	})

	s.Run("real owner gets custody back", func() {
		d, err := s.f.service.RecoverDomain(at(ownerAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.False(d.IsSetUp)
		s.Equal(oracle.RefBasic, d.OracleRef)
		s.Equal(ownerAddr, s.custodyOwner())
	})

	s.Run("recover twice is not set up", func() {
		_, err := s.f.service.RecoverDomain(at(ownerAddr, t0), exampleNode)
		s.assertCode(err, dErrors.CodeNotSetUp)
	})

	s.Run("non-owner still unauthorised after recovery", func() {
		_, err := s.f.service.RecoverDomain(at(otherAddr, t0), exampleNode)
		s.assertCode(err, dErrors.CodeForbidden)
	})
}

func (s *ServiceSuite) TestCustodyRoundTrips() {
	ctx := at(ownerAddr, t0)
	for i := range 3 {
		_, err := s.f.service.SetupDomain(ctx, exampleNode, oracle.RefBasic)
		s.Require().NoError(err, "cycle %d", i)
		d, err := s.f.service.GetDomain(ctx, exampleNode)
		s.Require().NoError(err)
		s.True(d.IsSetUp)
		s.Equal(engineAddr, s.custodyOwner())

		_, err = s.f.service.RecoverDomain(ctx, exampleNode)
		s.Require().NoError(err)
		d, err = s.f.service.GetDomain(ctx, exampleNode)
		s.Require().NoError(err)
		s.False(d.IsSetUp)
		s.Equal(d.RealOwner, s.custodyOwner())
	}
}

func (s *ServiceSuite) TestRentPrice() {
	_, err := s.f.service.RentPrice(at(otherAddr, t0), exampleNode)
	s.assertCode(err, dErrors.CodeNoOracleBound)

	s.setUp()
	price, err := s.f.service.RentPrice(at(otherAddr, t0), exampleNode)
	s.Require().NoError(err)
	s.True(price.Equal(decimal.NewFromInt(1000)))

	_, err = s.f.service.RecoverDomain(at(ownerAddr, t0), exampleNode)
	s.Require().NoError(err)
	price, err = s.f.service.RentPrice(at(otherAddr, t0), exampleNode)
	s.Require().NoError(err)
	s.True(price.Equal(decimal.NewFromInt(1000)), "binding survives recovery")

	_, err = s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, oracle.RefTiered)
	s.Require().NoError(err)
	price, err = s.f.service.RentPrice(at(otherAddr, t0), exampleNode)
	s.Require().NoError(err)
	s.True(price.Equal(decimal.NewFromInt(5)))
}

func (s *ServiceSuite) TestSubdomainOracleBinding() {
	s.Run("empty before anything is bound", func() {
		ref, err := s.f.service.GetSubdomainOracle(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.Empty(ref)
	})

	s.Run("stranger cannot pre-bind", func() {
		_, err := s.f.service.SetSubdomainOracle(at(otherAddr, t0), exampleNode, refAnother)
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.Run("custodian owner pre-binds before setup", func() {
		d, err := s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, refAnother)
		s.Require().NoError(err)
		s.False(d.IsSetUp)
		s.Equal(ownerAddr, d.RealOwner)

		price, err := s.f.service.RentPrice(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.True(price.Equal(decimal.NewFromInt(500)))

		ok, err := s.f.service.CanRegister(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.False(ok, "bound but not set up")
	})

	s.Run("real owner rebinds while set up", func() {
		s.setUp()
		_, err := s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, refAnother)
		s.Require().NoError(err)
		ref, err := s.f.service.GetSubdomainOracle(at(otherAddr, t0), exampleNode)
		s.Require().NoError(err)
		s.Equal(refAnother, ref)
	})

	s.Run("stranger cannot rebind", func() {
		_, err := s.f.service.SetSubdomainOracle(at(otherAddr, t0), exampleNode, oracle.RefBasic)
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.Run("unknown reference is rejected", func() {
		_, err := s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, "nope")
		s.assertCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestRegisterPreconditions() {
	s.Run("not set up", func() {
		_, err := s.register("sub", time.Hour, t0)
		s.assertCode(err, dErrors.CodeNotSetUp)
	})

	s.setUp()

	for _, d := range []time.Duration{0, -time.Second} {
		_, err := s.register("sub", d, t0)
		s.assertCode(err, dErrors.CodeInvalidDuration)
	}

	s.Run("oracle rejection carries the reason", func() {
		_, err := s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, oracle.RefReserved)
		s.Require().NoError(err)
		_, err = s.register("admin", time.Hour, t0)
		s.assertCode(err, dErrors.CodeOracleRejected)
		s.Contains(err.Error(), "reserved")

		ok, err := s.f.service.IsSubdomainAvailable(at(otherAddr, t0), domain.Subnode(exampleNode, "admin"))
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("fee cap", func() {
		_, err := s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
		s.Require().NoError(err)
		maxFee := decimal.NewFromInt(999)
		_, err = s.f.service.Register(at(otherAddr, t0), models.RegisterRequest{
			Parent: exampleNode, Label: "capped", Owner: otherAddr, Duration: time.Hour, MaxFee: &maxFee,
		})
		s.assertCode(err, dErrors.CodeFeeExceeded)
	})
}

func (s *ServiceSuite) TestRegisterLifecycle() {
	s.setUp()
	subnode := domain.Namehash("subdomain.example.eth")

	ok, err := s.f.service.IsSubdomainAvailable(at(otherAddr, t0), subnode)
	s.Require().NoError(err)
	s.True(ok)

	lease, err := s.f.service.Register(at(otherAddr, t0), models.RegisterRequest{
		Parent:          exampleNode,
		Label:           "subdomain",
		Owner:           otherAddr,
		ResolvedAddress: ownerAddr,
		Duration:        time.Hour,
		Records:         map[string]string{"url": "https://example.com"},
	})
	s.Require().NoError(err)
	s.Equal(subnode, lease.Node)
	s.Equal(models.LeaseStatusActive, lease.Status)
	s.Equal(t0.Add(time.Hour), lease.Expiry)
	s.True(lease.Price.Equal(decimal.NewFromInt(1000)))
	s.Equal(oracle.RefBasic, lease.OracleRef)

	s.Run("custodian reflects the new owner", func() {
		data := s.f.wrapper.GetData(at(otherAddr, t0), subnode)
		s.Equal(otherAddr, data.Owner)
		s.Equal(ownerAddr, data.ResolvedAddress)
		s.Equal("https://example.com", data.Records["url"])
		s.Equal(t0.Add(time.Hour), data.Expiry)
	})

	s.Run("status is computed from expiry", func() {
		for _, tc := range []struct {
			at     time.Time
			status models.LeaseStatus
		}{
			{t0, models.LeaseStatusActive},
			{t0.Add(time.Hour - time.Nanosecond), models.LeaseStatusActive},
			{t0.Add(time.Hour), models.LeaseStatusExpired},
			{t0.Add(30 * 24 * time.Hour), models.LeaseStatusExpired},
		} {
			got, err := s.f.service.GetLease(at(otherAddr, tc.at), subnode)
			s.Require().NoError(err)
			s.Equal(tc.status, got.Status, "at %s", tc.at)
		}
	})

	s.Run("active lease blocks everyone including its owner", func() {
		_, err := s.register("subdomain", time.Hour, t0.Add(30*time.Minute))
		s.assertCode(err, dErrors.CodeSubdomainUnavailable)

		_, err = s.f.service.Register(at(ownerAddr, t0), models.RegisterRequest{
			Parent: exampleNode, Label: "subdomain", Owner: ownerAddr, Duration: time.Hour,
		})
		s.assertCode(err, dErrors.CodeSubdomainUnavailable)
	})

	s.Run("expired lease can be taken again", func() {
		later := t0.Add(2 * time.Hour)
		ok, err := s.f.service.IsSubdomainAvailable(at(otherAddr, later), subnode)
		s.Require().NoError(err)
		s.True(ok)

		again, err := s.register("subdomain", time.Hour, later)
		s.Require().NoError(err)
		s.Equal(later.Add(time.Hour), again.Expiry)
	})
}

func (s *ServiceSuite) TestGetLeaseUnregistered() {
	lease, err := s.f.service.GetLease(at(otherAddr, t0), domain.Subnode(exampleNode, "nobody"))
	s.Require().NoError(err)
	s.Equal(models.LeaseStatusUnregistered, lease.Status)
	s.True(lease.Owner.IsZero())
}

func (s *ServiceSuite) TestListAndBatchAvailability() {
	s.setUp()
	_, err := s.register("a", time.Hour, t0)
	s.Require().NoError(err)
	_, err = s.register("b", 3*time.Hour, t0.Add(time.Minute))
	s.Require().NoError(err)

	later := t0.Add(2 * time.Hour)
	leases, err := s.f.service.ListLeases(at(otherAddr, later), exampleNode)
	s.Require().NoError(err)
	s.Require().Len(leases, 2)
	s.Equal("a", leases[0].Label)
	s.Equal(models.LeaseStatusExpired, leases[0].Status)
	s.Equal(models.LeaseStatusActive, leases[1].Status)

	avail, err := s.f.service.AvailableLabels(at(otherAddr, later), exampleNode, []string{"a", "b", "c"})
	s.Require().NoError(err)
	s.Equal(map[string]bool{"a": true, "b": false, "c": true}, avail)

	_, err = s.f.service.AvailableLabels(at(otherAddr, later), exampleNode, []string{"bad.label"})
	s.assertCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestReclaimSubdomain() {
	s.setUp()
	_, err := s.register("sub", time.Hour, t0)
	s.Require().NoError(err)
	subnode := domain.Subnode(exampleNode, "sub")
	now := t0.Add(10 * time.Minute)

	s.Run("stranger is unauthorised", func() {
		_, err := s.f.service.ReclaimSubdomain(at(otherAddr, now), exampleNode, "sub")
		s.assertCode(err, dErrors.CodeForbidden)
	})

	s.Run("never leased", func() {
		_, err := s.f.service.ReclaimSubdomain(at(ownerAddr, now), exampleNode, "nobody")
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("real owner reclaims", func() {
		lease, err := s.f.service.ReclaimSubdomain(at(ownerAddr, now), exampleNode, "sub")
		s.Require().NoError(err)
		s.Equal(models.LeaseStatusRecovered, lease.Status)
		s.Equal(now, lease.Expiry)
		s.Equal(engineAddr, s.f.wrapper.OwnerOf(at(ownerAddr, now), subnode))

		ok, err := s.f.service.IsSubdomainAvailable(at(otherAddr, now), subnode)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("emancipated child cannot be reclaimed", func() {
		_, err := s.f.service.Register(at(otherAddr, now), models.RegisterRequest{
			Parent: exampleNode, Label: "free", Owner: otherAddr, Duration: time.Hour,
			Fuses: domain.ParentCannotControl | domain.CannotUnwrap,
		})
		s.Require().NoError(err)
		_, err = s.f.service.ReclaimSubdomain(at(ownerAddr, now), exampleNode, "free")
		s.assertCode(err, dErrors.CodeFuseBurned)

		lease, err := s.f.service.GetLease(at(otherAddr, now), domain.Subnode(exampleNode, "free"))
		s.Require().NoError(err)
		s.Equal(models.LeaseStatusActive, lease.Status)
	})

	s.Run("not set up", func() {
		_, err := s.f.service.RecoverDomain(at(ownerAddr, now), exampleNode)
		s.Require().NoError(err)
		_, err = s.f.service.ReclaimSubdomain(at(ownerAddr, now), exampleNode, "sub")
		s.assertCode(err, dErrors.CodeNotSetUp)
	})
}

func (s *ServiceSuite) TestReclaimExpiredChildUnderLockedParent() {
	s.setUp()
	_, err := s.register("sub", time.Hour, t0)
	s.Require().NoError(err)
	_, err = s.f.wrapper.SetFuses(at(s.custodyOwner(), t0), s.custodyOwner(), exampleNode,
		domain.CannotUnwrap|domain.CannotCreateSubdomain)
	s.Require().NoError(err)

	later := t0.Add(2 * time.Hour)
	_, err = s.f.service.ReclaimSubdomain(at(ownerAddr, later), exampleNode, "sub")
	s.assertCode(err, dErrors.CodeFuseBurned)

	lease, err := s.f.service.GetLease(at(otherAddr, later), domain.Subnode(exampleNode, "sub"))
	s.Require().NoError(err)
	s.NotEqual(models.LeaseStatusRecovered, lease.Status)
}

func (s *ServiceSuite) TestAuditTrail() {
	s.setUp()
	_, err := s.register("sub", time.Hour, t0)
	s.Require().NoError(err)
	_, err = s.f.service.SetSubdomainOracle(at(ownerAddr, t0), exampleNode, refAnother)
	s.Require().NoError(err)
	_, err = s.f.service.RecoverDomain(at(ownerAddr, t0), exampleNode)
	s.Require().NoError(err)
	_, err = s.register("late", time.Hour, t0)
	s.Require().Error(err)

	events, err := s.f.audit.ListByDomain(context.Background(), exampleNode.String())
	s.Require().NoError(err)
	actions := make([]string, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	s.Equal([]string{
		string(audit.EventDomainSetup),
		string(audit.EventSubdomainRegistered),
		string(audit.EventOracleChanged),
		string(audit.EventDomainRecovered),
	}, actions)

	registered := events[1]
	s.Equal(domain.Subnode(exampleNode, "sub").String(), registered.Subject)
	s.Equal(otherAddr.String(), registered.ActorID)
	s.Equal("req-test", registered.RequestID)
	s.Equal("sub", registered.Details["label"])
	s.Equal("3600", registered.Details["duration_seconds"])
	s.Equal(audit.CategoryOperations, registered.Category)
	s.Equal(t0, registered.Timestamp)
}

func (s *ServiceSuite) TestConcurrentRegistrationsOfOneLabel() {
	s.setUp()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.register("race", time.Hour, t0); err == nil {
				wins.Add(1)
			} else if !dErrors.HasCode(err, dErrors.CodeSubdomainUnavailable) {
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *ServiceSuite) TestDifferentDomainsProceedIndependently() {
	other, err := s.f.wrapper.Wrap(at(otherAddr, t0), ethNode, "other", otherAddr, domain.CannotUnwrap, t0.Add(365*24*time.Hour))
	s.Require().NoError(err)
	s.f.wrapper.SetApprovalForAll(otherAddr, engineAddr, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.f.service.SetupDomain(at(ownerAddr, t0), exampleNode, oracle.RefBasic)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.f.service.SetupDomain(at(otherAddr, t0), other, oracle.RefTiered)
	}()
	wg.Wait()
	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Equal(engineAddr, s.f.wrapper.OwnerOf(at(otherAddr, t0), other))
}
