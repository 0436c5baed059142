package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"leasehold/internal/admin"
	jwttoken "leasehold/internal/jwt_token"
	"leasehold/internal/leasing/handler"
	"leasehold/internal/leasing/lock"
	leasingmetrics "leasehold/internal/leasing/metrics"
	"leasehold/internal/leasing/oracle"
	"leasehold/internal/leasing/service"
	"leasehold/internal/leasing/store"
	"leasehold/internal/namewrapper"
	"leasehold/internal/platform/config"
	"leasehold/internal/platform/httpserver"
	"leasehold/internal/platform/logger"
	platformmetrics "leasehold/internal/platform/metrics"
	"leasehold/internal/platform/middleware"
	"leasehold/internal/platform/postgres"
	"leasehold/internal/platform/redis"
	"leasehold/pkg/domain"
	audit "leasehold/pkg/platform/audit"
	"leasehold/pkg/platform/audit/consumer"
	"leasehold/pkg/platform/audit/outbox"
	"leasehold/pkg/platform/audit/publisher"
	auditmemory "leasehold/pkg/platform/audit/store/memory"
	auditpg "leasehold/pkg/platform/audit/store/postgres"
	"leasehold/pkg/platform/httputil"
	adminmw "leasehold/pkg/platform/middleware/admin"
	authmw "leasehold/pkg/platform/middleware/auth"
	"leasehold/pkg/platform/middleware/metadata"
	"leasehold/pkg/platform/middleware/request"
	"leasehold/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/leasing.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// backend is the persistence selected by configuration.
type backend struct {
	domains service.DomainStore
	leases  service.LeaseStore
	tx      service.StoreTx
	audit   service.AuditPublisher
	trail   admin.AuditLister
	relay   *outbox.Relay
	checks  map[string]func(context.Context) error
	closers []func()
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	engine, err := domain.ParseAddress(cfg.Leasing.EngineAddress)
	if err != nil {
		return fmt.Errorf("LEASEHOLD_ENGINE_ADDRESS: %w", err)
	}
	basicPrice, err := decimal.NewFromString(cfg.Leasing.BasicPrice)
	if err != nil {
		return fmt.Errorf("LEASEHOLD_BASIC_PRICE: %w", err)
	}

	if err := checkCustodianDurability(cfg, log); err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	locker, redisClient, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		be.checks["redis"] = redisClient.Health
	}

	oracles := oracle.NewDefaultRegistry(basicPrice)
	if cfg.Leasing.RemoteOracleURL != "" {
		oracles.Register(oracle.RefRemote, oracle.NewRemote(cfg.Leasing.RemoteOracleURL, oracle.WithRemoteLogger(log)))
		log.Info("remote oracle registered", "url", cfg.Leasing.RemoteOracleURL)
	}

	wrapper := namewrapper.New()
	svc, err := service.New(be.domains, be.leases, wrapper.As(engine), oracles, engine,
		service.WithLogger(log),
		service.WithStoreTx(be.tx),
		service.WithLocker(locker),
		service.WithAuditPublisher(be.audit),
		service.WithMetrics(leasingmetrics.New()),
	)
	if err != nil {
		return err
	}

	httpMetrics := platformmetrics.New()
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTIssuer)
	requireAuth := authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(log, httpMetrics))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthz(be.checks))
	handler.New(svc, log).Register(r, requireAuth)
	namewrapper.NewHandler(wrapper, log).Register(r, requireAuth)

	var auditConsumer *consumer.Consumer
	var adminOpts []admin.Option
	if cfg.Kafka.ConsumerGroup != "" && len(cfg.Kafka.Brokers) > 0 {
		delivered := auditmemory.NewInMemoryStore()
		auditConsumer, err = openConsumer(cfg, delivered, log)
		if err != nil {
			return err
		}
		adminOpts = append(adminOpts, admin.WithDelivered(delivered))
	}
	if cfg.AdminToken != "" {
		adminOpts = append(adminOpts, admin.WithTokenIssuer(jwtService))
		admin.New(be.trail, log, adminOpts...).Register(r, adminmw.RequireAdminToken(cfg.AdminToken, log))
	}

	srv := httpserver.New(cfg.Addr, r)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting leasehold", "addr", cfg.Addr, "engine", engine.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if be.relay != nil {
		g.Go(func() error {
			return be.relay.Run(gctx)
		})
	}
	if auditConsumer != nil {
		g.Go(func() error {
			return auditConsumer.Run(gctx)
		})
	}
	return g.Wait()
}

// openBackend selects Postgres when DATABASE_URL is set and memory otherwise.
func openBackend(ctx context.Context, cfg config.Server, log *slog.Logger) (*backend, error) {
	if cfg.Database.URL == "" {
		st := store.NewMemoryStore()
		trail := auditmemory.NewInMemoryStore()
		log.Info("using in-memory storage")
		return &backend{
			domains: st,
			leases:  st,
			tx:      store.NewMemoryTx(st, store.WithMemoryTxTimeout(cfg.Leasing.TxTimeout), store.WithMemoryTxLogger(log)),
			audit:   store.NewTxAuditPublisher(publisher.NewPublisher(trail, publisher.WithLogger(log))),
			trail:   trail,
			checks:  map[string]func(context.Context) error{},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	be := &backend{
		checks:  map[string]func(context.Context) error{"postgres": db.PingContext},
		closers: []func(){func() { _ = db.Close() }},
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		be.close()
		return nil, err
	}
	st := store.NewPostgres(db)
	auditStore := auditpg.New(db)
	be.domains, be.leases = st, st
	be.tx = store.NewPostgresTx(db, cfg.Leasing.TxTimeout)
	be.audit = store.NewTxAuditPublisher(publisher.NewPublisher(auditStore, publisher.WithLogger(log)))
	be.trail = auditStore
	log.Info("using postgres storage")

	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, audit events stay in the outbox")
		return be, nil
	}
	relay, closeProducer, err := openRelay(ctx, cfg, db, auditStore, log)
	if err != nil {
		be.close()
		return nil, err
	}
	be.relay = relay
	be.closers = append(be.closers, closeProducer)
	return be, nil
}

func openRelay(ctx context.Context, cfg config.Server, db *sql.DB, auditStore *auditpg.Store, log *slog.Logger) (*outbox.Relay, func(), error) {
	producer, err := outbox.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
		log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
	}
	relay := outbox.NewRelay(db, auditStore, producer,
		outbox.WithLogger(log),
		outbox.WithInterval(cfg.Kafka.OutboxInterval),
		outbox.WithBatchSize(cfg.Kafka.OutboxBatch),
	)
	log.Info("audit outbox relay enabled", "topic", cfg.Kafka.AuditTopic)
	return relay, producer.Close, nil
}

// checkCustodianDurability refuses durable stores next to the in-process name
// wrapper unless the operator opts in. After a restart the wrapper is empty
// while set-up domain rows survive, so recovery of those domains fails.
func checkCustodianDurability(cfg config.Server, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		return nil
	}
	if !cfg.Leasing.EphemeralCustodian {
		return errors.New("DATABASE_URL persists custody state but the name wrapper is in-process; " +
			"set LEASEHOLD_EPHEMERAL_CUSTODIAN=true to accept losing wrapper state on restart")
	}
	log.Warn("in-process name wrapper with postgres storage: set-up domains cannot be recovered after a restart",
		"event", "ephemeral_custodian",
	)
	return nil
}

// openConsumer reads the audit topic back: custody moves land in delivered,
// oracle rebinds become security log lines and the rest are counted.
func openConsumer(cfg config.Server, delivered *auditmemory.InMemoryStore, log *slog.Logger) (*consumer.Consumer, error) {
	router := consumer.NewRouter(log, nil)
	router.Register(audit.CategoryCompliance, consumer.NewCustodyHandler(delivered, log))
	router.Register(audit.CategorySecurity, consumer.NewSecurityHandler(log))
	router.Register(audit.CategoryOperations, consumer.NewOpsHandler(nil))
	c, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.ConsumerGroup, router, log)
	if err != nil {
		return nil, err
	}
	log.Info("audit consumer enabled", "topic", cfg.Kafka.AuditTopic, "group", cfg.Kafka.ConsumerGroup)
	return c, nil
}

// openLocker uses Redis when REDIS_URL is set so several replicas serialize
// per domain; otherwise locks are in-process.
func openLocker(ctx context.Context, cfg config.Server, log *slog.Logger) (service.DomainLocker, *redis.Client, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return lock.NewMemory(cfg.Leasing.LockWait), nil, nil
	}
	log.Info("using redis domain locks")
	return lock.NewRedis(client.Client, cfg.Leasing.LockTTL, cfg.Leasing.LockWait, lock.WithLogger(log)), client, nil
}

// healthz reports 503 when any backing service fails its ping.
func healthz(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status, results := http.StatusOK, make(map[string]string, len(checks))
		for name, check := range checks {
			results[name] = "ok"
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
	}
}

func (b *backend) close() {
	for _, c := range b.closers {
		c()
	}
}
