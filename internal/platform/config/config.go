package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "leasehold/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	// AdminToken enables the /admin routes when set.
	AdminToken string
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Leasing    LeasingConfig
}

// DatabaseConfig selects the Postgres backend. An empty URL keeps all state in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the client used for per-domain locks.
// An empty URL falls back to in-process locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox publisher. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers        []string
	AuditTopic     string
	OutboxInterval time.Duration
	OutboxBatch    int
	// ConsumerGroup enables the audit consumer when set.
	ConsumerGroup string
}

// LeasingConfig holds engine settings.
type LeasingConfig struct {
	// EngineAddress is the account that holds custody of set-up domains.
	EngineAddress string
	// LockTTL bounds how long one operation may hold a domain lock. It must
	// exceed TxTimeout so a lock cannot lapse under a running transaction.
	LockTTL time.Duration
	// LockWait bounds how long an operation waits for a contended domain lock.
	LockWait time.Duration
	// TxTimeout applies to transactions started without a deadline.
	TxTimeout time.Duration
	// RemoteOracleURL registers the "remote" oracle when set.
	RemoteOracleURL string
	// BasicPrice is the flat price of the "basic" oracle.
	BasicPrice string
	// EphemeralCustodian accepts the in-process name wrapper alongside durable
	// stores. Its state is lost on restart while domain rows survive.
	EphemeralCustodian bool
}

const defaultEngineAddress = "0x000000000000000000000000000000000000e1e1"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; production deployments must override it.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:          getEnv("LEASEHOLD_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     getEnv("JWT_ISSUER", "leasehold"),
		AdminToken:    os.Getenv("ADMIN_API_TOKEN"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "leasehold.audit"),
			OutboxBatch:   100,
			ConsumerGroup: os.Getenv("KAFKA_AUDIT_CONSUMER_GROUP"),
		},
		Leasing: LeasingConfig{
			EngineAddress:   getEnv("LEASEHOLD_ENGINE_ADDRESS", defaultEngineAddress),
			RemoteOracleURL: os.Getenv("LEASEHOLD_REMOTE_ORACLE_URL"),
			BasicPrice:      getEnv("LEASEHOLD_BASIC_PRICE", "1000"),
			TxTimeout:       5 * time.Second,
		},
	}

	var err error
	if cfg.Leasing.LockTTL, err = getDuration("LEASEHOLD_LOCK_TTL", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Leasing.LockTTL <= cfg.Leasing.TxTimeout {
		return Server{}, fmt.Errorf("LEASEHOLD_LOCK_TTL: must exceed the %s transaction timeout, got %s",
			cfg.Leasing.TxTimeout, cfg.Leasing.LockTTL)
	}
	if cfg.Leasing.LockWait, err = getDuration("LEASEHOLD_LOCK_WAIT", 2*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.OutboxInterval, err = getDuration("LEASEHOLD_OUTBOX_INTERVAL", time.Second); err != nil {
		return Server{}, err
	}
	if v := strings.TrimSpace(os.Getenv("LEASEHOLD_EPHEMERAL_CUSTODIAN")); v != "" {
		if cfg.Leasing.EphemeralCustodian, err = strconv.ParseBool(v); err != nil {
			return Server{}, fmt.Errorf("LEASEHOLD_EPHEMERAL_CUSTODIAN: must be a boolean, got %q", v)
		}
	}
	if v := os.Getenv("DATABASE_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Server{}, fmt.Errorf("DATABASE_MAX_OPEN_CONNS: must be a positive integer, got %q", v)
		}
		cfg.Database.MaxOpenConns = n
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}
