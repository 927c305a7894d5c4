package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration.
type Server struct {
	Addr     string `env:"CUSTODIA_ADDR" envDefault:":8080"`
	LogLevel string `env:"CUSTODIA_LOG_LEVEL" envDefault:"info"`

	// JWTSigningKey verifies caller bearer tokens (HS256).
	JWTSigningKey string `env:"CUSTODIA_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"CUSTODIA_JWT_ISSUER" envDefault:"custodia"`
	JWTAudience   string `env:"CUSTODIA_JWT_AUDIENCE" envDefault:"custodia-api"`
	// BootstrapAdmin receives every admin role at startup.
	BootstrapAdmin string `env:"CUSTODIA_BOOTSTRAP_ADMIN" envDefault:"root-admin"`

	// LedgerTxTimeout bounds one ledger operation including lock wait.
	LedgerTxTimeout time.Duration `env:"CUSTODIA_LEDGER_TX_TIMEOUT" envDefault:"5s"`
	RequestTimeout  time.Duration `env:"CUSTODIA_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"CUSTODIA_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Attestation AttestationConfig
	Envelope    EnvelopeConfig
	Repo        RepoConfig
	Rules       RulesConfig
	FX          FXConfig
}

// PostgresConfig enables the Postgres policy registry and audit outbox.
// Empty DSN keeps everything in memory.
type PostgresConfig struct {
	DSN             string        `env:"CUSTODIA_POSTGRES_DSN"`
	MaxOpenConns    int           `env:"CUSTODIA_POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"CUSTODIA_POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CUSTODIA_POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig enables the Redis FX rate snapshot. Empty URL uses the static
// rate table.
type RedisConfig struct {
	URL          string        `env:"CUSTODIA_REDIS_URL"`
	PoolSize     int           `env:"CUSTODIA_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"CUSTODIA_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"CUSTODIA_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"CUSTODIA_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"CUSTODIA_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables the audit outbox relay and the policy catalog feed.
type KafkaConfig struct {
	Brokers      []string `env:"CUSTODIA_KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"CUSTODIA_KAFKA_AUDIT_TOPIC" envDefault:"custodia.audit"`
	CatalogTopic string   `env:"CUSTODIA_KAFKA_CATALOG_TOPIC" envDefault:"custodia.policy-catalog"`
	Partitions   int32    `env:"CUSTODIA_KAFKA_PARTITIONS" envDefault:"3"`
	Replication  int16    `env:"CUSTODIA_KAFKA_REPLICATION" envDefault:"1"`
}

// AttestationConfig lists trusted ProofSet issuers as name=base64 ed25519
// public key pairs.
type AttestationConfig struct {
	TrustedIssuers map[string]string `env:"CUSTODIA_ATTESTATION_ISSUERS" envSeparator:"," envKeyValSeparator:"="`
}

// EnvelopeConfig configures the asset envelope.
type EnvelopeConfig struct {
	Custody      string `env:"CUSTODIA_ENVELOPE_CUSTODY" envDefault:"envelope-custody"`
	Jurisdiction string `env:"CUSTODIA_ENVELOPE_JURISDICTION" envDefault:"SG"`
	FXTreasury   string `env:"CUSTODIA_FX_TREASURY"`
}

// RepoConfig configures the repo settlement engine.
type RepoConfig struct {
	Party        string        `env:"CUSTODIA_REPO_PARTY" envDefault:"repo-engine"`
	Jurisdiction string        `env:"CUSTODIA_REPO_JURISDICTION" envDefault:"SG"`
	MaxRate      uint32        `env:"CUSTODIA_REPO_MAX_RATE_BPS" envDefault:"5000"`
	MaxDuration  time.Duration `env:"CUSTODIA_REPO_MAX_DURATION" envDefault:"8760h"`
	GracePeriod  time.Duration `env:"CUSTODIA_REPO_GRACE_PERIOD" envDefault:"24h"`
}

// FXConfig seeds the static rate table used when Redis is not configured.
// Keys are FROM:TO pairs; values are rates scaled by fx.Scale.
type FXConfig struct {
	StaticRates map[string]uint64 `env:"CUSTODIA_FX_RATES" envSeparator:"," envKeyValSeparator:"="`
}

// RulesConfig parameterizes the reference rule evaluators. Zero bounds are
// unbounded; a zero transfer ceiling leaves the threshold evaluator
// unregistered.
type RulesConfig struct {
	CollateralMinTicket uint64 `env:"CUSTODIA_RULES_COLLATERAL_MIN_TICKET"`
	CashMin             uint64 `env:"CUSTODIA_RULES_CASH_MIN"`
	CashMax             uint64 `env:"CUSTODIA_RULES_CASH_MAX"`
	TransferCeiling     uint64 `env:"CUSTODIA_RULES_TRANSFER_CEILING"`
}

// FromEnv builds the configuration from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
