package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/schemasql"
	"paywall-gateway/pkg/secretfmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration across the server, both rails,
// outbound notifications, and the shared resilience knobs (spec §6.5).
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	X402          X402Config          `mapstructure:"x402"`
	Callbacks     CallbacksConfig     `mapstructure:"callbacks"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Subscription  SubscriptionConfig  `mapstructure:"subscription"`
	Log           LogConfig           `mapstructure:"log"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

// CacheConfig configures the optional Redis-backed L1 idempotency cache
// (spec §4.3's webhook dedup fast path). Empty Addr disables it.
type CacheConfig struct {
	Addr string `mapstructure:"addr"`
}

// AdminConfig configures the purpose-bound admin nonce assertions (spec
// §3.1) that gate privileged actions such as forced subscription
// cancellation.
type AdminConfig struct {
	NonceSecret secretfmt.Secret `mapstructure:"nonce_secret"`
}

type ServerConfig struct {
	Address            string        `mapstructure:"address"`
	PublicURL          string        `mapstructure:"public_url"`
	RoutePrefix        string        `mapstructure:"route_prefix"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	TrustedProxyCIDRs  []string      `mapstructure:"trusted_proxy_cidrs"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageBackend selects the C1 implementation: the postgres-backed store
// for production, or the in-memory store for tests and local dev.
type StorageBackend string

const (
	StorageBackendRelational StorageBackend = "relational"
	StorageBackendMemory     StorageBackend = "memory"
)

type PostgresPoolConfig struct {
	Min int32 `mapstructure:"min"`
	Max int32 `mapstructure:"max"`
}

type StorageConfig struct {
	Backend      StorageBackend           `mapstructure:"backend"`
	PostgresURL  secretfmt.Secret         `mapstructure:"postgres_url"`
	SchemaMapping schemasql.SchemaMapping `mapstructure:"schema_mapping"`
	PostgresPool PostgresPoolConfig       `mapstructure:"postgres_pool"`
}

type TransactionQueueTimings struct {
	MinTimeBetweenSends time.Duration `mapstructure:"min_time_between"`
	MaxInFlight         int           `mapstructure:"max_in_flight"`
}

// X402Config is the on-chain rail's configuration surface (spec §6.5).
type X402Config struct {
	PaymentAddress         string                  `mapstructure:"payment_address"`
	TokenMint              string                  `mapstructure:"token_mint"`
	TokenDecimals          uint8                   `mapstructure:"token_decimals"`
	RPCURL                 secretfmt.Secret        `mapstructure:"rpc_url"`
	WSURL                  secretfmt.Secret        `mapstructure:"ws_url"`
	Commitment             string                  `mapstructure:"commitment"` // processed | confirmed | finalized
	GaslessEnabled         bool                    `mapstructure:"gasless_enabled"`
	AutoCreateTokenAccount bool                    `mapstructure:"auto_create_token_account"`
	ServerWallets          []secretfmt.Secret      `mapstructure:"server_wallets"`
	ComputeUnitLimit       uint32                  `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice       uint64                  `mapstructure:"compute_unit_price"`
	TxQueue                TransactionQueueTimings `mapstructure:"tx_queue"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Jitter          float64       `mapstructure:"jitter"` // in [0,1]
	Enabled         bool          `mapstructure:"enabled"`
}

// CallbacksConfig is the outbound webhook dispatcher's configuration
// surface (spec §6.5).
type CallbacksConfig struct {
	PaymentSuccessURL string            `mapstructure:"payment_success_url"`
	HMACSecret        secretfmt.Secret  `mapstructure:"hmac_secret"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Headers           map[string]string `mapstructure:"headers"`
	Retry             RetryConfig       `mapstructure:"retry"`
	BodyTemplate      string            `mapstructure:"body_template"`
}

type RateLimitRule struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"` // must be > 0 if enabled
	Window  time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Global   RateLimitRule `mapstructure:"global"`
	PerIP    RateLimitRule `mapstructure:"per_ip"`
	PerWallet RateLimitRule `mapstructure:"per_wallet"`
}

type BreakerRule struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	FailureRatio        float64       `mapstructure:"failure_ratio"`
	MinRequests         uint32        `mapstructure:"min_requests"`
}

type CircuitBreakerConfig struct {
	SolanaRPC BreakerRule `mapstructure:"solana_rpc"`
	StripeAPI BreakerRule `mapstructure:"stripe_api"`
	Webhook   BreakerRule `mapstructure:"webhook"`
}

// StripeConfig holds the card rail's webhook signing secret; kept distinct
// from CallbacksConfig, which governs our own outbound notifications.
type StripeConfig struct {
	WebhookSigningSecret secretfmt.Secret `mapstructure:"webhook_signing_secret"`
	APIKey               secretfmt.Secret `mapstructure:"api_key"`
}

type SubscriptionConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
	BatchLimit  int           `mapstructure:"batch_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.route_prefix", "/v1")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("storage.backend", string(StorageBackendRelational))
	v.SetDefault("storage.postgres_pool.min", 5)
	v.SetDefault("storage.postgres_pool.max", 20)

	v.SetDefault("x402.commitment", "confirmed")
	v.SetDefault("x402.gasless_enabled", false)
	v.SetDefault("x402.auto_create_token_account", false)
	v.SetDefault("x402.tx_queue.min_time_between", "50ms")
	v.SetDefault("x402.tx_queue.max_in_flight", 4)

	v.SetDefault("callbacks.timeout", "10s")
	v.SetDefault("callbacks.retry.enabled", true)
	v.SetDefault("callbacks.retry.max_attempts", 8)
	v.SetDefault("callbacks.retry.initial_interval", "15s")
	v.SetDefault("callbacks.retry.max_interval", "30m")
	v.SetDefault("callbacks.retry.multiplier", 2.0)
	v.SetDefault("callbacks.retry.jitter", 0.2)

	v.SetDefault("rate_limit.global.enabled", false)
	v.SetDefault("rate_limit.per_ip.enabled", false)
	v.SetDefault("rate_limit.per_wallet.enabled", false)

	v.SetDefault("circuit_breaker.solana_rpc.max_requests", 1)
	v.SetDefault("circuit_breaker.solana_rpc.interval", "60s")
	v.SetDefault("circuit_breaker.solana_rpc.timeout", "30s")
	v.SetDefault("circuit_breaker.solana_rpc.consecutive_failures", 5)
	v.SetDefault("circuit_breaker.solana_rpc.min_requests", 3)

	v.SetDefault("circuit_breaker.stripe_api.max_requests", 1)
	v.SetDefault("circuit_breaker.stripe_api.interval", "60s")
	v.SetDefault("circuit_breaker.stripe_api.timeout", "30s")
	v.SetDefault("circuit_breaker.stripe_api.consecutive_failures", 5)
	v.SetDefault("circuit_breaker.stripe_api.min_requests", 3)

	v.SetDefault("circuit_breaker.webhook.max_requests", 1)
	v.SetDefault("circuit_breaker.webhook.interval", "60s")
	v.SetDefault("circuit_breaker.webhook.timeout", "30s")
	v.SetDefault("circuit_breaker.webhook.consecutive_failures", 5)
	v.SetDefault("circuit_breaker.webhook.min_requests", 3)

	v.SetDefault("subscription.grace_period", "72h")
	v.SetDefault("subscription.batch_limit", 200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PWG_ (Paywall Gateway).
// Nested keys use underscore: PWG_STORAGE_POSTGRES_URL, PWG_X402_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PWG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only answers for keys viper already knows of; bind the
	// keys that have no default so Unmarshal sees their env values too.
	for _, key := range []string{
		"server.public_url", "storage.postgres_url",
		"x402.payment_address", "x402.token_mint", "x402.rpc_url", "x402.ws_url",
		"callbacks.payment_success_url", "callbacks.hmac_secret",
		"stripe.webhook_signing_secret", "stripe.api_key",
		"cache.addr", "admin.nonce_secret",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFromStore implements spec §4.7's second loading mode: the relational
// store itself is a bootstrap input, and configuration is projected from a
// key/value configuration table rather than a file-plus-environment
// overlay. File defaults are applied first so a partial table still yields
// a usable Config.
func LoadFromStore(ctx context.Context, store ports.ConfigReader, tenantID string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	kv, err := store.LoadConfigTable(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading config table: %w", err)
	}
	for key, val := range kv {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
