package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full application configuration
type Config struct {
	App           AppConfig
	API           APIConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Engine        EngineConfig
	Workers       WorkerConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"optionvault"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type APIConfig struct {
	Port int `envconfig:"API_PORT" default:"8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"optionvault"`
}

// EngineConfig contains lifecycle engine settings
type EngineConfig struct {
	// How long after expiration a european option stays exercisable.
	EuropeanGrace time.Duration `envconfig:"ENGINE_EUROPEAN_GRACE" default:"24h"`

	// Flat minting fee in base units of the fee asset; zero disables it.
	MintFee      uint64 `envconfig:"ENGINE_MINT_FEE" default:"0"`
	FeeAsset     string `envconfig:"ENGINE_FEE_ASSET"`
	FeeRecipient string `envconfig:"ENGINE_FEE_RECIPIENT"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	ExpirySweepInterval  time.Duration `envconfig:"WORKER_EXPIRY_SWEEP_INTERVAL" default:"1m"`
	ExpirySweepBatchSize int           `envconfig:"WORKER_EXPIRY_SWEEP_BATCH_SIZE" default:"100"`
	ExpirySweepRate      float64       `envconfig:"WORKER_EXPIRY_SWEEP_RATE" default:"25"` // contracts per second
	ExpirySweepEnabled   bool          `envconfig:"WORKER_EXPIRY_SWEEP_ENABLED" default:"true"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from the environment, merging a local .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
