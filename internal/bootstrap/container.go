package bootstrap

import (
	"context"
	"sync"

	"optionvault/internal/adapters/config"
	noopTracker "optionvault/internal/adapters/errors/noop"
	sentryTracker "optionvault/internal/adapters/errors/sentry"
	"optionvault/internal/adapters/kafka"
	pgclient "optionvault/internal/adapters/postgres"
	redisclient "optionvault/internal/adapters/redis"
	"optionvault/internal/api"
	"optionvault/internal/api/health"
	optionsapi "optionvault/internal/api/options"
	"optionvault/internal/domain/ledger"
	"optionvault/internal/domain/option"
	"optionvault/internal/events"
	"optionvault/internal/repository/postgres"
	"optionvault/internal/workers"
	"optionvault/pkg/errors"
	"optionvault/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	Redis *redisclient.Client

	// Domain Layer
	OptionRepo option.Repository
	Ledger     ledger.Ledger
	Atomic     option.Atomic
	Engine     *option.Service

	// External Adapters
	KafkaProducer  *kafka.Producer
	EventPublisher *events.Publisher

	// Application Layer
	HTTPServer     *api.Server
	HealthHandler  *health.Handler
	OptionsHandler *optionsapi.Handler

	// Background Processing
	WorkerScheduler *workers.Scheduler

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitDomain()
	c.MustInitApplication()
	c.MustInitBackground()
}

// MustInitConfig loads configuration and initializes logging and tracking
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	c.Log = logger.Get()

	if cfg.ErrorTracking.Enabled && cfg.ErrorTracking.SentryDSN != "" {
		tracker, err := sentryTracker.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
		if err != nil {
			c.Log.Warnw("Failed to initialize Sentry, falling back to noop tracker", "error", err)
			c.ErrorTracker = noopTracker.New()
		} else {
			c.ErrorTracker = tracker
			c.Log.Info("✓ Sentry error tracking enabled")
		}
	} else {
		c.ErrorTracker = noopTracker.New()
	}
	logger.SetErrorTracker(c.ErrorTracker)

	c.Log.Infow("Configuration loaded",
		"app", cfg.App.Name,
		"env", cfg.App.Env,
		"version", cfg.App.Version,
	)
}

// MustInitInfrastructure connects to Postgres, Redis and Kafka
func (c *Container) MustInitInfrastructure() {
	pg, err := pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		panic("failed to connect to postgres: " + err.Error())
	}
	c.PG = pg
	c.Log.Info("✓ Postgres connected")

	rdb, err := redisclient.NewClient(c.Config.Redis)
	if err != nil {
		panic("failed to connect to redis: " + err.Error())
	}
	c.Redis = rdb
	c.Log.Info("✓ Redis connected")

	c.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers: c.Config.Kafka.Brokers,
	})
	c.EventPublisher = events.NewPublisher(c.KafkaProducer)
	c.Log.Info("✓ Kafka producer configured")
}

// MustInitDomain wires repositories and the lifecycle engine
func (c *Container) MustInitDomain() {
	db := c.PG.DB()

	c.OptionRepo = postgres.NewOptionRepository(db)
	c.Ledger = postgres.NewLedgerRepository(db)
	c.Atomic = postgres.NewAtomic(db)

	c.Engine = option.NewService(
		c.OptionRepo,
		c.Ledger,
		c.Atomic,
		c.EventPublisher,
		option.RealClock(),
		option.Config{
			EuropeanGrace: c.Config.Engine.EuropeanGrace,
			MintFee:       c.Config.Engine.MintFee,
			FeeAsset:      ledger.Asset(c.Config.Engine.FeeAsset),
			FeeRecipient:  ledger.Account(c.Config.Engine.FeeRecipient),
		},
	)
	c.Log.Info("✓ Lifecycle engine initialized")
}

// MustInitApplication builds the HTTP API
func (c *Container) MustInitApplication() {
	c.HealthHandler = health.New(c.Log, c.PG.DB(), c.Redis.Client(), c.Config.App.Name, c.Config.App.Version)
	c.OptionsHandler = optionsapi.NewHandler(c.Engine, c.Redis)

	c.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.API.Port,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.HealthHandler, c.OptionsHandler, c.Log)
}

// MustInitBackground registers background workers
func (c *Container) MustInitBackground() {
	c.WorkerScheduler = workers.NewScheduler()

	c.WorkerScheduler.RegisterWorker(workers.NewExpiryWorker(
		c.Engine,
		c.OptionRepo,
		c.Redis,
		c.Config.Workers.ExpirySweepInterval,
		c.Config.Workers.ExpirySweepBatchSize,
		c.Config.Workers.ExpirySweepRate,
		c.Config.Workers.ExpirySweepEnabled,
	))
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if err := c.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.HTTPServer,
		c.WorkerScheduler,
		c.KafkaProducer,
		c.PG,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
