package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	cfg "github.com/sand/digiseba/backend/config"
	"github.com/sand/digiseba/backend/internal/auth"
	"github.com/sand/digiseba/backend/internal/broker"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/handlers"
	"github.com/sand/digiseba/backend/internal/usecases"
	"github.com/sand/digiseba/backend/internal/usecases/memory"
	"github.com/sand/digiseba/backend/internal/usecases/repository"
	"github.com/sand/digiseba/backend/internal/workers"
	"github.com/sand/digiseba/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

// storage bundles the repositories of one storage driver.
type storage struct {
	transactor ports.Transactor
	requests   ports.MoneyRequestRepository
	sms        ports.SMSRepository
	wallets    ports.WalletRepository
	users      ports.UserRepository
	settings   ports.SettingsRepository
	orders     ports.OrderRepository
	outbox     ports.OutboxRepository
	close      func()
}

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: config.Log.Level,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"app", config.App.Name,
		"environment", config.App.Environment,
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port,
		"storage", config.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, logger, config)
	if err != nil {
		logger.Error("Failed to open storage", "driver", config.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.close()

	tokens, err := auth.NewTokens(config.Auth.JWTSecret, time.Duration(config.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		logger.Error("Failed to create token issuer", "error", err)
		os.Exit(1)
	}

	// Create usecases and components
	queue := workers.NewVerificationPool(logger, config.Workers.VerificationWorkers, config.Workers.QueueSize)

	walletService := usecases.NewWalletService(logger, store.wallets, store.transactor)
	settingsService := usecases.NewSettingsService(logger, store.settings)
	userService := usecases.NewUserService(logger, store.users, tokens)
	rechargeService := usecases.NewRechargeService(logger, store.transactor, store.requests, store.sms, store.users,
		store.outbox, walletService, settingsService, queue)
	smsService := usecases.NewSMSService(logger, store.sms, store.requests, queue)
	orderService := usecases.NewOrderService(logger, store.transactor, store.orders, store.outbox, walletService, settingsService)

	if err = userService.EnsureAdmin(ctx, config.Auth.AdminEmail, config.Auth.AdminPassword); err != nil {
		logger.Error("Failed to create bootstrap admin", "email", config.Auth.AdminEmail, "error", err)
		os.Exit(1)
	}

	publisher, closePublisher := newPublisher(logger, config)
	defer closePublisher()

	// Initialize and run workers
	initAndRunWorkers(ctx, logger, config, queue, rechargeService, store.outbox, publisher)

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, tokens, config.SMS.Token,
		rechargeService, smsService, walletService, userService, settingsService, orderService)

	// Create router
	router := mux.NewRouter()
	router.Use(handlers.MetricsMiddleware)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

func openStorage(ctx context.Context, logger *slog.Logger, config *cfg.Config) (*storage, error) {
	if config.Storage.Driver == cfg.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			transactor: store,
			requests:   store,
			sms:        store,
			wallets:    store,
			users:      store,
			settings:   store,
			orders:     store,
			outbox:     store,
			close:      func() {},
		}, nil
	}

	// Connect to Database
	pg, err := database.New(ctx, config.DB.DatabaseURL,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	migrationsPath := database.FindMigrations()
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		pg.Close()
		return nil, err
	}

	return &storage{
		transactor: pg.Transactor,
		requests:   repository.NewMoneyRequestsRepository(logger, pg),
		sms:        repository.NewSMSRepository(logger, pg),
		wallets:    repository.NewWalletsRepository(logger, pg),
		users:      repository.NewUsersRepository(logger, pg),
		settings:   repository.NewSettingsRepository(logger, pg),
		orders:     repository.NewOrdersRepository(logger, pg),
		outbox:     repository.NewOutboxRepository(logger, pg),
		close:      pg.Close,
	}, nil
}

// newPublisher connects to RabbitMQ when a URL is configured and falls back
// to logging events otherwise.
func newPublisher(logger *slog.Logger, config *cfg.Config) (ports.EventPublisher, func()) {
	if config.RabbitMQ.URL == "" {
		logger.Info("RabbitMQ is not configured, outbox events are logged")
		return broker.NewLogEventPublisher(logger), func() {}
	}

	mq := broker.NewRabbitMQ(config.RabbitMQ.URL, config.RabbitMQ.Exchange)
	if err := mq.Connect(); err != nil {
		logger.Error("RabbitMQ connection failed, outbox events are logged", "error", err)
		return broker.NewLogEventPublisher(logger), func() {}
	}

	logger.Info("Connected to RabbitMQ", "exchange", config.RabbitMQ.Exchange)
	return broker.NewRabbitMQPublisher(logger, mq, config.RabbitMQ.RoutingKey), mq.Close
}

func initAndRunWorkers(
	ctx context.Context,
	logger *slog.Logger,
	config *cfg.Config,
	queue *workers.VerificationPool,
	recharges *usecases.RechargeService,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
) {
	sweepInterval := time.Duration(config.Workers.SweepInterval) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = ports.DefaultSweepInterval
	}
	outboxInterval := time.Duration(config.Workers.OutboxInterval) * time.Second
	if outboxInterval <= 0 {
		outboxInterval = ports.DefaultOutboxInterval
	}

	go queue.Start(ctx, recharges)

	sweeper := workers.NewVerificationSweeper(logger, recharges, ports.SweepBatchSize, sweepInterval)
	go sweeper.Start(ctx)

	relay := workers.NewOutboxRelay(logger, outbox, publisher, outboxInterval)
	go relay.Start(ctx)
}
