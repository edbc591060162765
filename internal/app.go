// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	router "readreward/internal/api"
	"readreward/internal/api/handler"
	apimw "readreward/internal/api/middleware"
	"readreward/internal/config"
	"readreward/internal/domain"
	"readreward/internal/payment"
	"readreward/internal/reconciliation"
	"readreward/internal/repository"
	"readreward/internal/repository/postgres"
	"readreward/internal/service"
	"readreward/internal/util"
	"readreward/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	UserRepository        repository.UserRepository
	ContentRepository     repository.ContentRepository
	CompletionRepository  repository.CompletionRepository
	TransactionRepository repository.TransactionRepository
	WithdrawalRepository  repository.WithdrawalRepository
	StatsRepository       repository.StatsRepository
	OrderRepository       repository.PaymentOrderRepository

	// Services
	LedgerService     service.LedgerService
	StatsService      service.StatsService
	CompletionService service.CompletionService
	PaymentGateway    payment.Gateway

	// Reconciliation
	Engine  *reconciliation.Engine
	Poller  *reconciliation.Poller
	Sweeper *reconciliation.Sweeper
	Queue   *reconciliation.Queue

	// HTTP API
	HTTPHandler http.Handler

	stopWorkers context.CancelFunc
	workers     sync.WaitGroup
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database and apply migrations
	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if err := db.RunMigrations(app.DB, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	app.Logger.Info("Database migrations applied.", "path", cfg.MigrationsPath)

	// 4. Connect to Redis. An unreachable queue degrades to inline notification handling.
	app.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := app.Redis.Ping(pingCtx).Err(); err != nil {
		app.Logger.Warn("Redis unreachable, notifications will be applied inline", "addr", cfg.Redis.Addr, "error", err)
	} else {
		app.Logger.Info("Redis connection established.", "addr", cfg.Redis.Addr)
	}

	// 5. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository()
	app.ContentRepository = postgres.NewContentRepository()
	app.CompletionRepository = postgres.NewCompletionRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.WithdrawalRepository = postgres.NewWithdrawalRepository()
	app.StatsRepository = postgres.NewStatsRepository()
	app.OrderRepository = postgres.NewPaymentOrderRepository()
	app.Logger.Info("Repositories initialized.")

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.LedgerService = service.NewLedgerService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.UserRepository,
		app.TransactionRepository,
		app.WithdrawalRepository,
		cfg.Rewards.WithdrawalFloor,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.StatsService = service.NewStatsService(
		app.DB,
		app.UserRepository,
		app.CompletionRepository,
		app.TransactionRepository,
		app.StatsRepository,
		service.StatsConfig{
			Location:    cfg.Stats.Location,
			WeeklyGoal:  cfg.Stats.WeeklyGoal,
			MonthlyGoal: cfg.Stats.MonthlyGoal,
		},
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.CompletionService = service.NewCompletionService(
		app.DB,
		app.UserRepository,
		app.ContentRepository,
		app.CompletionRepository,
		app.LedgerService,
		app.StatsService,
		cfg.Rewards.MinReadSeconds,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)

	provider := payment.NewHTTPProvider(cfg.Payment.ProviderURL, cfg.Payment.ProviderAPIKey, app.Logger)
	app.Engine = reconciliation.NewEngine(
		app.DB,
		app.DB,
		app.OrderRepository,
		app.UserRepository,
		provider,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Poller = reconciliation.NewPoller(app.Engine, cfg.Payment.PollInterval, cfg.Payment.PollMaxAttempts, app.Logger)
	app.Sweeper = reconciliation.NewSweeper(app.DB, app.OrderRepository, app.Engine, cfg.Payment.SweepAge, cfg.Payment.SweepInterval, app.Logger)
	app.Queue = reconciliation.NewQueue(app.Redis, app.Engine, cfg.Payment.RetryDelay, app.Logger)
	app.PaymentGateway = payment.NewGateway(
		app.DB,
		app.OrderRepository,
		provider,
		app.Poller,
		map[domain.Plan]decimal.Decimal{domain.PlanPaid: cfg.Payment.PaidPlanPrice},
		payment.Merchant{
			Key:  cfg.Payment.MerchantKey,
			Name: cfg.Payment.MerchantName,
			City: cfg.Payment.MerchantCity,
		},
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(
		router.Handlers{
			Completions: handler.NewCompletionHandler(app.CompletionService, app.Logger),
			Accounts:    handler.NewAccountHandler(app.LedgerService, app.StatsService, app.Logger),
			Payments:    handler.NewPaymentHandler(app.PaymentGateway, app.Engine, app.Queue, app.Logger),
		},
		router.Options{
			JWTSecret:       cfg.Auth.JWTSecret,
			AllowedOrigins:  cfg.AllowedOrigins,
			CompletionLimit: apimw.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute),
		},
		app.Logger,
	)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// StartWorkers runs the notification consumer and the stale order sweeper
// until Shutdown is called.
func (app *Application) StartWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	app.stopWorkers = cancel

	app.workers.Add(2)
	go func() {
		defer app.workers.Done()
		app.Queue.Start(ctx)
	}()
	go func() {
		defer app.workers.Done()
		app.Sweeper.Run(ctx)
	}()
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")

	if app.stopWorkers != nil {
		app.stopWorkers()
		done := make(chan struct{})
		go func() {
			app.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
			app.Logger.Info("Background workers stopped.")
		case <-ctx.Done():
			app.Logger.Warn("Background workers did not stop in time", "error", ctx.Err())
		}
	}
	if app.Poller != nil {
		app.Poller.Close()
		app.Logger.Info("Payment watches cancelled.")
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
