package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httptransport "github.com/deskline/helpdesk-service/internal/api/http"
	"github.com/deskline/helpdesk-service/internal/api/http/handlers"
	"github.com/deskline/helpdesk-service/internal/auth"
	"github.com/deskline/helpdesk-service/internal/config"
	"github.com/deskline/helpdesk-service/internal/events"
	"github.com/deskline/helpdesk-service/internal/observability"
	"github.com/deskline/helpdesk-service/internal/persistence"
	"github.com/deskline/helpdesk-service/internal/repository"
	"github.com/deskline/helpdesk-service/internal/repository/memrepo"
	"github.com/deskline/helpdesk-service/internal/service"
	"github.com/deskline/helpdesk-service/internal/worker"
)

type repositories struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	companies  repository.CompanyRepository
	categories repository.CategoryRepository
	responses  repository.TicketResponseRepository
	history    repository.TicketHistoryRepository
	tx         repository.Transactor
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		tickets:    repository.NewTicketRepository(pool),
		users:      repository.NewUserRepository(pool),
		companies:  repository.NewCompanyRepository(pool),
		categories: repository.NewCategoryRepository(pool),
		responses:  repository.NewTicketResponseRepository(pool),
		history:    repository.NewTicketHistoryRepository(pool),
		tx:         repository.NewTransactor(pool),
	}
}

func memoryRepositories() repositories {
	store := memrepo.NewStore()
	return repositories{
		tickets:    store.Tickets,
		users:      store.Users,
		companies:  store.Companies,
		categories: store.Categories,
		responses:  store.Responses,
		history:    store.History,
		tx:         store,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	readiness := map[string]handlers.Pinger{}
	var repos repositories
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresRepositories(pg.PoolHandle())
		readiness["postgres"] = pg
	} else {
		logger.Warn("POSTGRES_DSN not set; using in-memory repositories")
		repos = memoryRepositories()
		readiness["postgres"] = nil
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	var denylist auth.Denylist
	if redis.Reachable() {
		denylist = auth.NewRedisDenylist(redis.Client)
		readiness["redis"] = redis
	} else {
		logger.Warn("redis unreachable; token revocation is process local")
		denylist = auth.NewMemoryDenylist()
		readiness["redis"] = nil
	}

	metrics := observability.NewMetrics("helpdesk")
	dispatcher := events.NewInMemoryDispatcher(logger)

	var publisher *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		defer publisher.Close() //nolint:errcheck
		logger.Info("publishing ticket events to kafka", zap.String("topic", cfg.Kafka.Topic))
	}
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(dispatcher, notificationService, publisher)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    repos.users,
		CompanyRepo: repos.companies,
		Transactor:  repos.tx,
		Denylist:    denylist,
		Logger:      logger,
	})
	companyService := service.NewCompanyService(*cfg, service.CompanyDependencies{
		UserRepo:     repos.users,
		CategoryRepo: repos.categories,
		CompanyRepo:  repos.companies,
		Logger:       logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.tickets,
		ResponseRepo: repos.responses,
		HistoryRepo:  repos.history,
		CompanyRepo:  repos.companies,
		CategoryRepo: repos.categories,
		Transactor:   repos.tx,
		ReopenWindow: cfg.Lifecycle.ReopenWindow(),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		Transactor:  repos.tx,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	if cfg.Lifecycle.AutoCloseEnabled {
		autoClose := worker.NewAutoCloseWorker(ticketService, cfg.Lifecycle, logger)
		if err := autoClose.Start(ctx); err != nil {
			logger.Fatal("failed to start auto-close worker", zap.Error(err))
		}
		defer autoClose.Stop()
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users, authService.Denylist(), logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth:           handlers.NewAuthHandler(authService),
		Company:        handlers.NewCompanyHandler(companyService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
