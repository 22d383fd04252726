package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/approval"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/directory"
	"github.com/spec-kit/triage-service/internal/document"
	"github.com/spec-kit/triage-service/internal/engine"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/notify"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	invoiceRepo := repository.NewInvoiceRepository(pool)
	rosterRepo := repository.NewRosterRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	renderer, err := document.NewPDFRenderer(cfg.Documents.OutputDir)
	if err != nil {
		logger.Fatal("failed to prepare document output dir", zap.Error(err))
	}

	mailer := notify.NewMailer(cfg.SMTP, logger)
	lookup := directory.NewLookup(rosterRepo)
	tokens := approval.NewCodec(cfg.Approval.Secret)
	provider := llm.NewOpenAI(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout())

	resolutionEngine := engine.New(engine.Dependencies{
		Tickets:    ticketRepo,
		Invoices:   invoiceRepo,
		Directory:  lookup,
		Notifier:   mailer,
		Renderer:   renderer,
		Provider:   provider,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
		LLM:        cfg.LLM,
		BaseURL:    cfg.Approval.BaseURL,
	})

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo: ticketRepo,
		Engine:     resolutionEngine,
		Redis:      redis,
		Metrics:    metrics,
		Logger:     logger,
		LockTTL:    cfg.Triage.LockTTL(),
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		TicketRepo: ticketRepo,
		Tokens:     tokens,
		Notifier:   mailer,
		Directory:  lookup,
		Balancer:   assignmentService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		RosterRepo: rosterRepo,
		Tokens:     tokenManager,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	rosterService := service.NewRosterService(service.RosterDependencies{
		RosterRepo: rosterRepo,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	reportService := service.NewReportService(service.ReportDependencies{
		TicketRepo:  ticketRepo,
		InvoiceRepo: invoiceRepo,
	})

	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger, metrics))

	var scheduler *cron.Cron
	if cfg.Triage.Schedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Triage.Schedule, triageService.RunAsync); err != nil {
			logger.Fatal("invalid triage schedule", zap.String("schedule", cfg.Triage.Schedule), zap.Error(err))
		}
		scheduler.Start()
		logger.Info("scheduled triage enabled", zap.String("schedule", cfg.Triage.Schedule))
	}

	authMiddleware := auth.NewAuthMiddleware(tokenManager, rosterRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Roster:         handlers.NewRosterHandler(rosterService),
		Triage:         handlers.NewTriageHandler(triageService, assignmentService),
		Approval:       handlers.NewApprovalHandler(approvalService),
		Tickets:        handlers.NewTicketsHandler(ticketRepo),
		Dashboard:      handlers.NewDashboardHandler(reportService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if scheduler != nil {
		scheduler.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
