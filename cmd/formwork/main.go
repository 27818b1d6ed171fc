package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/formwork-pm/formwork/internal/app"
	"github.com/formwork-pm/formwork/internal/auth"
	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/changeorders"
	"github.com/formwork-pm/formwork/internal/drawings"
	"github.com/formwork-pm/formwork/internal/observability"
	"github.com/formwork-pm/formwork/internal/platform/cache"
	"github.com/formwork-pm/formwork/internal/platform/db"
	"github.com/formwork-pm/formwork/internal/principals"
	"github.com/formwork-pm/formwork/internal/projects"
	"github.com/formwork-pm/formwork/internal/shared"
	"github.com/formwork-pm/formwork/jobs"
	"github.com/formwork-pm/formwork/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ConnMaxLifetime: cfg.PGConnLifetime})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "formwork_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	principalsRepo := principals.NewRepository(pool)
	projectsRepo := projects.NewRepository(pool)

	catalog := authz.DefaultCatalog()
	guard := authz.NewGuard(catalog, principalsRepo, projectsRepo, logger)
	authzMiddleware := authz.Middleware{Guard: guard, Logger: logger, Metrics: metrics}
	catalogHandler := authz.NewCatalogHandler(logger, guard)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	principalsService := principals.NewService(principalsRepo, catalog, auditLogger, jobsClient, logger)
	principalsHandler := principals.NewHandler(logger, principalsService, authzMiddleware)

	projectsService := projects.NewService(projectsRepo)
	projectsHandler := projects.NewHandler(logger, projectsService, guard, authzMiddleware)

	changeOrdersRepo := changeorders.NewRepository(pool)
	changeOrdersService := changeorders.NewService(changeOrdersRepo)
	changeOrdersHandler := changeorders.NewHandler(logger, changeOrdersService, guard, authzMiddleware)

	drawingsRepo := drawings.NewRepository(pool)
	drawingsHandler := drawings.NewHandler(logger, drawingsRepo, authzMiddleware)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(logger, reportClient, projectsService, changeOrdersService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         authHandler,
		CatalogHandler:      catalogHandler,
		PrincipalsHandler:   principalsHandler,
		ProjectsHandler:     projectsHandler,
		ChangeOrdersHandler: changeOrdersHandler,
		DrawingsHandler:     drawingsHandler,
		ReportHandler:       reportHandler,
		JobHandler:          jobHandler,
		AuthzMiddleware:     authzMiddleware,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
