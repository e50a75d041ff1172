package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uzconnect/operator-console-api/api/swagger"
	"github.com/uzconnect/operator-console-api/internal/handler"
	"github.com/uzconnect/operator-console-api/internal/middleware"
	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/internal/notifier"
	"github.com/uzconnect/operator-console-api/internal/repository"
	"github.com/uzconnect/operator-console-api/internal/service"
	"github.com/uzconnect/operator-console-api/pkg/cache"
	"github.com/uzconnect/operator-console-api/pkg/config"
	"github.com/uzconnect/operator-console-api/pkg/database"
	"github.com/uzconnect/operator-console-api/pkg/logger"
	corsmiddleware "github.com/uzconnect/operator-console-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uzconnect/operator-console-api/pkg/middleware/requestid"
	"github.com/uzconnect/operator-console-api/pkg/storage"
)

// @title Operator Console API
// @version 0.1.0
// @description Back-office console for service applications
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer rdb.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	staffRepo := repository.NewStaffRepository(db, metrics)
	clientRepo := repository.NewClientRepository(db, metrics)
	appRepo := repository.NewApplicationRepository(db, metrics)
	auditRepo := repository.NewAuditRepository(db, metrics)
	sessionRepo := repository.NewSessionRepository(rdb, cfg.Sessions.IdleTTL, logr)

	auditPipeline := service.NewAuditPipeline(auditRepo, logr, metrics, service.AuditPipelineConfig{
		QueueCapacity: cfg.Audit.QueueCapacity,
		FlushTimeout:  cfg.Audit.FlushTimeout,
	})

	var clientNotifier notifier.Notifier = notifier.Noop{}
	var dispatcher *notifier.Dispatcher
	if cfg.Notifications.Enabled {
		var delegate notifier.Notifier = notifier.LogNotifier{Logger: logr}
		if cfg.Notifications.WebhookURL != "" {
			delegate = notifier.NewWebhookNotifier(cfg.Notifications.WebhookURL, cfg.Notifications.Timeout, logr)
		}
		dispatcher = notifier.NewDispatcher(delegate, notifier.DispatcherConfig{
			MaxRetries: cfg.Notifications.MaxRetries,
		}, logr)
		dispatcher.Start(context.Background())
		clientNotifier = dispatcher
	}

	permissions := service.NewPermissionEngine(cfg.Permissions)
	resolver := service.NewClientResolver(clientRepo, validate, logr)
	tracker := service.NewSessionTracker(sessionRepo, logr)

	authService := service.NewAuthService(staffRepo, auditPipeline, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "operator-console-api",
		Audience:           []string{"operator-console"},
		SingleSession:      false,
	})
	creationService := service.NewCreationService(staffRepo, appRepo, permissions, resolver, tracker, auditPipeline, clientNotifier, metrics, logr)
	workflowService := service.NewWorkflowService(appRepo, auditPipeline, clientNotifier, metrics, logr)

	exportArchive, err := storage.NewArchiveDir(cfg.Audit.ExportDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export archive", "error", err)
	}
	exportSigner := storage.NewArchiveTokenSigner(cfg.JWT.Secret, cfg.Audit.ExportURLTTL)
	auditQueryService := service.NewAuditQueryService(auditRepo, exportArchive, exportSigner, logr)

	authHandler := handler.NewAuthHandler(authService)
	creationHandler := handler.NewCreationHandler(creationService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)
	auditHandler := handler.NewAuditHandler(auditQueryService)
	metricsHandler := handler.NewMetricsHandler(metrics, db, rdb)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	creation := api.Group("/creation", middleware.JWT(authService))
	{
		creation.POST("/start", creationHandler.Start)
		creation.GET("/:id", creationHandler.Get)
		creation.DELETE("/:id", creationHandler.Cancel)
		creation.POST("/:id/client/select", creationHandler.SelectClient)
		creation.POST("/:id/client", creationHandler.CreateClient)
		creation.PATCH("/:id/fields", creationHandler.SetField)
		creation.POST("/:id/edit", creationHandler.Edit)
		creation.POST("/:id/submit", creationHandler.Submit)
	}

	applications := api.Group("/applications", middleware.JWT(authService))
	{
		applications.POST("/:id/advance", workflowHandler.Advance)
	}

	audit := api.Group("/audit", middleware.JWT(authService), middleware.RBAC(models.RoleManager, models.RoleController))
	{
		audit.GET("/events", auditHandler.List)
		audit.GET("/sessions/:sessionId/export", auditHandler.ExportSession)
		audit.POST("/sessions/:sessionId/archive", auditHandler.ArchiveSession)
	}

	// download links are authorized by their signed token
	api.GET("/audit/exports/:token", auditHandler.DownloadArchive)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Archived exports whose download tokens have expired are unreachable,
	// so sweep them out hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := exportArchive.RemoveOlderThan(time.Now().Add(-cfg.Audit.ExportURLTTL))
				if err != nil {
					logr.Sugar().Warnw("export archive sweep failed", "error", err)
				} else if removed > 0 {
					logr.Sugar().Infow("export archive swept", "removed", removed)
				}
			}
		}
	}()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}

	auditPipeline.Close()
	if dispatcher != nil {
		dispatcher.Stop()
	}
}
