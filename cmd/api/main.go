package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/headstart-tech/admissions-api/internal/cache"
	"github.com/headstart-tech/admissions-api/internal/config"
	"github.com/headstart-tech/admissions-api/internal/handler/health"
	notificationHandler "github.com/headstart-tech/admissions-api/internal/handler/notification"
	permissionHandler "github.com/headstart-tech/admissions-api/internal/handler/permission"
	promHandler "github.com/headstart-tech/admissions-api/internal/handler/prometheus"
	"github.com/headstart-tech/admissions-api/internal/middleware"
	mongorepo "github.com/headstart-tech/admissions-api/internal/repository/mongo"
	"github.com/headstart-tech/admissions-api/internal/repository/postgres"
	"github.com/headstart-tech/admissions-api/internal/router"
	notificationService "github.com/headstart-tech/admissions-api/internal/service/notification"
	permissionService "github.com/headstart-tech/admissions-api/internal/service/permission"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	"github.com/headstart-tech/admissions-api/pkg/auth"
	"github.com/headstart-tech/admissions-api/pkg/logger"
	"github.com/headstart-tech/admissions-api/pkg/messaging/amqp"
	"github.com/headstart-tech/admissions-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())
	gin.SetMode(gin.ReleaseMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, "", registry)

	// Initialize stores
	mongoClient, err := mongorepo.Connect(context.Background(), cfg.Mongo.ToRepositoryConfig())
	if err != nil {
		appLogger.Fatal(err, "failed to connect to mongodb")
	}
	defer mongoClient.Disconnect(context.Background())

	db, err := postgres.NewDB(cfg.Database.DSN())
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	cacheClient, err := cache.NewClient(cfg.Redis.ToCacheConfig(), m)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to redis")
	}
	defer cacheClient.Close()

	broker := amqp.NewBroker(cfg.AMQP.ToBrokerConfig(), appLogger)
	defer broker.Close()

	verifier, err := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		appLogger.Fatal(err, "failed to configure token verification")
	}

	// Initialize repositories
	permissionRepo := mongorepo.NewPermissionRepository(mongoClient.DB)
	groupRepo := mongorepo.NewGroupRepository(mongoClient.DB)
	notificationRepo := mongorepo.NewNotificationRepository(mongoClient.DB)
	studentRepo := mongorepo.NewStudentRepository(mongoClient.DB)
	tenantRepo := mongorepo.NewTenantRepository(mongoClient.Master)
	accessRepo := postgres.NewAccessRepository(db)

	// Initialize services
	tenants := tenant.NewResolver(tenantRepo, cfg.Tenant.AWSEnv, cfg.Tenant.SettingsTTL, appLogger)
	populator := permissionService.NewPopulator(permissionRepo, cacheClient, cfg.Cache.PermissionTTL, appLogger, m)
	permSvc := permissionService.NewService(populator, accessRepo, groupRepo, appLogger)
	notifySvc := notificationService.NewService(notificationRepo, studentRepo, cacheClient, broker, notificationService.Config{
		MaxPushRetries:  cfg.Notification.MaxPushRetries,
		RetryBaseDelay:  cfg.Notification.RetryBaseDelay,
		BulkConcurrency: cfg.Notification.BulkConcurrency,
		MaxListLength:   cfg.Notification.MaxListLength,
	}, appLogger, m)

	// Initialize handlers
	healthH := health.NewHandler(map[string]health.Pinger{
		"mongo":    mongoClient,
		"postgres": health.PingFunc(db.PingContext),
		"redis":    cacheClient,
	})
	authMW := middleware.NewAuthMiddleware(verifier, permSvc)
	permH := permissionHandler.NewHandler(permSvc, authMW)
	notifyH := notificationHandler.NewHandler(notifySvc, authMW, cfg.Notification.StreamListWindow, appLogger)

	var metricsH router.MetricsHandler
	if cfg.Monitoring.PrometheusEnabled {
		metricsH = promHandler.New(cfg.Monitoring.Namespace, registry)
	}

	// Setup router
	r := router.NewRouter(
		authMW,
		tenants,
		healthH,
		permH,
		notifyH,
		metricsH,
		appLogger,
		router.RouterConfig{
			RateLimitEnabled:    cfg.RateLimit.Enabled,
			RateLimit:           rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:           cfg.RateLimit.Burst,
			RequestTimeout:      cfg.Server.RequestTimeout,
			DefaultUniversityID: cfg.Tenant.DefaultUniversityID,
			AllowedOrigins:      cfg.Server.AllowedOrigins,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}
}
