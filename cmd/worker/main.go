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

	"github.com/headstart-tech/admissions-api/internal/cache"
	"github.com/headstart-tech/admissions-api/internal/config"
	"github.com/headstart-tech/admissions-api/internal/handler/health"
	promHandler "github.com/headstart-tech/admissions-api/internal/handler/prometheus"
	mongorepo "github.com/headstart-tech/admissions-api/internal/repository/mongo"
	notificationService "github.com/headstart-tech/admissions-api/internal/service/notification"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	"github.com/headstart-tech/admissions-api/internal/worker"
	"github.com/headstart-tech/admissions-api/pkg/logger"
	"github.com/headstart-tech/admissions-api/pkg/messaging/amqp"
	"github.com/headstart-tech/admissions-api/pkg/metrics"
)

const healthPort = 8081

// setupHealthCheck serves liveness, readiness and metrics for the worker.
func setupHealthCheck(appLogger *logger.Logger, checks map[string]health.Pinger, registry *prometheus.Registry, namespace string) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine.Group(""))
	engine.GET("/metrics", promHandler.New(namespace+"_worker", registry).Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())
	gin.SetMode(gin.ReleaseMode)

	if cfg.Tenant.DefaultUniversityID == "" {
		appLogger.Fatal(errors.New("tenant.default_university_id is required"), "worker has no university to serve")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, "worker", registry)

	mongoClient, err := mongorepo.Connect(context.Background(), cfg.Mongo.ToRepositoryConfig())
	if err != nil {
		appLogger.Fatal(err, "failed to connect to mongodb")
	}
	defer mongoClient.Disconnect(context.Background())

	cacheClient, err := cache.NewClient(cfg.Redis.ToCacheConfig(), m)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to redis")
	}
	defer cacheClient.Close()

	broker := amqp.NewBroker(cfg.AMQP.ToBrokerConfig(), appLogger)
	defer broker.Close()

	tenants := tenant.NewResolver(mongorepo.NewTenantRepository(mongoClient.Master), cfg.Tenant.AWSEnv, cfg.Tenant.SettingsTTL, appLogger)
	notifySvc := notificationService.NewService(
		mongorepo.NewNotificationRepository(mongoClient.DB),
		mongorepo.NewStudentRepository(mongoClient.DB),
		cacheClient,
		broker,
		notificationService.Config{
			MaxPushRetries:  cfg.Notification.MaxPushRetries,
			RetryBaseDelay:  cfg.Notification.RetryBaseDelay,
			BulkConcurrency: cfg.Notification.BulkConcurrency,
			MaxListLength:   cfg.Notification.MaxListLength,
		},
		appLogger,
		m,
	)

	reminders := worker.NewFollowupReminderWorker(
		mongorepo.NewFollowupRepository(mongoClient.DB),
		notifySvc,
		tenants,
		worker.FollowupReminderConfig{
			Schedule:     cfg.Worker.FollowupSchedule,
			Lookahead:    cfg.Worker.FollowupLookahead,
			UniversityID: cfg.Tenant.DefaultUniversityID,
		},
		appLogger,
	)

	healthSrv := setupHealthCheck(appLogger, map[string]health.Pinger{
		"mongo": mongoClient,
		"redis": cacheClient,
	}, registry, cfg.Monitoring.Namespace)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	if err := reminders.Start(ctx); err != nil {
		appLogger.Error(err, "followup reminder worker stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
}
