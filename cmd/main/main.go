package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/healthcheck"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/ingestion"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/ingestion/handler"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/sweeper"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Daisi CRM Engine",
		zap.String("environment", cfg.Environment),
		zap.String("nats_url", cfg.NATS.URL),
	)

	// Initialize repositories
	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize JetStream client
	jsClient, err := jetstream.NewClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	// Create repository adapters for the service
	txAdapter := storage.NewTxAdapter(postgresRepo)
	leadRepo := storage.NewLeadRepoAdapter(postgresRepo)
	customerRepo := storage.NewCustomerRepoAdapter(postgresRepo)
	conversationRepo := storage.NewConversationRepoAdapter(postgresRepo)
	interactionRepo := storage.NewInteractionRepoAdapter(postgresRepo)
	taskRepo := storage.NewTaskRepoAdapter(postgresRepo)
	agentRepo := storage.NewAgentRepoAdapter(postgresRepo)
	attributionRepo := storage.NewAttributionRepoAdapter(postgresRepo)
	auditRepo := storage.NewAuditRepoAdapter(postgresRepo)
	businessRepo := storage.NewBusinessRepoAdapter(postgresRepo)
	userRepo := storage.NewUserRepoAdapter(postgresRepo)
	deadEventRepo := storage.NewDeadEventRepoAdapter(postgresRepo)

	// Create the lifecycle engine service
	service := usecase.NewCrmService(
		txAdapter,
		leadRepo,
		customerRepo,
		conversationRepo,
		interactionRepo,
		taskRepo,
		agentRepo,
		attributionRepo,
		auditRepo,
		businessRepo,
		userRepo,
		cfg.Engine,
	)

	// Wire the intake pipeline: router -> handler -> consumer
	router := ingestion.NewRouter()
	intakeHandler := handler.NewIntakeHandler(service)
	router.Register(model.V1LeadsIntake, intakeHandler.HandleEvent)
	router.Register(model.V1ConversationsMessage, intakeHandler.HandleEvent)

	consumer := ingestion.NewIntakeConsumer(jsClient, router, deadEventRepo, cfg.NATS.Intake)
	if err := consumer.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up intake consumer", zap.Error(err))
	}

	// Periodic SLA and overdue sweeps
	sweep := sweeper.New(service, businessRepo, conversationRepo, cfg.Sweeper, cfg.Engine)

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)

	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	if err := consumer.Start(); err != nil {
		logger.Log.Fatal("Failed to start intake consumer", zap.Error(err))
	}

	if err := sweep.Start(); err != nil {
		logger.Log.Fatal("Failed to start sweeper", zap.Error(err))
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup

	// consumer, sweeper, health server, storage/NATS connections
	numComponents := 4
	wg.Add(numComponents)

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping intake consumer")
		start := time.Now()
		consumer.Stop()
		logger.Log.Info("[shutdown] Intake consumer stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping intake consumer",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping sweeper")
		start := time.Now()
		sweep.Stop()
		logger.Log.Info("[shutdown] Sweeper stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping sweeper",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		}
		logger.Log.Info("[shutdown] Health check server stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing connections")
		start := time.Now()
		jsClient.Close()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error closing Postgres connection", zap.Error(err))
		}
		logger.Log.Info("[shutdown] Connections closed",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait for all components to shut down or timeout
	shutdownComplete := make(chan struct{})
	go func() {
		wg.Wait()
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		logger.Log.Info("Graceful shutdown complete")
	case <-shutdownCtx.Done():
		logger.Log.Warn("Graceful shutdown timed out, forcing exit")
	}
}
