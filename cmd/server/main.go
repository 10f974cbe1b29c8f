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

	"purchase-order-service/config"
	"purchase-order-service/internal/api"
	"purchase-order-service/internal/broker"
	"purchase-order-service/internal/redisclient"
	"purchase-order-service/internal/service"
	"purchase-order-service/internal/store"
	"purchase-order-service/internal/util"
	"purchase-order-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "purchase-order-service"

// orderStore is what both store drivers provide.
type orderStore interface {
	service.OrderRepository
	service.ProductSource
	worker.EventLedger
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(serviceName, cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting purchase order service",
		zap.String("env", cfg.Server.Env),
		zap.String("store", cfg.Database.Driver))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(serviceName, cfg.Server.Env, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store connected", zap.String("driver", cfg.Database.Driver))

	deps := map[string]api.Pinger{"database": db}

	var (
		locker service.Locker = service.NewLocalLocker(0)
		cache  service.SnapshotCache
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		locker = service.NewRedisLocker(redisClient, cfg.Business.OrderLockTTL, 0)
		cache = redisClient
		deps["redis"] = redisClient
	}

	catalog := service.NewCatalogClient(db, cache, cfg.Business.CatalogCacheTTL)

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled() {
		auditProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAudit)
		defer auditProducer.Close()
		orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer orderProducer.Close()
		publisher = broker.NewEventPublisher(auditProducer, orderProducer)
		logger.Info("Kafka producers initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		logger.Warn("Kafka disabled, audit records and order events are not published")
	}

	orderService := service.NewOrderService(db, catalog, locker, publisher,
		service.WithBulkConcurrency(cfg.Business.BulkConcurrency))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var signalWorker *worker.SignalWorker
	if cfg.Kafka.Enabled() {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSignals, cfg.Kafka.ConsumerGroup)
		signalWorker = worker.NewSignalWorker(consumer, orderService, db)
		go func() {
			if err := signalWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Signal worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, deps)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if signalWorker != nil {
		if err := signalWorker.Stop(); err != nil {
			logger.Warn("Error stopping signal worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func openStore(cfg config.DatabaseConfig) (orderStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return store.NewStore(cfg.URL)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
