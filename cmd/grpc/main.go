package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	reservationv1 "github.com/fekuna/omnipos-reservation-service/api/reservationv1"
	"github.com/fekuna/omnipos-reservation-service/config"
	"github.com/fekuna/omnipos-reservation-service/internal/inventory"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/database/sqlite"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/middleware"
	"github.com/fekuna/omnipos-reservation-service/internal/pkg/tracing"

	invH "github.com/fekuna/omnipos-reservation-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-reservation-service/internal/inventory/listener"
	invPubPkg "github.com/fekuna/omnipos-reservation-service/internal/inventory/publisher"
	invRepoPkg "github.com/fekuna/omnipos-reservation-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-reservation-service/internal/inventory/usecase"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing and metrics
	shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		appLogger.Fatal("Could not initialize tracing", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// 4. Initialize Repository
	invRepo, closeStore := openStore(ctx, cfg, appLogger)
	defer closeStore()

	// 5. Initialize Redis
	var idem inventory.IdempotencyStore
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idem = invRepoPkg.NewRedisIdempotencyStore(redisClient, cfg.Redis.PendingTTL, cfg.Redis.ResultTTL)
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 6. Initialize Kafka Producer
	var movementPublisher inventory.MovementPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.MovementTopic,
		})
		defer producer.Close()
		movementPublisher = invPubPkg.NewMovementPublisher(producer, invPubPkg.BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             cfg.Kafka.BreakerTimeout,
			ConsecutiveFailures: uint32(cfg.Kafka.BreakerTrips),
		}, appLogger)
		appLogger.Info("Kafka producer ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.MovementTopic))
	}

	// 7. Initialize UseCase
	invUC := invUCPkg.NewInventoryUseCase(invRepo, idem, movementPublisher, invUCPkg.Config{
		DefaultTTL: cfg.Reservation.DefaultTTL,
		Metrics:    appMetrics,
	}, appLogger)

	// 8. Background workers
	sweeper := invUCPkg.NewSweeper(invUC, cfg.Reservation.SweepInterval, cfg.Reservation.SweepBatch, appMetrics, appLogger)
	go sweeper.Start(ctx)

	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.PickTaskTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.PickTaskTopic))

		invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, invUC, appLogger)
		go invListener.Start(ctx)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("Starting metrics server", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// 9. Initialize Handlers
	invHandler := invH.NewInventoryHandler(invUC, appLogger)

	// 10. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		IdleTTL:           cfg.RateLimit.IdleTTL,
	})

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextInterceptor(),
			middleware.RateLimitInterceptor(limiter, appMetrics),
			middleware.LoggingInterceptor(appLogger),
		),
	)

	// Register Services
	reservationv1.RegisterReservationServiceServer(grpcServer, invHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(reservationv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Metrics server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Warn("Tracer shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// openStore connects the configured backend and applies the schema.
func openStore(ctx context.Context, cfg *config.Config, appLogger logger.ZapLogger) (inventory.Repository, func()) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Store.Driver {
	case "memory":
		appLogger.Warn("Using in-memory store, data is lost on restart")
		return invRepoPkg.NewMemoryRepository(), func() {}
	case "sqlite":
		db, err = sqlite.NewSQLite(cfg.SQLite.Path, cfg.SQLite.BusyTimeoutMs)
		if err != nil {
			appLogger.Fatal("Could not open SQLite database", zap.Error(err))
		}
		appLogger.Info("Opened SQLite database", zap.String("path", cfg.SQLite.Path))
	case "postgres":
		db, err = postgres.NewPostgres(&postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to database", zap.Error(err))
		}
		appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))
	default:
		appLogger.Fatal("Unknown store driver", zap.String("driver", cfg.Store.Driver))
	}

	if cfg.Store.AutoMigrate {
		if err := invRepoPkg.Migrate(ctx, db); err != nil {
			appLogger.Fatal("Could not apply schema", zap.Error(err))
		}
	}

	return invRepoPkg.NewSQLRepository(db, cfg.Postgres.LockTimeout), func() { db.Close() }
}
