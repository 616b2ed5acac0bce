package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miniquest-server/internal/ai"
	"miniquest-server/internal/config"
	"miniquest-server/internal/handler"
	"miniquest-server/internal/messaging"
	"miniquest-server/internal/safety"
	"miniquest-server/internal/service"
	"miniquest-server/internal/worker"
	"miniquest-server/pkg/migration"
	"miniquest-server/shared/database"
	"miniquest-server/shared/interfaces"
	sharedLogger "miniquest-server/shared/logger"
	sharedMiddleware "miniquest-server/shared/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	connectMaxRetries = 30
	connectRetryDelay = 3 * time.Second
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to an optional .env file")
	migrateCmd := flag.String("migrate", "", "Run migrations and exit: up, down or version")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	content, err := config.LoadContent(cfg.ContentFile)
	if err != nil {
		fmt.Printf("Failed to load story content: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "miniquest-server",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel), zap.String("env", cfg.Env))

	// --- PostgreSQL ---
	dbPool, err := setupPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsFS:   database.MigrationsFS,
		MigrationsPath: database.MigrationsDir,
	}, dbPool)
	if *migrateCmd != "" {
		if err := runMigrationCommand(migrator, *migrateCmd, logger); err != nil {
			logger.Fatal("Migration command failed", zap.String("command", *migrateCmd), zap.Error(err))
		}
		return
	}
	if cfg.DBMigrateOnStart {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrator.Up(migrateCtx)
		migrateCancel()
		if err != nil {
			logger.Fatal("Failed to apply database migrations", zap.Error(err))
		}
	}

	questRepo := database.NewPgQuestRepository(dbPool, logger)
	telemetryRepo := database.NewPgTelemetryRepository(dbPool, logger)

	// --- Session locking ---
	var locker interfaces.SessionLocker
	switch cfg.SessionLockBackend {
	case config.LockBackendRedis:
		redisClient, err := setupRedis(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = database.NewRedisSessionLocker(redisClient, cfg.SessionLockTTL, logger)
	default:
		locker = service.NewLockManager()
	}
	logger.Info("Session locking configured", zap.String("backend", cfg.SessionLockBackend))

	// --- Telemetry ---
	var publisher interfaces.TelemetryPublisher
	if cfg.TelemetryPublishEnabled() {
		rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbitConn.Close()
		publisher, err = messaging.NewRabbitMQTelemetryPublisher(rabbitConn, cfg.QuestEventsQueue, logger)
		if err != nil {
			logger.Fatal("Failed to create telemetry publisher", zap.Error(err))
		}
		defer publisher.Close()
	}
	telemetry := service.NewTelemetryService(cfg.TelemetryBufferSize, logger)
	telemetryWorker := worker.NewTelemetryWorker(telemetry.Events(), telemetryRepo, publisher, logger)
	telemetryWorker.Start()

	// --- Generation ---
	generator, err := ai.NewTextGenerator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create text generator", zap.Error(err))
	}

	questService := service.NewQuestService(
		questRepo,
		generator,
		locker,
		safety.NewFilter(content.BlockList),
		telemetry,
		content,
		service.Options{
			HistorySteps:        cfg.HistorySteps,
			GenerationTimeout:   cfg.AITimeout,
			StoreMaxRetries:     cfg.StoreMaxRetries,
			StoreRetryBaseDelay: cfg.StoreRetryBaseDelay,
		},
		logger,
	)
	questHandler := handler.NewQuestHandler(questService, logger)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(sharedMiddleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", sharedMiddleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	questHandler.RegisterRoutes(router)
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	// No request can record telemetry any more; flush what is buffered.
	telemetry.Close()
	if err := telemetryWorker.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Telemetry worker did not drain in time", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func runMigrationCommand(migrator *migration.Migrator, command string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch command {
	case "up":
		return migrator.Up(ctx)
	case "down":
		return migrator.Down(ctx)
	case "version":
		version, dirty, err := migrator.Version(ctx)
		if err != nil {
			return err
		}
		logger.Info("Current schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// setupPostgres creates the connection pool, retrying until the database answers.
func setupPostgres(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		connectCancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = pool.Ping(pingCtx)
			pingCancel()
			if err == nil {
				zap.L().Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
				return pool, nil
			}
			pool.Close()
		}

		lastErr = err
		zap.L().Warn("PostgreSQL is not ready, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err),
		)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", connectMaxRetries, lastErr)
}

// setupRedis creates the Redis client used for session locks.
func setupRedis(cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		client := redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			zap.L().Info("Connected to Redis", zap.String("address", opts.Addr), zap.Int("attempt", attempt))
			return client, nil
		}

		_ = client.Close()
		lastErr = err
		zap.L().Warn("Redis is not ready, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err),
		)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", connectMaxRetries, lastErr)
}

// connectRabbitMQ dials the broker with retries and logs unexpected connection loss.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp091.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
				if err := <-closed; err != nil {
					logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(err))
				}
			}()
			return conn, nil
		}

		lastErr = err
		logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectMaxRetries),
			zap.Error(err),
		)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectMaxRetries, lastErr)
}
