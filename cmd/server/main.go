package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fairytale-server/internal/config"
	"fairytale-server/internal/handler"
	"fairytale-server/internal/repository"
	"fairytale-server/internal/repository/migrations"
	"fairytale-server/internal/service"
	"fairytale-server/internal/trigger"
	"fairytale-server/internal/validation"
	"fairytale-server/pkg/database"
	"fairytale-server/pkg/migration"
	"fairytale-server/shared/authutils"
	sharedLogger "fairytale-server/shared/logger"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// waiter - trigger, который умеет дождаться отправки задач при остановке.
type waiter interface {
	Wait()
}

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	logger, err := sharedLogger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	cfg.LogSummary(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// --- Storage ---
	gateway, closeStore, err := setupGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize segment storage", zap.Error(err))
	}
	defer closeStore()

	var redisClient *redis.Client
	var storyCache repository.StoryCache
	if cfg.RedisAddr != "" {
		redisClient, err = setupRedis(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		storyCache = repository.NewRedisStoryCache(redisClient, cfg.StoryCacheTTL, logger)
	} else {
		storyCache = repository.NewMemoryStoryCache(cfg.StoryCacheTTL)
	}
	gateway = repository.NewCachedGateway(gateway, storyCache)

	// --- AI providers ---
	primary := buildProvider(ctx, cfg.PrimaryProvider(), logger)
	fallback := buildProvider(ctx, cfg.FallbackProvider(), logger)
	orchestrator := service.NewOrchestrator(primary, fallback, logger)

	// --- Image generation ---
	images, closeImages := setupImageTrigger(cfg, logger)
	defer closeImages()

	// --- Dependency Injection ---
	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create JWT verifier", zap.Error(err))
	}
	gate := validation.NewGate(cfg, logger)
	pipeline := service.NewSegmentPipeline(gate, verifier, gateway, orchestrator, images, logger)
	segmentHandler := handler.NewSegmentHandler(pipeline, gateway, verifier.VerifyToken, logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := newRouter(cfg, segmentHandler, rateLimiter(cfg, redisClient, logger), logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP Server listen error", zap.Error(err))
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
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	// Задачи генерации изображений уже запущены, даем им уйти
	if w, ok := images.(waiter); ok {
		w.Wait()
	}
	logger.Info("Server exiting")
}

// setupGateway подключает выбранное хранилище сегментов.
func setupGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.SegmentGateway, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPool(ctx, database.Config{
			DSN:         cfg.GetDSN(),
			MaxConns:    cfg.DBMaxConns,
			IdleTimeout: cfg.DBIdleTimeout,
			MaxRetries:  20,
			RetryDelay:  3 * time.Second,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			migrator := migration.NewMigrator(migration.Config{MigrationsPath: ".", MigrationsFS: migrations.FS}, pool, logger)
			if err := migrator.Up(); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repository.NewPgSegmentGateway(pool, logger), pool.Close, nil

	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("MongoDB ping failed: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}
		return repository.NewMongoSegmentGateway(db, logger), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// setupRedis подключается к Redis с повторными попытками.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	maxRetries := 10
	retryDelay := 2 * time.Second
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			return client, nil
		}
		logger.Warn("Redis ping failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

// buildProvider создает клиента уровня. Ошибка не фатальна: уровень просто пропускается.
func buildProvider(ctx context.Context, p config.ProviderConfig, logger *zap.Logger) *service.Provider {
	client, err := service.NewChatClient(ctx, p, logger)
	if err != nil {
		logger.Error("AI provider disabled", zap.String("provider", p.Name), zap.String("tier", string(p.Kind)), zap.Error(err))
		return nil
	}
	return &service.Provider{Config: p, Client: client}
}

// setupImageTrigger выбирает транспорт для запуска генерации изображений.
func setupImageTrigger(cfg *config.Config, logger *zap.Logger) (trigger.ImageTrigger, func()) {
	switch cfg.ImageTriggerMode {
	case config.ImageTriggerHTTP:
		if cfg.ImageGenerationURL == "" {
			logger.Warn("IMAGE_GENERATION_URL is not set, image generation disabled")
			return trigger.NoopTrigger{}, func() {}
		}
		return trigger.NewHTTPImageTrigger(cfg.ImageGenerationURL, cfg.ImageTriggerTimeout, logger), func() {}

	case config.ImageTriggerAMQP:
		conn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		t, err := trigger.NewAMQPImageTrigger(conn, cfg.ImageTaskQueue, logger)
		if err != nil {
			_ = conn.Close()
			logger.Fatal("Failed to create AMQP image trigger", zap.Error(err))
		}
		return t, func() {
			if err := t.Close(); err != nil {
				logger.Error("Failed to close AMQP channel", zap.Error(err))
			}
			_ = conn.Close()
		}
	}
	logger.Info("Image generation disabled", zap.String("mode", cfg.ImageTriggerMode))
	return trigger.NoopTrigger{}, func() {}
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}

// rateLimiter ограничивает генерацию по IP. С Redis лимит общий для всех инстансов.
func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	var store rateli.Store
	if redisClient != nil {
		store = rateli.RedisStore(&rateli.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       cfg.RateLimitPerMinute,
		})
	} else {
		store = rateli.InMemoryStore(&rateli.InMemoryOptions{
			Rate:  time.Minute,
			Limit: cfg.RateLimitPerMinute,
		})
	}
	return rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			logger.Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
