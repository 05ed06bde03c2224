package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"wove-server/internal/ai"
	"wove-server/internal/config"
	"wove-server/internal/database"
	deliveryhttp "wove-server/internal/delivery/http"
	deliveryws "wove-server/internal/delivery/websocket"
	"wove-server/internal/logger"
	"wove-server/internal/messaging"
	"wove-server/internal/service"
	"wove-server/pkg/taskmanager"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Env == "development",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// --- External Connections ---
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := database.NewPgxPool(ctx, cfg.GetDSN(), int32(cfg.DBMaxConns))
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	// Миграции накатываются при старте; при конкурентном старте нескольких
	// инстансов golang-migrate возьмет advisory lock.
	if err := database.NewMigrator(pgPool).Up(ctx); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}
	zap.L().Info("Migrations applied")

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zap.L().Info("Connected to RabbitMQ")

	// --- Repositories ---
	userRepo := database.NewPgUserRepository(pgPool, log)
	storyRepo := database.NewPgStoryRepository(pgPool, log)
	segmentRepo := database.NewPgSegmentRepository(pgPool, log)
	collabRepo := database.NewPgCollaboratorRepository(pgPool, log)
	branchRepo := database.NewPgBranchRepository(pgPool, log)
	memoryRepo := database.NewPgMemoryRepository(pgPool, log)
	mediaRepo := database.NewPgMediaRepository(pgPool, log)
	notificationRepo := database.NewPgNotificationRepository(pgPool, log)
	deviceTokenRepo := database.NewPgDeviceTokenRepository(pgPool, log)
	reportRepo := database.NewPgReportRepository(pgPool, log)
	parentalRepo := database.NewPgParentalRepository(pgPool, log)
	txRunner := database.NewPgxTxRunner(pgPool)

	tokenRepo := database.NewRedisTokenRepository(redisClient, log)
	rateLimitStore := database.NewRedisRateLimitStore(redisClient, log)
	roomRepo := database.NewRedisRoomRepository(redisClient, log)
	unreadCounter := database.NewRedisUnreadCounter(redisClient, log)

	// --- Messaging ---
	taskPublisher, err := messaging.NewRabbitMQMediaTaskPublisher(mqConn, cfg.MediaTaskQueue)
	if err != nil {
		zap.L().Fatal("Failed to create media task publisher", zap.Error(err))
	}

	// --- Background task manager ---
	tasks := taskmanager.New(taskmanager.Config{
		QueueSize:   512,
		Workers:     4,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		TaskTimeout: 30 * time.Second,
	})

	// --- AI provider ---
	aiProvider := buildAIProvider(cfg, log)
	tokenizer, err := ai.NewTokenizer(cfg.PromptModel)
	if err != nil {
		zap.L().Fatal("Failed to initialize tokenizer", zap.Error(err))
	}

	// --- Push senders (nil = канал не настроен) ---
	var fcmSender, apnsSender service.PlatformSender
	if cfg.FCMCredentialsPath != "" {
		fcmSender, err = service.NewFCMSender(cfg.FCMCredentialsPath, log)
		if err != nil {
			zap.L().Warn("FCM sender unavailable", zap.Error(err))
		}
	}
	apnsSender, err = service.NewApnsSender(service.APNSConfig{
		KeyPath:    cfg.APNSKeyPath,
		KeyID:      cfg.APNSKeyID,
		TeamID:     cfg.APNSTeamID,
		Topic:      cfg.APNSTopic,
		Production: cfg.APNSProduction,
	}, log)
	if err != nil {
		zap.L().Warn("APNS sender unavailable", zap.Error(err))
	}

	// --- WebSocket hub ---
	hub := deliveryws.NewHub(log)

	// --- Services ---
	authSvc := service.NewAuthService(userRepo, tokenRepo, cfg, log)
	permissions := service.NewPermissionService(collabRepo, log)
	notificationSvc := service.NewNotificationService(notificationRepo, deviceTokenRepo, unreadCounter, hub, fcmSender, apnsSender, log)
	storySvc := service.NewStoryService(storyRepo, collabRepo, permissions, txRunner, notificationSvc, log)
	memoryScanner := service.NewMemoryScanner(memoryRepo, log)
	contextBuilder := service.NewAIContextBuilder(segmentRepo, memoryRepo, tokenizer, cfg.PromptTokenBudget, log)
	mediaSvc := service.NewMediaService(mediaRepo, storyRepo, permissions, taskPublisher, hub, notificationSvc, log)
	narrativeSvc := service.NewNarrativeService(
		txRunner, storyRepo, segmentRepo, collabRepo, branchRepo,
		permissions, memoryScanner, contextBuilder, aiProvider,
		cfg.DefaultAIContributionMode(), mediaSvc, notificationSvc, hub, tasks, log)
	moderationSvc := service.NewModerationService(reportRepo, userRepo, storyRepo, authSvc, notificationSvc, log)
	parentalSvc := service.NewParentalService(parentalRepo, userRepo, storyRepo, notificationSvc, log)

	// --- Media result consumer ---
	resultConsumer, err := messaging.NewConsumer(mqConn, cfg.MediaResultQueue, 8, cfg.MediaTaskMaxRetries,
		func(ctx context.Context, msg messaging.Message) error {
			var result messaging.MediaResultPayload
			if err := json.Unmarshal(msg.Body, &result); err != nil {
				zap.L().Error("Malformed media result dropped", zap.Error(err))
				return nil
			}
			return mediaSvc.ApplyResult(ctx, result)
		})
	if err != nil {
		zap.L().Fatal("Failed to create media result consumer", zap.Error(err))
	}

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	go func() {
		if err := resultConsumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			zap.L().Error("Media result consumer stopped with error", zap.Error(err))
		}
	}()

	// --- HTTP Router ---
	authMW := deliveryhttp.AuthMiddleware(authSvc)
	rateLimiter := deliveryhttp.NewRateLimiter(rateLimitStore, cfg, log)

	router := deliveryhttp.NewRouter(cfg, deliveryhttp.RouterDeps{
		Auth:           deliveryhttp.NewAuthHandler(authSvc, log),
		Story:          deliveryhttp.NewStoryHandler(storySvc, authSvc, log),
		Narrative:      deliveryhttp.NewNarrativeHandler(narrativeSvc, log),
		Media:          deliveryhttp.NewMediaHandler(mediaSvc, log),
		Notification:   deliveryhttp.NewNotificationHandler(notificationSvc, log),
		Moderation:     deliveryhttp.NewModerationHandler(moderationSvc, log),
		Parental:       deliveryhttp.NewParentalHandler(parentalSvc, log),
		AuthMiddleware: authMW,
		RateLimiter:    rateLimiter,
	}, log)

	wsHandler := deliveryws.NewHandler(hub, authSvc, storySvc, narrativeSvc, notificationSvc, roomRepo, log)
	wsHandler.RegisterRoutes(router)

	// --- HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	consumerCancel()
	if err := resultConsumer.Close(); err != nil {
		zap.L().Error("Error closing media result consumer", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Task manager did not drain in time", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// buildAIProvider выбирает провайдера текстовых подсказок по конфигурации.
// При недоступном Ollama и пустом OpenAI ключе сервер стартует с заглушкой,
// чтобы остальная функциональность не зависела от AI.
func buildAIProvider(cfg *config.Config, log *zap.Logger) ai.Provider {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Warn("OPENAI_API_KEY not set, falling back to stub AI provider")
			return ai.NewStubProvider(log)
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.PromptModel, "", log)
	case "ollama":
		provider, err := ai.NewOllamaProvider(cfg.OllamaURL, cfg.PromptModel, log)
		if err != nil {
			log.Warn("Ollama unavailable, falling back to stub AI provider", zap.Error(err))
			return ai.NewStubProvider(log)
		}
		return provider
	default:
		return ai.NewStubProvider(log)
	}
}

// connectRabbitMQ подключается к RabbitMQ с повторами.
func connectRabbitMQ(url string, log *zap.Logger) (*amqp.Connection, error) {
	const maxRetries = 10
	const retryDelay = 3 * time.Second

	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			go func() {
				closeErr := <-conn.NotifyClose(make(chan *amqp.Error))
				if closeErr != nil {
					log.Error("RabbitMQ connection closed unexpectedly", zap.Error(closeErr))
				}
			}()
			return conn, nil
		}
		log.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("rabbitmq: connection failed after %d attempts: %w", maxRetries, err)
}
