package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"wove-server/internal/ai"
	"wove-server/internal/config"
	"wove-server/internal/logger"
	"wove-server/internal/messaging"
	"wove-server/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/worker.yaml", "путь к файлу конфигурации воркера")
	flag.Parse()

	cfg, err := config.LoadWorkerConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load worker configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level: cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	zap.ReplaceGlobals(appLogger)
	appLogger.Info("Starting media worker",
		zap.String("provider", cfg.Provider),
		zap.String("taskQueue", cfg.RabbitMQ.MediaTaskQueue))

	provider, err := buildProvider(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize generation provider", zap.Error(err))
	}

	conn, err := connectRabbitMQ(cfg.RabbitMQ.URI, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()
	appLogger.Info("Connected to RabbitMQ")

	resultPublisher, err := messaging.NewRabbitMQMediaResultPublisher(conn, cfg.RabbitMQ.MediaResultQueue)
	if err != nil {
		appLogger.Fatal("Failed to create result publisher", zap.Error(err))
	}

	handler := worker.NewHandler(provider, resultPublisher, appLogger)

	consumer, err := messaging.NewConsumer(conn, cfg.RabbitMQ.MediaTaskQueue, cfg.RabbitMQ.PrefetchCount, cfg.MaxRetries, handler.Handle)
	if err != nil {
		appLogger.Fatal("Failed to create task consumer", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			appLogger.Error("Task consumer stopped with error", zap.Error(err))
		}
	}()

	// Метрики воркера отдаются отдельным HTTP сервером.
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("Metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down media worker...")

	cancel()
	if err := consumer.Close(); err != nil {
		appLogger.Error("Error closing consumer", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Media worker shut down gracefully")
}

// buildProvider выбирает реализацию генерации по конфигурации.
func buildProvider(cfg *config.WorkerConfig, log *zap.Logger) (ai.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return ai.NewOpenAIProvider(cfg.OpenAI.APIKey, "", cfg.OpenAI.Model, cfg.OpenAI.ImageModel, log), nil
	case "ollama":
		return ai.NewOllamaProvider(cfg.Ollama.Host, cfg.Ollama.Model, log)
	case "stub":
		return ai.NewStubProvider(log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
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
