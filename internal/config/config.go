package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"wove-server/internal/models"
)

// Config содержит конфигурацию API сервера Wove.
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"WOVE_SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"APP_ENV" default:"development"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки RabbitMQ
	RabbitMQURL         string `envconfig:"RABBITMQ_URL" required:"true"`
	MediaTaskQueue      string `envconfig:"MEDIA_TASK_QUEUE" default:"wove_media_tasks"`
	MediaResultQueue    string `envconfig:"MEDIA_RESULT_QUEUE" default:"wove_media_results"`
	MediaTaskMaxRetries int    `envconfig:"MEDIA_TASK_MAX_RETRIES" default:"3"`

	// Настройки JWT
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	// Секретное поле БЕЗ envconfig тега
	JWTSecret string

	// Поведение нарратива
	DefaultAIMode     string `envconfig:"DEFAULT_AI_MODE" default:"none"`
	PromptTokenBudget int    `envconfig:"PROMPT_TOKEN_BUDGET" default:"3000"`
	PromptModel       string `envconfig:"PROMPT_MODEL" default:"gpt-4o-mini"`

	// AI провайдер текстовых подсказок (генерация медиа идет через воркер).
	// stub используется, когда ключ провайдера не задан.
	AIProvider    string `envconfig:"AI_PROVIDER" default:"stub"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	// Секретное поле БЕЗ envconfig тега
	OpenAIAPIKey string

	// Лимитер запросов (фиксированное окно + блокировка)
	RateLimitAnonPoints      int `envconfig:"RATE_LIMIT_ANON_POINTS" default:"100"`
	RateLimitAuthPoints      int `envconfig:"RATE_LIMIT_AUTH_POINTS" default:"200"`
	RateLimitAuthRoutePoints int `envconfig:"RATE_LIMIT_AUTH_ROUTE_POINTS" default:"20"`
	RateLimitWindowSec       int `envconfig:"RATE_LIMIT_WINDOW_SECONDS" default:"60"`
	RateLimitBlockSec        int `envconfig:"RATE_LIMIT_BLOCK_SECONDS" default:"300"`
	RateLimitAuthBlockSec    int `envconfig:"RATE_LIMIT_AUTH_BLOCK_SECONDS" default:"900"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Push-уведомления (пустые значения = заглушки вместо реальных отправителей)
	FCMCredentialsPath string `envconfig:"FCM_CREDENTIALS_PATH"`
	APNSKeyPath        string `envconfig:"APNS_KEY_PATH"`
	APNSKeyID          string `envconfig:"APNS_KEY_ID"`
	APNSTeamID         string `envconfig:"APNS_TEAM_ID"`
	APNSTopic          string `envconfig:"APNS_TOPIC"`
	APNSProduction     bool   `envconfig:"APNS_PRODUCTION" default:"false"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// DefaultAIContributionMode возвращает серверный режим AI по умолчанию.
func (c *Config) DefaultAIContributionMode() models.AIMode {
	return models.AIMode(c.DefaultAIMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
func LoadConfig() (*Config, error) {
	// .env подхватывается только если файл есть рядом с бинарем.
	// В контейнерах конфигурация приходит из окружения.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}
	}

	var cfg Config
	// Загружаем НЕсекретные переменные
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации wove-server: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.JWTSecret, loadErr = ReadSecret("jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	// Пароль Redis опционален: без секрета подключаемся без пароля
	if redisPassword, err := ReadSecret("redis_password"); err == nil {
		cfg.RedisPassword = redisPassword
	}

	// Ключ OpenAI опционален: без него остается провайдер-заглушка
	if apiKey, err := ReadSecret("openai_api_key"); err == nil {
		cfg.OpenAIAPIKey = apiKey
	}

	log.Printf("Конфигурация Wove Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  DB: %s@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	log.Printf("  Redis: %s/%d", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  MediaTaskQueue: %s", cfg.MediaTaskQueue)

	return &cfg, nil
}
