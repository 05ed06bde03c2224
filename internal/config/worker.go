package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

// WorkerConfig содержит конфигурацию воркера генерации медиа.
// Загружается через cleanenv: сначала из yaml файла, при его отсутствии
// только из переменных окружения.
type WorkerConfig struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	RabbitMQ struct {
		URI              string `yaml:"uri" env:"RABBITMQ_URL" env-required:"true"`
		MediaTaskQueue   string `yaml:"media_task_queue" env:"MEDIA_TASK_QUEUE" env-default:"wove_media_tasks"`
		MediaResultQueue string `yaml:"media_result_queue" env:"MEDIA_RESULT_QUEUE" env-default:"wove_media_results"`
		PrefetchCount    int    `yaml:"prefetch_count" env:"PREFETCH_COUNT" env-default:"2"`
	} `yaml:"rabbitmq"`

	// Провайдер генерации: openai, ollama или stub.
	Provider string `yaml:"provider" env:"MEDIA_PROVIDER" env-default:"stub"`

	OpenAI struct {
		Model      string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
		ImageModel string `yaml:"image_model" env:"OPENAI_IMAGE_MODEL" env-default:"dall-e-3"`
		TimeoutSec int    `yaml:"timeout_sec" env:"OPENAI_TIMEOUT_SEC" env-default:"120"`
		// Секретное поле: ключ читается из Docker Secret openai_api_key
		APIKey string
	} `yaml:"openai"`

	Ollama struct {
		Host  string `yaml:"host" env:"OLLAMA_HOST" env-default:"http://localhost:11434"`
		Model string `yaml:"model" env:"OLLAMA_MODEL" env-default:"llama3"`
	} `yaml:"ollama"`

	MetricsPort string `yaml:"metrics_port" env:"WORKER_METRICS_PORT" env-default:"9091"`
	MaxRetries  int    `yaml:"max_retries" env:"MEDIA_TASK_MAX_RETRIES" env-default:"3"`
}

// LoadWorkerConfig загружает конфигурацию воркера.
func LoadWorkerConfig(configPath string) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v. Попытка чтения из переменных окружения.", configPath, err)
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("ошибка загрузки конфигурации воркера: %w", err)
		}
	}

	if cfg.Provider == "openai" {
		apiKey, err := ReadSecret("openai_api_key")
		if err != nil {
			return nil, fmt.Errorf("провайдер openai требует секрет openai_api_key: %w", err)
		}
		cfg.OpenAI.APIKey = apiKey
	}

	log.Printf("Конфигурация воркера загружена. Провайдер: %s, очередь задач: %s", cfg.Provider, cfg.RabbitMQ.MediaTaskQueue)
	return &cfg, nil
}
