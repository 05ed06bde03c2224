package ai

import "context"

// Provider - абстракция над генеративной моделью. Реализации: OpenAI,
// Ollama и заглушка для окружений без доступа к моделям.
type Provider interface {
	// Name возвращает имя провайдера для поля media_assets.provider.
	Name() string
	// GenerateText продолжает историю по собранному промпту.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateImage возвращает URL сгенерированного изображения.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
