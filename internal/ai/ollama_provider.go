package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type ollamaProvider struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewOllamaProvider создает провайдер поверх локального Ollama.
// Генерация изображений для этого провайдера не поддерживается.
func NewOllamaProvider(host, model string, logger *zap.Logger) (Provider, error) {
	// api.NewClient требует URL без суффикса /v1
	base := strings.TrimSuffix(strings.TrimSuffix(host, "/"), "/v1")
	parsedURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama URL '%s': %w", host, err)
	}
	return &ollamaProvider{
		client: api.NewClient(parsedURL, &http.Client{Timeout: 5 * time.Minute}),
		model:  model,
		logger: logger.Named("OllamaProvider"),
	}, nil
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:  p.model,
		Stream: &stream,
		Messages: []api.Message{
			{Role: "system", Content: prompt},
		},
	}

	start := time.Now()
	var result strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		result.WriteString(resp.Message.Content)
		return nil
	})
	duration := time.Since(start)
	aiRequestDuration.With(prometheus.Labels{"provider": "ollama", "kind": "text"}).Observe(duration.Seconds())

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"provider": "ollama", "kind": "text", "status": "error"}).Inc()
		p.logger.Error("Запрос к Ollama завершился ошибкой", zap.Error(err), zap.Duration("duration", duration))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if result.Len() == 0 {
		aiRequestsTotal.With(prometheus.Labels{"provider": "ollama", "kind": "text", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"provider": "ollama", "kind": "text", "status": "success"}).Inc()
	return result.String(), nil
}

func (p *ollamaProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: провайдер ollama не поддерживает генерацию изображений", ErrGenerationFailed)
}
