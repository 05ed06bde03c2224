package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed - ошибка при обращении к генеративной модели.
var ErrGenerationFailed = errors.New("ошибка генерации AI")

type openAIProvider struct {
	client     *openaigo.Client
	model      string
	imageModel string
	logger     *zap.Logger
}

// NewOpenAIProvider создает провайдер поверх OpenAI-совместимого API.
func NewOpenAIProvider(apiKey, baseURL, model, imageModel string, logger *zap.Logger) Provider {
	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIProvider{
		client:     openaigo.NewClientWithConfig(cfg),
		model:      model,
		imageModel: imageModel,
		logger:     logger.Named("OpenAIProvider"),
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: p.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: prompt},
		},
	})
	duration := time.Since(start)
	aiRequestDuration.With(prometheus.Labels{"provider": "openai", "kind": "text"}).Observe(duration.Seconds())

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "text", "status": "error"}).Inc()
		p.logger.Error("Запрос к OpenAI завершился ошибкой", zap.Error(err), zap.Duration("duration", duration))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "text", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "text", "status": "success"}).Inc()
	if resp.Usage.TotalTokens > 0 {
		p.logger.Debug("OpenAI usage",
			zap.Int("promptTokens", resp.Usage.PromptTokens),
			zap.Int("completionTokens", resp.Usage.CompletionTokens))
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateImage(ctx, openaigo.ImageRequest{
		Model:          p.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openaigo.CreateImageSize1024x1024,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	duration := time.Since(start)
	aiRequestDuration.With(prometheus.Labels{"provider": "openai", "kind": "image"}).Observe(duration.Seconds())

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "image", "status": "error"}).Inc()
		p.logger.Error("Запрос генерации изображения завершился ошибкой", zap.Error(err), zap.Duration("duration", duration))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "image", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: пустой ответ генерации изображения", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"provider": "openai", "kind": "image", "status": "success"}).Inc()
	return resp.Data[0].URL, nil
}
