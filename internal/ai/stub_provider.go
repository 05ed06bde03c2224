package ai

import (
	"context"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"
)

type stubProvider struct {
	logger *zap.Logger
}

// NewStubProvider возвращает детерминированную заглушку для окружений
// без доступа к моделям (локальная разработка, CI).
func NewStubProvider(logger *zap.Logger) Provider {
	return &stubProvider{logger: logger.Named("StubProvider")}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	p.logger.Debug("Stub text generation", zap.Int("promptLen", len(prompt)))
	return "The story continues in an unexpected direction, and the characters pause to consider what comes next.", nil
}

func (p *stubProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return fmt.Sprintf("https://placehold.example/wove/%08x.png", h.Sum32()), nil
}
