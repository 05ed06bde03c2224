package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wove-server/internal/ai"
	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

const (
	recentSegmentsForPrompt = 10
	recentPlotPoints        = 20
)

// AIContextBuilder собирает промпт для генерации продолжения истории:
// возрастная категория, персонажи, последние сюжетные события и сегменты,
// обрезанные под бюджет токенов.
type AIContextBuilder interface {
	BuildPrompt(ctx context.Context, story *models.Story) (string, error)
}

type aiContextBuilderImpl struct {
	segmentRepo interfaces.SegmentRepository
	memoryRepo  interfaces.MemoryRepository
	tokenizer   *ai.Tokenizer
	tokenBudget int
	logger      *zap.Logger
}

func NewAIContextBuilder(
	segmentRepo interfaces.SegmentRepository,
	memoryRepo interfaces.MemoryRepository,
	tokenizer *ai.Tokenizer,
	tokenBudget int,
	logger *zap.Logger,
) AIContextBuilder {
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}
	return &aiContextBuilderImpl{
		segmentRepo: segmentRepo,
		memoryRepo:  memoryRepo,
		tokenizer:   tokenizer,
		tokenBudget: tokenBudget,
		logger:      logger.Named("AIContextBuilder"),
	}
}

// BuildPrompt собирает контекст. Части добавляются в порядке убывания
// важности; последние сегменты идут в конец и при нехватке бюджета
// обрезаются самые старые из них.
func (b *aiContextBuilderImpl) BuildPrompt(ctx context.Context, story *models.Story) (string, error) {
	var sb strings.Builder

	sb.WriteString("You are a co-author of a collaborative story. Continue the story with one coherent paragraph.\n")
	fmt.Fprintf(&sb, "Audience age tier: %s. Keep the content appropriate for this audience.\n", story.AgeTier)
	fmt.Fprintf(&sb, "Story title: %s\n", story.Title)
	if story.Description != nil && *story.Description != "" {
		fmt.Fprintf(&sb, "Premise: %s\n", *story.Description)
	}

	characters, err := b.memoryRepo.ListCharacters(ctx, story.ID)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}
	if len(characters) > 0 {
		sb.WriteString("\nKnown characters:\n")
		for _, ch := range characters {
			fmt.Fprintf(&sb, "- %s", ch.Name)
			if ch.Description != nil && *ch.Description != "" {
				fmt.Fprintf(&sb, ": %s", *ch.Description)
			}
			if len(ch.Traits) > 0 {
				fmt.Fprintf(&sb, " (%s)", strings.Join(ch.Traits, ", "))
			}
			sb.WriteString("\n")
		}
	}

	plotPoints, err := b.memoryRepo.ListPlotPoints(ctx, story.ID, recentPlotPoints)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}
	if len(plotPoints) > 0 {
		sb.WriteString("\nEstablished plot events:\n")
		for _, pp := range plotPoints {
			fmt.Fprintf(&sb, "- %s\n", pp.Summary)
		}
	}

	segments, err := b.segmentRepo.ListByStory(ctx, story.ID)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}
	if len(segments) > recentSegmentsForPrompt {
		segments = segments[len(segments)-recentSegmentsForPrompt:]
	}
	if len(segments) > 0 {
		sb.WriteString("\nRecent story text:\n")
		for _, seg := range segments {
			sb.WriteString(seg.Content)
			sb.WriteString("\n")
		}
	}

	prompt := sb.String()
	if b.tokenizer != nil {
		before := b.tokenizer.Count(prompt)
		if before > b.tokenBudget {
			prompt = b.tokenizer.TruncateToBudget(prompt, b.tokenBudget)
			b.logger.Debug("Prompt truncated to token budget",
				zap.String("storyID", story.ID.String()),
				zap.Int("tokensBefore", before),
				zap.Int("budget", b.tokenBudget))
		}
	}
	return prompt, nil
}
