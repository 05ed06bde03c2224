package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// plotKeywords - маркеры сюжетных событий, по которым содержимое сегмента
// попадает в "память" истории.
var plotKeywords = []string{
	"discovered",
	"revealed",
	"decided",
	"attacked",
	"found a clue",
}

const plotSummaryMaxLen = 200

// MemoryScanner извлекает из текста сегмента сюжетные события и упоминания
// персонажей и записывает их как plot points. Запускается после фиксации
// транзакции добавления сегмента через менеджер фоновых задач.
type MemoryScanner interface {
	ScanSegment(ctx context.Context, storyID uuid.UUID, segment *models.StorySegment) error
}

type memoryScannerImpl struct {
	memoryRepo interfaces.MemoryRepository
	logger     *zap.Logger
}

func NewMemoryScanner(memoryRepo interfaces.MemoryRepository, logger *zap.Logger) MemoryScanner {
	return &memoryScannerImpl{
		memoryRepo: memoryRepo,
		logger:     logger.Named("MemoryScanner"),
	}
}

// ScanSegment ищет в содержимом ключевые слова и имена известных персонажей.
// Каждое найденное совпадение дает одну запись plot point с этим ключом.
func (s *memoryScannerImpl) ScanSegment(ctx context.Context, storyID uuid.UUID, segment *models.StorySegment) error {
	lower := strings.ToLower(segment.Content)

	var matched []string
	for _, kw := range plotKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}

	characters, err := s.memoryRepo.ListCharacters(ctx, storyID)
	if err != nil {
		return fmt.Errorf("memory scan: list characters: %w", err)
	}
	for _, ch := range characters {
		if ch.Name != "" && strings.Contains(lower, strings.ToLower(ch.Name)) {
			matched = append(matched, ch.Name)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	summary := segment.Content
	if len(summary) > plotSummaryMaxLen {
		summary = summary[:plotSummaryMaxLen]
	}

	for _, keyword := range matched {
		kw := keyword
		pp := &models.StoryPlotPoint{
			StoryID:   storyID,
			SegmentID: &segment.ID,
			Summary:   summary,
			Keyword:   &kw,
		}
		if err := s.memoryRepo.CreatePlotPoint(ctx, pp); err != nil {
			return fmt.Errorf("memory scan: create plot point: %w", err)
		}
	}

	s.logger.Debug("Segment scanned",
		zap.String("storyID", storyID.String()),
		zap.String("segmentID", segment.ID.String()),
		zap.Int("plotPoints", len(matched)))
	return nil
}
