package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	imocks "wove-server/internal/interfaces/mocks"
	"wove-server/internal/models"
	"wove-server/internal/service"
)

func TestScanSegment(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("Keywords and character names each produce a plot point", func(t *testing.T) {
		memoryRepo := new(imocks.MemoryRepository)
		scanner := service.NewMemoryScanner(memoryRepo, zap.NewNop())

		memoryRepo.On("ListCharacters", ctx, storyID).Return([]models.StoryCharacter{
			{Name: "Элина"},
			{Name: "Горм"},
		}, nil).Once()

		segment := &models.StorySegment{
			ID:      uuid.New(),
			StoryID: storyID,
			Content: "Элина discovered a hidden door and revealed the truth.",
		}

		var keywords []string
		memoryRepo.On("CreatePlotPoint", ctx, mock.MatchedBy(func(pp *models.StoryPlotPoint) bool {
			return pp.StoryID == storyID && pp.SegmentID != nil && *pp.SegmentID == segment.ID
		})).Run(func(args mock.Arguments) {
			pp := args.Get(1).(*models.StoryPlotPoint)
			keywords = append(keywords, *pp.Keyword)
		}).Return(nil).Times(3)

		require.NoError(t, scanner.ScanSegment(ctx, storyID, segment))
		assert.ElementsMatch(t, []string{"discovered", "revealed", "Элина"}, keywords)
	})

	t.Run("Segment without plot markers writes nothing", func(t *testing.T) {
		memoryRepo := new(imocks.MemoryRepository)
		scanner := service.NewMemoryScanner(memoryRepo, zap.NewNop())
		memoryRepo.On("ListCharacters", ctx, storyID).Return(nil, nil).Once()

		segment := &models.StorySegment{ID: uuid.New(), StoryID: storyID, Content: "Тихий вечер."}
		require.NoError(t, scanner.ScanSegment(ctx, storyID, segment))
		memoryRepo.AssertNotCalled(t, "CreatePlotPoint", mock.Anything, mock.Anything)
	})

	t.Run("Keyword matching is case-insensitive", func(t *testing.T) {
		memoryRepo := new(imocks.MemoryRepository)
		scanner := service.NewMemoryScanner(memoryRepo, zap.NewNop())
		memoryRepo.On("ListCharacters", ctx, storyID).Return(nil, nil).Once()
		memoryRepo.On("CreatePlotPoint", ctx, mock.Anything).Return(nil).Once()

		segment := &models.StorySegment{ID: uuid.New(), StoryID: storyID, Content: "They ATTACKED at dawn."}
		require.NoError(t, scanner.ScanSegment(ctx, storyID, segment))
		memoryRepo.AssertExpectations(t)
	})

	t.Run("Long content is truncated in the summary", func(t *testing.T) {
		memoryRepo := new(imocks.MemoryRepository)
		scanner := service.NewMemoryScanner(memoryRepo, zap.NewNop())
		memoryRepo.On("ListCharacters", ctx, storyID).Return(nil, nil).Once()
		memoryRepo.On("CreatePlotPoint", ctx, mock.MatchedBy(func(pp *models.StoryPlotPoint) bool {
			return len(pp.Summary) == 200
		})).Return(nil).Once()

		segment := &models.StorySegment{
			ID:      uuid.New(),
			StoryID: storyID,
			Content: "decided " + strings.Repeat("x", 500),
		}
		require.NoError(t, scanner.ScanSegment(ctx, storyID, segment))
		memoryRepo.AssertExpectations(t)
	})
}
