package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wove-server/internal/messaging"
	mmocks "wove-server/internal/messaging/mocks"
	smocks "wove-server/internal/service/mocks"
	"wove-server/internal/worker"
)

func imageTask(t *testing.T, assetID, storyID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(messaging.MediaTaskPayload{
		AssetID: assetID,
		StoryID: storyID,
		Kind:    "image",
		Prompt:  "a quiet forest at dusk",
	})
	require.NoError(t, err)
	return body
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful generation publishes a result", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		assetID := uuid.New()
		storyID := uuid.New()
		provider.On("GenerateImage", mock.Anything, "a quiet forest at dusk").
			Return("https://cdn.example.com/img.png", nil).Once()
		provider.On("Name").Return("stub").Maybe()
		results.On("PublishMediaResult", mock.Anything, mock.MatchedBy(func(r messaging.MediaResultPayload) bool {
			return r.AssetID == assetID && r.Success && r.URL == "https://cdn.example.com/img.png"
		})).Return(nil).Once()

		err := h.Handle(ctx, messaging.Message{Body: imageTask(t, assetID, storyID), Attempt: 1})
		require.NoError(t, err)
		results.AssertExpectations(t)
	})

	t.Run("Duplicate delivery does not call the provider again", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		assetID := uuid.New()
		body := imageTask(t, assetID, uuid.New())
		provider.On("GenerateImage", mock.Anything, mock.Anything).Return("https://cdn/img.png", nil).Once()
		provider.On("Name").Return("stub").Maybe()
		results.On("PublishMediaResult", mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, h.Handle(ctx, messaging.Message{Body: body, Attempt: 1}))
		require.NoError(t, h.Handle(ctx, messaging.Message{Body: body, Attempt: 1}))

		provider.AssertNumberOfCalls(t, "GenerateImage", 1)
		results.AssertNumberOfCalls(t, "PublishMediaResult", 1)
	})

	t.Run("Malformed task is dropped without retry", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		err := h.Handle(ctx, messaging.Message{Body: []byte("not json"), Attempt: 1})
		assert.NoError(t, err)
		provider.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
	})

	t.Run("Generation failure before the final attempt is retried silently", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		genErr := errors.New("provider unavailable")
		provider.On("GenerateImage", mock.Anything, mock.Anything).Return("", genErr).Once()

		err := h.Handle(ctx, messaging.Message{Body: imageTask(t, uuid.New(), uuid.New()), Attempt: 1, Final: false})
		assert.ErrorIs(t, err, genErr)
		results.AssertNotCalled(t, "PublishMediaResult", mock.Anything, mock.Anything)
	})

	t.Run("Final failed attempt reports the failure to the server", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		assetID := uuid.New()
		genErr := errors.New("provider unavailable")
		provider.On("GenerateImage", mock.Anything, mock.Anything).Return("", genErr).Once()
		provider.On("Name").Return("stub").Maybe()
		results.On("PublishMediaResult", mock.Anything, mock.MatchedBy(func(r messaging.MediaResultPayload) bool {
			return r.AssetID == assetID && !r.Success && r.Error != ""
		})).Return(nil).Once()

		err := h.Handle(ctx, messaging.Message{Body: imageTask(t, assetID, uuid.New()), Attempt: 3, Final: true})
		assert.ErrorIs(t, err, genErr)
		results.AssertExpectations(t)
	})

	t.Run("Publish failure is retried and the asset is not marked completed", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		body := imageTask(t, uuid.New(), uuid.New())
		pubErr := errors.New("broker unavailable")
		provider.On("GenerateImage", mock.Anything, mock.Anything).Return("https://cdn/img.png", nil).Twice()
		provider.On("Name").Return("stub").Maybe()
		results.On("PublishMediaResult", mock.Anything, mock.Anything).Return(pubErr).Once()
		results.On("PublishMediaResult", mock.Anything, mock.Anything).Return(nil).Once()

		assert.ErrorIs(t, h.Handle(ctx, messaging.Message{Body: body, Attempt: 1}), pubErr)
		// Повторная доставка после сбоя публикации обрабатывается заново
		assert.NoError(t, h.Handle(ctx, messaging.Message{Body: body, Attempt: 2}))
	})

	t.Run("Unsupported media kind is not generated", func(t *testing.T) {
		provider := new(smocks.AIProvider)
		results := new(mmocks.MediaResultPublisher)
		h := worker.NewHandler(provider, results, zap.NewNop())

		body, err := json.Marshal(messaging.MediaTaskPayload{
			AssetID: uuid.New(),
			StoryID: uuid.New(),
			Kind:    "audio",
			Prompt:  "ambient rain",
		})
		require.NoError(t, err)
		provider.On("Name").Return("stub").Maybe()
		results.On("PublishMediaResult", mock.Anything, mock.MatchedBy(func(r messaging.MediaResultPayload) bool {
			return !r.Success
		})).Return(nil).Once()

		handleErr := h.Handle(ctx, messaging.Message{Body: body, Attempt: 3, Final: true})
		assert.Error(t, handleErr)
		provider.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
	})
}
