package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"wove-server/internal/messaging"
)

// Mock MediaTaskPublisher
type MediaTaskPublisher struct {
	mock.Mock
}

func (m *MediaTaskPublisher) PublishMediaTask(ctx context.Context, payload messaging.MediaTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// Mock MediaResultPublisher
type MediaResultPublisher struct {
	mock.Mock
}

func (m *MediaResultPublisher) PublishMediaResult(ctx context.Context, payload messaging.MediaResultPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
