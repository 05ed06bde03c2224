package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"wove-server/internal/ai"
	"wove-server/internal/messaging"
	"wove-server/internal/models"
)

// Метрики Prometheus воркера
var (
	tasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wove_media_worker_tasks_total",
			Help: "Total number of media generation tasks processed.",
		},
		[]string{"status"}, // "success", "duplicate", "error_generation", "error_publish", "error_unmarshal"
	)
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wove_media_worker_task_duration_seconds",
		Help:    "Duration of media generation task processing.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// completedLimit ограничивает размер кеша обработанных ассетов.
const completedLimit = 4096

// Handler обрабатывает задачи генерации медиа. Идемпотентность по ID ассета:
// повторная доставка уже обработанной задачи не вызывает провайдера повторно,
// а публикация результата идемпотентна на стороне сервера.
type Handler struct {
	provider ai.Provider
	results  messaging.MediaResultPublisher
	logger   *zap.Logger

	mu        sync.Mutex
	completed map[uuid.UUID]struct{}
	order     []uuid.UUID
}

func NewHandler(provider ai.Provider, results messaging.MediaResultPublisher, logger *zap.Logger) *Handler {
	return &Handler{
		provider:  provider,
		results:   results,
		logger:    logger.Named("MediaWorker"),
		completed: make(map[uuid.UUID]struct{}),
	}
}

// Handle реализует messaging.HandlerFunc для очереди задач.
func (h *Handler) Handle(ctx context.Context, msg messaging.Message) error {
	var task messaging.MediaTaskPayload
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		h.logger.Error("Failed to unmarshal media task", zap.Error(err), zap.ByteString("body", msg.Body))
		tasksProcessed.WithLabelValues("error_unmarshal").Inc()
		// Невалидное сообщение повторять бессмысленно
		return nil
	}

	log := h.logger.With(
		zap.String("assetID", task.AssetID.String()),
		zap.String("storyID", task.StoryID.String()),
		zap.String("kind", task.Kind),
		zap.Int("attempt", msg.Attempt))

	if h.alreadyCompleted(task.AssetID) {
		log.Info("Duplicate media task ignored")
		tasksProcessed.WithLabelValues("duplicate").Inc()
		return nil
	}

	log.Info("Processing media generation task")
	start := time.Now()
	url, genErr := h.generate(ctx, task)
	taskDuration.Observe(time.Since(start).Seconds())

	if genErr != nil {
		log.Error("Media generation failed", zap.Error(genErr))
		tasksProcessed.WithLabelValues("error_generation").Inc()
		if !msg.Final {
			// Ошибка уйдет консьюмеру и задача вернется на повтор
			return genErr
		}
		// Последняя попытка: сообщаем серверу о провале, чтобы ассет
		// не завис в pending, и отпускаем сообщение в DLQ.
		h.publishResult(ctx, log, messaging.MediaResultPayload{
			AssetID:  task.AssetID,
			StoryID:  task.StoryID,
			Success:  false,
			Provider: h.provider.Name(),
			Error:    genErr.Error(),
		})
		return genErr
	}

	result := messaging.MediaResultPayload{
		AssetID:  task.AssetID,
		StoryID:  task.StoryID,
		Success:  true,
		URL:      url,
		Provider: h.provider.Name(),
	}
	if err := h.publishResult(ctx, log, result); err != nil {
		tasksProcessed.WithLabelValues("error_publish").Inc()
		return err
	}

	h.markCompleted(task.AssetID)
	tasksProcessed.WithLabelValues("success").Inc()
	log.Info("Media task completed", zap.String("url", url))
	return nil
}

func (h *Handler) generate(ctx context.Context, task messaging.MediaTaskPayload) (string, error) {
	switch models.MediaKind(task.Kind) {
	case models.MediaKindImage:
		return h.provider.GenerateImage(ctx, task.Prompt)
	default:
		// Аудио пока не генерируется ни одним провайдером
		return "", fmt.Errorf("%w: unsupported media kind %q", ai.ErrGenerationFailed, task.Kind)
	}
}

func (h *Handler) publishResult(ctx context.Context, log *zap.Logger, result messaging.MediaResultPayload) error {
	if err := h.results.PublishMediaResult(ctx, result); err != nil {
		log.Error("Failed to publish media result", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) alreadyCompleted(assetID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.completed[assetID]
	return ok
}

func (h *Handler) markCompleted(assetID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) >= completedLimit {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.completed, oldest)
	}
	h.completed[assetID] = struct{}{}
	h.order = append(h.order, assetID)
}
