// Package taskmanager выполняет отложенные побочные эффекты (сканирование
// памяти истории, рассылка уведомлений) после фиксации основной транзакции.
// Очередь ограничена; при переполнении задача отбрасывается с записью в лог,
// а не блокирует вызывающий код.
package taskmanager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TaskFunc - функция, выполняемая в фоне. Возврат ошибки означает повтор
// до исчерпания бюджета попыток.
type TaskFunc func(ctx context.Context) error

// Task - единица работы с бюджетом повторов.
type Task struct {
	ID       uuid.UUID
	Name     string
	Fn       TaskFunc
	Attempts int
}

// Config содержит конфигурацию для Manager.
type Config struct {
	QueueSize   int           // Размер очереди; при переполнении задачи отбрасываются
	Workers     int           // Количество воркеров
	MaxAttempts int           // Максимум попыток на задачу
	RetryDelay  time.Duration // Базовая задержка перед повтором, растет линейно с номером попытки
	TaskTimeout time.Duration // Таймаут одной попытки
}

// Manager - ограниченный пул воркеров для фоновых задач.
type Manager struct {
	cfg    Config
	queue  chan *Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	dropped int64
}

// New создает Manager с разумными значениями по умолчанию и запускает воркеров.
func New(cfg Config) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		queue:  make(chan *Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Submit ставит задачу в очередь. При заполненной очереди задача отбрасывается
// немедленно: побочные эффекты не должны тормозить основной путь записи.
func (m *Manager) Submit(name string, fn TaskFunc) uuid.UUID {
	task := &Task{ID: uuid.New(), Name: name, Fn: fn}
	select {
	case m.queue <- task:
		return task.ID
	default:
		m.mu.Lock()
		m.dropped++
		dropped := m.dropped
		m.mu.Unlock()
		log.Warn().
			Str("task", name).
			Str("taskID", task.ID.String()).
			Int64("totalDropped", dropped).
			Msg("Очередь фоновых задач переполнена, задача отброшена")
		return task.ID
	}
}

// Dropped возвращает количество отброшенных задач с момента запуска.
func (m *Manager) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case task := <-m.queue:
			m.run(task)
		}
	}
}

func (m *Manager) run(task *Task) {
	for task.Attempts = 1; task.Attempts <= m.cfg.MaxAttempts; task.Attempts++ {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.TaskTimeout)
		err := task.Fn(ctx)
		cancel()
		if err == nil {
			return
		}
		log.Error().
			Err(err).
			Str("task", task.Name).
			Str("taskID", task.ID.String()).
			Int("attempt", task.Attempts).
			Msg("Ошибка выполнения фоновой задачи")
		if task.Attempts == m.cfg.MaxAttempts {
			log.Warn().
				Str("task", task.Name).
				Str("taskID", task.ID.String()).
				Msg("Бюджет попыток исчерпан, задача отброшена")
			return
		}
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.cfg.RetryDelay * time.Duration(task.Attempts)):
		}
	}
}

// Shutdown останавливает прием задач и ждет завершения воркеров
// либо истечения контекста.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
