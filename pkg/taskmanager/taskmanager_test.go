package taskmanager_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wove-server/pkg/taskmanager"
)

func TestSubmitExecutesTask(t *testing.T) {
	m := taskmanager.New(taskmanager.Config{Workers: 2, QueueSize: 8})
	defer shutdown(t, m)

	done := make(chan struct{})
	m.Submit("test", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("задача не выполнилась")
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	m := taskmanager.New(taskmanager.Config{
		Workers:     1,
		QueueSize:   8,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	})
	defer shutdown(t, m)

	var attempts atomic.Int32
	done := make(chan struct{})
	m.Submit("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("temporary failure")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
		assert.EqualValues(t, 3, attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("задача не дошла до успешной попытки")
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	m := taskmanager.New(taskmanager.Config{
		Workers:     1,
		QueueSize:   8,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
	defer shutdown(t, m)

	var attempts atomic.Int32
	m.Submit("doomed", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent failure")
	})

	assert.Eventually(t, func() bool {
		return attempts.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Дополнительных попыток после исчерпания бюджета не происходит
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestFullQueueDropsTask(t *testing.T) {
	m := taskmanager.New(taskmanager.Config{Workers: 1, QueueSize: 1})
	defer shutdown(t, m)

	block := make(chan struct{})
	// Первая задача занимает единственного воркера
	m.Submit("blocker", func(ctx context.Context) error {
		<-block
		return nil
	})
	// Воркер должен успеть забрать blocker из очереди
	assert.Eventually(t, func() bool {
		m.Submit("filler", func(ctx context.Context) error { return nil })
		return m.Dropped() > 0
	}, 2*time.Second, 10*time.Millisecond)

	close(block)
}

func TestShutdownStopsWorkers(t *testing.T) {
	m := taskmanager.New(taskmanager.Config{Workers: 2, QueueSize: 8})

	started := make(chan struct{})
	m.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func shutdown(t *testing.T, m *taskmanager.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.Shutdown(ctx)
}
