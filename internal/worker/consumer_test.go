package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/queue"
	"github.com/taskrelay/taskrelay/internal/store"
)

// recordingStore captures every status written through Update so tests can
// assert on the sequence of lifecycle transitions.
type recordingStore struct {
	mockTaskStore
	statuses []domain.TaskStatus
	updates  []store.TaskUpdate
}

func newRecordingStore() *recordingStore {
	s := &recordingStore{}
	s.UpdateFn = func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
		if update.Status != nil {
			s.statuses = append(s.statuses, *update.Status)
		}
		s.updates = append(s.updates, update)
		return &domain.Task{ID: id}, nil
	}
	return s
}

func newTestConsumer(t *testing.T, taskStore store.TaskStore, work WorkFunc) *Consumer {
	t.Helper()
	processing := newTestProcessingService(t, taskStore)
	return NewConsumer(processing, work, "tasks", DefaultMaxRetries, slog.Default())
}

func taskMessageBody(t *testing.T, taskID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(queue.TaskMessage{TaskID: taskID.String()})
	require.NoError(t, err)
	return body
}

func TestHandleMessageSuccess(t *testing.T) {
	taskID := uuid.New()
	taskStore := newRecordingStore()
	result := json.RawMessage(`{"message":"done"}`)

	var workCalls int
	work := func(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
		workCalls++
		assert.Equal(t, taskID, id)
		return result, nil
	}

	consumer := newTestConsumer(t, taskStore, work)
	requeue := consumer.HandleMessage(context.Background(), taskMessageBody(t, taskID), 0)

	assert.False(t, requeue)
	assert.Equal(t, 1, workCalls)
	require.Equal(t, []domain.TaskStatus{
		domain.TaskStatusInProgress,
		domain.TaskStatusCompleted,
	}, taskStore.statuses)

	completed := taskStore.updates[1]
	assert.JSONEq(t, string(result), string(completed.Result))
	assert.NotNil(t, completed.CompletedAt)
}

func TestHandleMessageRetries(t *testing.T) {
	workErr := errors.New("simulated failure")
	failingWork := func(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
		return nil, workErr
	}

	t.Run("early attempts requeue without a terminal status", func(t *testing.T) {
		for _, retryCount := range []int{0, 1} {
			t.Run(fmt.Sprintf("retry count %d", retryCount), func(t *testing.T) {
				taskID := uuid.New()
				taskStore := newRecordingStore()
				consumer := newTestConsumer(t, taskStore, failingWork)

				requeue := consumer.HandleMessage(context.Background(), taskMessageBody(t, taskID), retryCount)

				assert.True(t, requeue)
				// The task stays IN_PROGRESS until the redelivery.
				assert.Equal(t, []domain.TaskStatus{domain.TaskStatusInProgress}, taskStore.statuses)
			})
		}
	})

	t.Run("final attempt marks the task failed", func(t *testing.T) {
		taskID := uuid.New()
		taskStore := newRecordingStore()
		consumer := newTestConsumer(t, taskStore, failingWork)

		requeue := consumer.HandleMessage(context.Background(), taskMessageBody(t, taskID), 2)

		assert.False(t, requeue)
		require.Equal(t, []domain.TaskStatus{
			domain.TaskStatusInProgress,
			domain.TaskStatusFailed,
		}, taskStore.statuses)

		failed := taskStore.updates[1]
		require.NotNil(t, failed.ErrorMessage)
		assert.Equal(t, "Failed after 3 attempts: simulated failure", *failed.ErrorMessage)
		assert.NotNil(t, failed.CompletedAt)
	})
}

func TestHandleMessageDropsBadMessages(t *testing.T) {
	work := func(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
		t.Fatal("work should not run for an unresolvable message")
		return nil, nil
	}

	t.Run("unparseable body", func(t *testing.T) {
		taskStore := newRecordingStore()
		consumer := newTestConsumer(t, taskStore, work)

		requeue := consumer.HandleMessage(context.Background(), []byte("not json"), 0)

		assert.False(t, requeue)
		assert.Empty(t, taskStore.statuses)
	})

	t.Run("invalid task id", func(t *testing.T) {
		taskStore := newRecordingStore()
		consumer := newTestConsumer(t, taskStore, work)

		requeue := consumer.HandleMessage(context.Background(), []byte(`{"task_id":"not-a-uuid"}`), 0)

		assert.False(t, requeue)
		assert.Empty(t, taskStore.statuses)
	})

	t.Run("unknown task", func(t *testing.T) {
		taskStore := &mockTaskStore{
			UpdateFn: func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		consumer := newTestConsumer(t, taskStore, work)

		requeue := consumer.HandleMessage(context.Background(), taskMessageBody(t, uuid.New()), 0)

		assert.False(t, requeue)
	})
}

func TestHandleMessageStoreFailureDoesNotRequeue(t *testing.T) {
	taskStore := &mockTaskStore{
		UpdateFn: func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
			return nil, errors.New("connection refused")
		},
	}
	work := func(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
		t.Fatal("work should not run when processing cannot start")
		return nil, nil
	}

	consumer := newTestConsumer(t, taskStore, work)
	requeue := consumer.HandleMessage(context.Background(), taskMessageBody(t, uuid.New()), 0)

	assert.False(t, requeue)
}

func TestRetryCountFrom(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "nil headers", headers: nil, want: 0},
		{name: "absent header", headers: amqp.Table{}, want: 0},
		{name: "int32 value", headers: amqp.Table{queue.RetryCountHeader: int32(2)}, want: 2},
		{name: "int64 value", headers: amqp.Table{queue.RetryCountHeader: int64(1)}, want: 1},
		{name: "float64 value", headers: amqp.Table{queue.RetryCountHeader: float64(3)}, want: 3},
		{name: "non-numeric value", headers: amqp.Table{queue.RetryCountHeader: "two"}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryCountFrom(tc.headers))
		})
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	processing := NewProcessingService(nil, &mockTaskStore{}, nil)
	consumer := NewConsumer(processing, SimulatedWork(0), "tasks", 0, nil)
	assert.Equal(t, DefaultMaxRetries, consumer.maxRetries)
}
