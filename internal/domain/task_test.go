package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskrelay/taskrelay/internal/domain"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("creates task with defaults", func(t *testing.T) {
		t.Parallel()

		task, err := domain.NewTask("Build report", nil, "")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, "Build report", task.Name)
		assert.Nil(t, task.Description)
		assert.Equal(t, domain.TaskPriorityMedium, task.Priority)
		assert.Equal(t, domain.TaskStatusNew, task.Status)
		assert.False(t, task.CreatedAt.IsZero())
		assert.Nil(t, task.StartedAt)
		assert.Nil(t, task.CompletedAt)
		assert.Nil(t, task.Result)
		assert.Nil(t, task.ErrorMessage)
	})

	t.Run("creates task with explicit priority and description", func(t *testing.T) {
		t.Parallel()

		desc := "nightly aggregation"
		task, err := domain.NewTask("Build report", &desc, domain.TaskPriorityHigh)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskPriorityHigh, task.Priority)
		require.NotNil(t, task.Description)
		assert.Equal(t, desc, *task.Description)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask("", nil, domain.TaskPriorityLow)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskName)
	})

	t.Run("rejects name longer than 255 characters", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask(strings.Repeat("x", 256), nil, "")
		assert.ErrorIs(t, err, domain.ErrTaskNameTooLong)
	})

	t.Run("accepts name of exactly 255 characters", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask(strings.Repeat("x", 255), nil, "")
		assert.NoError(t, err)
	})

	t.Run("accepts multibyte name of exactly 255 characters", func(t *testing.T) {
		t.Parallel()

		name := strings.Repeat("я", 255)
		require.Greater(t, len(name), 255)

		_, err := domain.NewTask(name, nil, "")
		assert.NoError(t, err)
	})

	t.Run("rejects multibyte name longer than 255 characters", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask(strings.Repeat("я", 256), nil, "")
		assert.ErrorIs(t, err, domain.ErrTaskNameTooLong)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewTask("Build report", nil, domain.TaskPriority("URGENT"))
		assert.ErrorIs(t, err, domain.ErrInvalidTaskPriority)
	})
}

func TestTaskStatusCanTransitionTo(t *testing.T) {
	t.Parallel()

	allStatuses := []domain.TaskStatus{
		domain.TaskStatusNew,
		domain.TaskStatusPending,
		domain.TaskStatusInProgress,
		domain.TaskStatusCompleted,
		domain.TaskStatusFailed,
		domain.TaskStatusCancelled,
	}

	allowed := map[domain.TaskStatus][]domain.TaskStatus{
		domain.TaskStatusNew:        {domain.TaskStatusPending, domain.TaskStatusCancelled},
		domain.TaskStatusPending:    {domain.TaskStatusInProgress, domain.TaskStatusCancelled},
		domain.TaskStatusInProgress: {domain.TaskStatusCompleted, domain.TaskStatusFailed, domain.TaskStatusCancelled},
		domain.TaskStatusCompleted:  {},
		domain.TaskStatusFailed:     {},
		domain.TaskStatusCancelled:  {},
	}

	for from, nexts := range allowed {
		permitted := make(map[domain.TaskStatus]bool, len(nexts))
		for _, next := range nexts {
			permitted[next] = true
		}

		for _, to := range allStatuses {
			want := permitted[to]
			got := from.CanTransitionTo(to)
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, domain.TaskStatusNew.IsTerminal())
	assert.False(t, domain.TaskStatusPending.IsTerminal())
	assert.False(t, domain.TaskStatusInProgress.IsTerminal())
	assert.True(t, domain.TaskStatusCompleted.IsTerminal())
	assert.True(t, domain.TaskStatusFailed.IsTerminal())
	assert.True(t, domain.TaskStatusCancelled.IsTerminal())
}

func TestParseTaskStatus(t *testing.T) {
	t.Parallel()

	status, err := domain.ParseTaskStatus("IN_PROGRESS")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, status)

	_, err = domain.ParseTaskStatus("in_progress")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)

	_, err = domain.ParseTaskStatus("")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}

func TestParseTaskPriority(t *testing.T) {
	t.Parallel()

	priority, err := domain.ParseTaskPriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPriorityHigh, priority)

	_, err = domain.ParseTaskPriority("CRITICAL")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskPriority)
}
