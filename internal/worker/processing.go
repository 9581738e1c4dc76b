package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/store"
)

// WorkFunc executes the actual work of a task and returns an opaque result
// payload. The default implementation simulates work; deployments plug in
// their own.
type WorkFunc func(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error)

// SimulatedWork returns a WorkFunc that sleeps for the given delay and
// produces a fixed-shape result payload.
func SimulatedWork(delay time.Duration) WorkFunc {
	return func(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		result := struct {
			TaskID      string `json:"task_id"`
			ProcessedAt string `json:"processed_at"`
			Message     string `json:"message"`
		}{
			TaskID:      taskID.String(),
			ProcessedAt: time.Now().UTC().Format(time.RFC3339),
			Message:     "Task processed successfully",
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return payload, nil
	}
}

// ProcessingService drives a task through the processing segment of its
// lifecycle: IN_PROGRESS on start, COMPLETED or FAILED on finish. Each
// transition commits in its own store transaction.
type ProcessingService struct {
	db        *sql.DB
	taskStore store.TaskStore
	logger    *slog.Logger

	// runTx executes a function inside a store transaction. It defaults
	// to store.RunInTransaction and is replaced in unit tests.
	runTx func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewProcessingService creates a ProcessingService.
// If logger is nil, a default logger will be used.
func NewProcessingService(db *sql.DB, taskStore store.TaskStore, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProcessingService{
		db:        db,
		taskStore: taskStore,
		logger:    logger.With(slog.String("component", "processing_service")),
		runTx:     store.RunInTransaction,
	}
}

// StartProcessing transitions the task to IN_PROGRESS and records the
// start timestamp.
// Returns store.ErrTaskNotFound if the task is unknown to the store.
func (s *ProcessingService) StartProcessing(ctx context.Context, taskID uuid.UUID) error {
	status := domain.TaskStatusInProgress
	startedAt := time.Now().UTC()

	return s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := s.taskStore.WithTx(tx).Update(ctx, taskID, store.TaskUpdate{
			Status:    &status,
			StartedAt: &startedAt,
		})
		return err
	})
}

// CompleteProcessing transitions the task to COMPLETED, recording the
// completion timestamp and the result payload.
func (s *ProcessingService) CompleteProcessing(
	ctx context.Context,
	taskID uuid.UUID,
	result json.RawMessage,
) error {
	status := domain.TaskStatusCompleted
	completedAt := time.Now().UTC()

	return s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := s.taskStore.WithTx(tx).Update(ctx, taskID, store.TaskUpdate{
			Status:      &status,
			CompletedAt: &completedAt,
			Result:      result,
		})
		return err
	})
}

// FailProcessing transitions the task to FAILED, recording the completion
// timestamp and the error message.
func (s *ProcessingService) FailProcessing(
	ctx context.Context,
	taskID uuid.UUID,
	errorMessage string,
) error {
	status := domain.TaskStatusFailed
	completedAt := time.Now().UTC()

	return s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := s.taskStore.WithTx(tx).Update(ctx, taskID, store.TaskUpdate{
			Status:       &status,
			CompletedAt:  &completedAt,
			ErrorMessage: &errorMessage,
		})
		return err
	})
}
