package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/store"
)

// TaskPublisher is the queue gateway seam used by the service to announce
// newly created tasks. Publish failures are non-fatal by policy: the
// service logs them and leaves the task in PENDING.
type TaskPublisher interface {
	Publish(ctx context.Context, taskID uuid.UUID) error
}

// CreateTaskInput holds the client-supplied fields for a new task.
// Validation of the raw request happens at the API boundary; the domain
// constructor re-checks its own invariants.
type CreateTaskInput struct {
	Name        string
	Description *string
	Priority    domain.TaskPriority
}

// TaskList is a page of tasks plus pagination metadata.
type TaskList struct {
	Items    []*domain.Task
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// TaskService provides task lifecycle operations for the HTTP facade.
type TaskService interface {
	// CreateTask stores a new task, transitions it to PENDING and
	// attempts to enqueue it for processing. The returned task is
	// always PENDING; queue unavailability never fails creation.
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)

	// GetTaskByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTaskByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasks returns a filtered, paginated page of tasks. page is
	// 1-based; pageSize must be in [1,100] (enforced by the facade).
	ListTasks(ctx context.Context, filter store.TaskFilter, page, pageSize int) (*TaskList, error)

	// CancelTask transitions a non-terminal task to CANCELLED.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrTaskNotCancellable if it is already in a terminal state.
	// Cancellation is advisory: it does not interrupt a worker that is
	// already executing the task, and that worker may later overwrite
	// the status with COMPLETED or FAILED. Callers needing strict
	// cancellation must poll the status afterwards.
	CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

// Common sentinel errors for TaskService
var (
	// ErrTaskNotFound indicates that the task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCancellable indicates the task is in a terminal state
	// and can no longer be cancelled
	ErrTaskNotCancellable = errors.New("task cannot be cancelled")
)

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Known sentinel errors are returned directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotCancellable) {
		return err
	}

	// Map store-level sentinels to service-level ones.
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	db        *sql.DB
	taskStore store.TaskStore
	publisher TaskPublisher
	logger    *slog.Logger

	// runTx executes a function inside a store transaction. It defaults
	// to store.RunInTransaction and is replaced in unit tests.
	runTx func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	db *sql.DB,
	taskStore store.TaskStore,
	publisher TaskPublisher,
	logger *slog.Logger,
) (TaskService, error) {
	if db == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "db cannot be nil",
		}
	}
	if taskStore == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "taskStore cannot be nil",
		}
	}
	if publisher == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "publisher cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		db:        db,
		taskStore: taskStore,
		publisher: publisher,
		logger:    logger.With("component", "task_service"),
		runTx:     store.RunInTransaction,
	}, nil
}

// CreateTask stores the task as NEW, immediately transitions it to PENDING
// and then attempts to publish it to the queue. The two-step NEW->PENDING
// write establishes an "exists but not yet confirmed queued" checkpoint
// before the enqueue attempt.
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	input CreateTaskInput,
) (*domain.Task, error) {
	task, err := domain.NewTask(input.Name, input.Description, input.Priority)
	if err != nil {
		s.logger.Error("failed to create task object",
			"error", err,
			"name", input.Name)
		return nil, NewTaskServiceError("create_task", "failed to create task object", err)
	}

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.taskStore.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to save task",
			"error", err,
			"task_id", task.ID)
		return nil, NewTaskServiceError("create_task", "failed to save task to database", err)
	}

	pending := domain.TaskStatusPending
	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		updated, err := s.taskStore.WithTx(tx).Update(ctx, task.ID, store.TaskUpdate{
			Status: &pending,
		})
		if err != nil {
			return err
		}
		task = updated
		return nil
	})
	if err != nil {
		s.logger.Error("failed to transition task to pending",
			"error", err,
			"task_id", task.ID)
		return nil, NewTaskServiceError("create_task", "failed to transition task to pending", err)
	}

	// Best-effort enqueue. A publish failure deliberately does not fail
	// task creation: the task stays PENDING until connectivity returns or
	// an operator intervenes.
	if err := s.publisher.Publish(ctx, task.ID); err != nil {
		s.logger.Warn("failed to publish task to queue; task will remain pending",
			"error", err,
			"task_id", task.ID)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"status", task.Status,
		"priority", task.Priority)
	return task, nil
}

// GetTaskByID retrieves a task by its ID.
func (s *taskServiceImpl) GetTaskByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to get task", err)
	}
	return task, nil
}

// ListTasks converts page/pageSize to store offset/limit and computes the
// page count: pages = ceil(total / pageSize), 0 when total is 0.
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	filter store.TaskFilter,
	page, pageSize int,
) (*TaskList, error) {
	offset := (page - 1) * pageSize

	items, total, err := s.taskStore.List(ctx, filter, offset, pageSize)
	if err != nil {
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	pages := 0
	if total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}

	return &TaskList{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

// CancelTask transitions a non-terminal task to CANCELLED.
func (s *taskServiceImpl) CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var cancelled *domain.Task

	err := s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.taskStore.WithTx(tx)

		task, err := txStore.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if task.IsTerminal() {
			return fmt.Errorf("%w: status is %s", ErrTaskNotCancellable, task.Status)
		}

		status := domain.TaskStatusCancelled
		cancelled, err = txStore.Update(ctx, id, store.TaskUpdate{Status: &status})
		return err
	})
	if err != nil {
		return nil, NewTaskServiceError("cancel_task", "failed to cancel task", err)
	}

	s.logger.Info("task cancelled", "task_id", id)
	return cancelled, nil
}
