package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taskrelay/taskrelay/internal/domain"
)

// TaskFilter describes the optional predicates applied by TaskStore.List.
// Nil fields are ignored; the created_at bounds are inclusive on both ends.
type TaskFilter struct {
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// TaskUpdate describes a partial update of a task record. Only non-nil
// fields are written; nil fields leave the stored value untouched.
type TaskUpdate struct {
	Status       *domain.TaskStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Result       json.RawMessage
	ErrorMessage *string
}

// TaskStore defines the interface for persisting tasks. The store
// exclusively owns persisted task state; services and workers access it
// only through these operations.
type TaskStore interface {
	// Create saves a new task to the store.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter, ordered by created_at
	// descending, paginated by offset/limit. The returned count is the
	// total number of matching tasks before pagination.
	List(ctx context.Context, filter TaskFilter, offset, limit int) ([]*domain.Task, int, error)

	// Update applies a partial update to an existing task and returns the
	// updated record. Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// Delete removes a task from the store. This is an administrative
	// capability; the core lifecycle never deletes tasks.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
