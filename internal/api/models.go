package api

import (
	"encoding/json"
	"time"

	"github.com/taskrelay/taskrelay/internal/domain"
)

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Name        string  `json:"name"        validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty"`
	Priority    string  `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
}

// TaskResponse represents the full JSON representation of a task.
type TaskResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  *string     `json:"description"`
	Priority     string      `json:"priority"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at"`
	Result       interface{} `json:"result"`
	ErrorMessage *string     `json:"error_message"`
}

// TaskStatusResponse is the reduced representation served by the status
// endpoint: identity, status and timestamps only.
type TaskStatusResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TaskListResponse represents a page of tasks.
type TaskListResponse struct {
	Items    []TaskResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

// taskToResponse converts a domain.Task to a TaskResponse
func taskToResponse(task *domain.Task) TaskResponse {
	var result interface{}
	if len(task.Result) > 0 {
		if err := json.Unmarshal(task.Result, &result); err != nil {
			// Serve the raw bytes as a string rather than dropping them
			result = string(task.Result)
		}
	}

	return TaskResponse{
		ID:           task.ID.String(),
		Name:         task.Name,
		Description:  task.Description,
		Priority:     string(task.Priority),
		Status:       string(task.Status),
		CreatedAt:    task.CreatedAt,
		StartedAt:    task.StartedAt,
		CompletedAt:  task.CompletedAt,
		Result:       result,
		ErrorMessage: task.ErrorMessage,
	}
}

// taskToStatusResponse converts a domain.Task to a TaskStatusResponse
func taskToStatusResponse(task *domain.Task) TaskStatusResponse {
	return TaskStatusResponse{
		ID:          task.ID.String(),
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
}
