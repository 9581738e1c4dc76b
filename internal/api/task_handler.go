package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taskrelay/taskrelay/internal/api/shared"
	"github.com/taskrelay/taskrelay/internal/domain"
	"github.com/taskrelay/taskrelay/internal/platform/logger"
	"github.com/taskrelay/taskrelay/internal/service"
	"github.com/taskrelay/taskrelay/internal/store"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks requests
// It validates the submission and returns the created task in PENDING status.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error", slog.String("error", err.Error()))
		shared.RespondWithErrorAndLog(
			w, r, http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
		return
	}

	input := service.CreateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		Priority:    domain.TaskPriority(req.Priority),
	}

	task, err := h.taskService.CreateTask(r.Context(), input)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to create task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("priority", string(task.Priority)))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles GET /tasks requests
// Supported query parameters: status, priority, created_from, created_to,
// page, page_size.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	filter, page, pageSize, err := parseListQuery(r)
	if err != nil {
		log.Warn("invalid list query", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	list, err := h.taskService.ListTasks(r.Context(), filter, page, pageSize)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list tasks"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	items := make([]TaskResponse, 0, len(list.Items))
	for _, task := range list.Items {
		items = append(items, taskToResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Items:    items,
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
		Pages:    list.Pages,
	})
}

// GetTask handles GET /tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := taskIDFromRequest(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(r.Context(), taskID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// GetTaskStatus handles GET /tasks/{id}/status requests
// It serves a reduced view of the task: status and timestamps only.
func (h *TaskHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := taskIDFromRequest(w, r, log)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(r.Context(), taskID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get task status"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToStatusResponse(task))
}

// CancelTask handles DELETE /tasks/{id} requests
// A successful cancellation returns 204 with no body.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := taskIDFromRequest(w, r, log)
	if !ok {
		return
	}

	if _, err := h.taskService.CancelTask(r.Context(), taskID); err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to cancel task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("task cancelled", slog.String("task_id", taskID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// taskIDFromRequest extracts and parses the task ID from the URL path.
// On failure it writes the error response and returns ok=false.
func taskIDFromRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	pathID := chi.URLParam(r, "id")
	if pathID == "" {
		log.Warn("task ID not found in URL path")
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Task ID is required")
		return uuid.Nil, false
	}

	taskID, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid task ID format", slog.String("task_id", pathID))
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Invalid task ID format")
		return uuid.Nil, false
	}

	return taskID, true
}

// parseListQuery converts list query parameters into a store filter and
// pagination values, applying defaults for absent parameters.
func parseListQuery(r *http.Request) (store.TaskFilter, int, int, error) {
	var filter store.TaskFilter
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return filter, 0, 0, err
		}
		filter.Status = &status
	}

	if raw := query.Get("priority"); raw != "" {
		priority, err := domain.ParseTaskPriority(raw)
		if err != nil {
			return filter, 0, 0, err
		}
		filter.Priority = &priority
	}

	if raw := query.Get("created_from"); raw != "" {
		from, err := parseTimestampParam(raw)
		if err != nil {
			return filter, 0, 0, errInvalidQueryParam("created_from")
		}
		filter.CreatedFrom = &from
	}

	if raw := query.Get("created_to"); raw != "" {
		to, err := parseTimestampParam(raw)
		if err != nil {
			return filter, 0, 0, errInvalidQueryParam("created_to")
		}
		filter.CreatedTo = &to
	}

	page := defaultPage
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return filter, 0, 0, errInvalidQueryParam("page")
		}
		page = parsed
	}

	pageSize := defaultPageSize
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			return filter, 0, 0, errInvalidQueryParam("page_size")
		}
		pageSize = parsed
	}

	return filter, page, pageSize, nil
}

// parseTimestampParam accepts RFC 3339 timestamps and, for clients
// that omit the offset, plain ISO 8601 date-times interpreted as UTC.
func parseTimestampParam(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

type queryParamError string

func (e queryParamError) Error() string {
	return "Invalid query parameter: " + string(e)
}

func errInvalidQueryParam(name string) error {
	return queryParamError(name)
}
