package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/ternarybob/tasker/internal/services/export"
)

const (
	MsgTaskNotFound     = "Task not found."
	MsgNotAuthorizedGet = "Not authorized to access this task."
	MsgNotAuthorizedPut = "Not authorized to update this task."
	MsgNotAuthorizedDel = "Not authorized to delete this task."
	MsgCreateFailed     = "An error occurred while creating the task."
	MsgGetFailed        = "An error occurred while retrieving the task."
	MsgUpdateFailed     = "An error occurred while updating the task."
	MsgDeleteFailed     = "An error occurred while deleting the task."
	MsgListFailed       = "An error occurred while retrieving tasks."
	MsgExportFailed     = "An error occurred while exporting tasks."
)

// TaskHandler serves the task CRUD and export endpoints
type TaskHandler struct {
	tasks  interfaces.TaskService
	export interfaces.ExportService
	auth   *Authenticator
	logger arbor.ILogger
}

func NewTaskHandler(tasks interfaces.TaskService, exportService interfaces.ExportService, authenticator *Authenticator, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		export: exportService,
		auth:   authenticator,
		logger: logger,
	}
}

// CreateTaskHandler handles POST /api/tasks
func (h *TaskHandler) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	user, ok := h.auth.CurrentUser(w, r)
	if !ok {
		return
	}

	var input models.TaskCreate
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, err, MsgCreateFailed)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), user.ID, &input)
	if err != nil {
		h.writeServiceError(w, err, MsgCreateFailed)
		return
	}

	WriteJSON(w, http.StatusCreated, task)
}

// ListTasksHandler handles GET /api/tasks with optional ?state= and ?priority= filters
func (h *TaskHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	user, ok := h.auth.CurrentUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := models.TaskListOptions{
		State:    models.TaskState(query.Get("state")),
		Priority: models.TaskPriority(query.Get("priority")),
	}

	tasks, err := h.tasks.ListTasks(r.Context(), user.ID, opts)
	if err != nil {
		h.writeServiceError(w, err, MsgListFailed)
		return
	}

	WriteJSON(w, http.StatusOK, tasks)
}

// GetTaskHandler handles GET /api/tasks/{id}
func (h *TaskHandler) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	task, ok := h.ownedTask(w, r, MsgNotAuthorizedGet, MsgGetFailed)
	if !ok {
		return
	}

	WriteJSON(w, http.StatusOK, task)
}

// UpdateTaskHandler handles PUT /api/tasks/{id}?timezone=
func (h *TaskHandler) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	task, ok := h.ownedTask(w, r, MsgNotAuthorizedPut, MsgUpdateFailed)
	if !ok {
		return
	}

	var input models.TaskUpdate
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeServiceError(w, err, MsgUpdateFailed)
		return
	}

	timezone := r.URL.Query().Get("timezone")
	if timezone == "" {
		timezone = "UTC"
	}

	updated, err := h.tasks.UpdateTask(r.Context(), task.ID, &input, timezone)
	if err != nil {
		if errors.Is(err, interfaces.ErrTaskNotFound) {
			WriteError(w, http.StatusNotFound, MsgTaskNotFound)
			return
		}
		h.writeServiceError(w, err, MsgUpdateFailed)
		return
	}

	WriteJSON(w, http.StatusOK, updated)
}

// DeleteTaskHandler handles DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	task, ok := h.ownedTask(w, r, MsgNotAuthorizedDel, MsgDeleteFailed)
	if !ok {
		return
	}

	if _, err := h.tasks.DeleteTask(r.Context(), task.ID); err != nil {
		if errors.Is(err, interfaces.ErrTaskNotFound) {
			WriteError(w, http.StatusNotFound, MsgTaskNotFound)
			return
		}
		h.writeServiceError(w, err, MsgDeleteFailed)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportTasksHandler handles GET /api/tasks/export?format=
func (h *TaskHandler) ExportTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	user, ok := h.auth.CurrentUser(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeServiceError(w, err, MsgExportFailed)
		return
	}

	doc, err := h.export.Export(r.Context(), user, format)
	if err != nil {
		h.writeServiceError(w, err, MsgExportFailed)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}

// ownedTask resolves the caller and the task named in the path, and checks that the caller owns it
func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request, forbidden, fallback string) (*models.Task, bool) {
	user, ok := h.auth.CurrentUser(w, r)
	if !ok {
		return nil, false
	}

	taskID := pathID(r.URL.Path, "/api/tasks/")
	if taskID == "" {
		WriteError(w, http.StatusNotFound, MsgTaskNotFound)
		return nil, false
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, interfaces.ErrTaskNotFound) {
			h.logger.Debug().Str("task_id", taskID).Msg("Task not found")
			WriteError(w, http.StatusNotFound, MsgTaskNotFound)
			return nil, false
		}
		h.logger.Error().Err(err).Str("task_id", taskID).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, fallback)
		return nil, false
	}

	if task.UserID != user.ID {
		h.logger.Warn().
			Str("user_id", user.ID).
			Str("task_id", task.ID).
			Msg("User is not authorized for task")
		WriteError(w, http.StatusForbidden, forbidden)
		return nil, false
	}

	return task, true
}
