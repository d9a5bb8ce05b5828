package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/ternarybob/tasker/internal/services/tasks"
)

func createTask(t *testing.T, env *testEnv, token, body string) *models.Task {
	t.Helper()
	rec := serve(env.taskH.CreateTaskHandler, newRequest("POST", "/api/tasks", token, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeTask(t, rec)
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)

	task := createTask(t, env, aliceToken, `{"title":"Write docs","description":"api","priority":"high","deadline":"`+futureString+`"}`)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, aliceID, task.UserID)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, models.TaskStateToDo, task.State)
	require.NotNil(t, task.Deadline)
}

func TestCreateTask_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
		detail string
	}{
		{"missing credentials", "", `{"title":"x"}`, http.StatusForbidden, MsgNotAuthenticated},
		{"invalid token", "nope", `{"title":"x"}`, http.StatusForbidden, MsgInvalidToken},
		{"unknown user", ghostToken, `{"title":"x"}`, http.StatusNotFound, MsgUserNotFound},
		{"empty title", aliceToken, `{"title":"  "}`, http.StatusBadRequest, tasks.MsgTitleRequired},
		{"past deadline", aliceToken, `{"title":"x","deadline":"2000-01-01T00:00:00Z"}`, http.StatusBadRequest, tasks.MsgDeadlineInPast},
		{"bad priority", aliceToken, `{"title":"x","priority":"urgent"}`, http.StatusUnprocessableEntity, tasks.MsgInvalidPriority},
		{"long title", aliceToken, `{"title":"` + strings.Repeat("a", 256) + `"}`, http.StatusUnprocessableEntity, tasks.MsgTitleTooLong},
		{"no body", aliceToken, ``, http.StatusUnprocessableEntity, tasks.MsgRequestBodyRequired},
		{"malformed json", aliceToken, `{"title":`, http.StatusUnprocessableEntity, "JSON decode error"},
		{"wrong type", aliceToken, `{"title":5}`, http.StatusUnprocessableEntity, "Input should be a valid string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(env.taskH.CreateTaskHandler, newRequest("POST", "/api/tasks", tt.token, tt.body))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, detail(t, rec))
		})
	}
}

func TestCreateTask_WrongScheme(t *testing.T) {
	env := newTestEnv(t)

	req := newRequest("POST", "/api/tasks", "", `{"title":"x"}`)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := serve(env.taskH.CreateTaskHandler, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgWrongAuthMethod, detail(t, rec))
}

func TestGetTask_Ownership(t *testing.T) {
	env := newTestEnv(t)
	task := createTask(t, env, aliceToken, `{"title":"Mine"}`)

	rec := serve(env.taskH.GetTaskHandler, newRequest("GET", "/api/tasks/"+task.ID, aliceToken, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, task.ID, decodeTask(t, rec).ID)

	rec = serve(env.taskH.GetTaskHandler, newRequest("GET", "/api/tasks/"+task.ID, bobToken, ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgNotAuthorizedGet, detail(t, rec))

	rec = serve(env.taskH.GetTaskHandler, newRequest("GET", "/api/tasks/missing", aliceToken, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgTaskNotFound, detail(t, rec))
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	createTask(t, env, aliceToken, `{"title":"one","priority":"low"}`)
	createTask(t, env, aliceToken, `{"title":"two","priority":"high"}`)
	createTask(t, env, bobToken, `{"title":"bob's"}`)

	rec := serve(env.taskH.ListTasksHandler, newRequest("GET", "/api/tasks", aliceToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Title)
	assert.Equal(t, "two", list[1].Title)

	rec = serve(env.taskH.ListTasksHandler, newRequest("GET", "/api/tasks?priority=high", aliceToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "two", list[0].Title)

	rec = serve(env.taskH.ListTasksHandler, newRequest("GET", "/api/tasks?state=finished", aliceToken, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, tasks.MsgInvalidState, detail(t, rec))
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	rec := serve(env.taskH.ListTasksHandler, newRequest("GET", "/api/tasks", bobToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	task := createTask(t, env, aliceToken, `{"title":"Draft"}`)

	rec := serve(env.taskH.UpdateTaskHandler, newRequest("PUT", "/api/tasks/"+task.ID+"?timezone=Europe/Lisbon", aliceToken,
		`{"title":"Final","state":"in_progress","deadline":"2999-06-01T09:00:00"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeTask(t, rec)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, models.TaskStateInProgress, updated.State)
	require.NotNil(t, updated.Deadline)
	// Lisbon is UTC+1 in June
	assert.Equal(t, 8, updated.Deadline.UTC().Hour())
}

func TestUpdateTask_Errors(t *testing.T) {
	env := newTestEnv(t)
	task := createTask(t, env, aliceToken, `{"title":"Draft"}`)

	tests := []struct {
		name   string
		path   string
		token  string
		body   string
		status int
		detail string
	}{
		{"other owner", "/api/tasks/" + task.ID, bobToken, `{"title":"x"}`, http.StatusForbidden, MsgNotAuthorizedPut},
		{"missing task", "/api/tasks/nope", aliceToken, `{"title":"x"}`, http.StatusNotFound, MsgTaskNotFound},
		{"bad state", "/api/tasks/" + task.ID, aliceToken, `{"state":"blocked"}`, http.StatusUnprocessableEntity, tasks.MsgInvalidState},
		{"bad timezone", "/api/tasks/" + task.ID + "?timezone=Mars/Base", aliceToken, `{"title":"x"}`, http.StatusBadRequest, tasks.MsgInvalidTimezone},
		{"empty title", "/api/tasks/" + task.ID, aliceToken, `{"title":""}`, http.StatusBadRequest, tasks.MsgTitleRequired},
		{"bad deadline", "/api/tasks/" + task.ID, aliceToken, `{"deadline":"soon"}`, http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(env.taskH.UpdateTaskHandler, newRequest("PUT", tt.path, tt.token, tt.body))
			assert.Equal(t, tt.status, rec.Code)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detail(t, rec))
			}
		})
	}
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	task := createTask(t, env, aliceToken, `{"title":"Temporary"}`)

	rec := serve(env.taskH.DeleteTaskHandler, newRequest("DELETE", "/api/tasks/"+task.ID, bobToken, ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgNotAuthorizedDel, detail(t, rec))

	rec = serve(env.taskH.DeleteTaskHandler, newRequest("DELETE", "/api/tasks/"+task.ID, aliceToken, ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(env.taskH.DeleteTaskHandler, newRequest("DELETE", "/api/tasks/"+task.ID, aliceToken, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportTasks(t *testing.T) {
	env := newTestEnv(t)
	createTask(t, env, aliceToken, `{"title":"Exported"}`)

	rec := serve(env.taskH.ExportTasksHandler, newRequest("GET", "/api/tasks/export?format=markdown", aliceToken, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tasks-alice.md")
	assert.Contains(t, rec.Body.String(), "Exported")

	rec = serve(env.taskH.ExportTasksHandler, newRequest("GET", "/api/tasks/export?format=docx", aliceToken, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTaskHandlers_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := serve(env.taskH.CreateTaskHandler, newRequest("GET", "/api/tasks", aliceToken, ""))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
