package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"gopkg.in/yaml.v3"
)

// MockTaskService is a mock implementation of interfaces.TaskService
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID string, input *models.TaskCreate) (*models.Task, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) ListTasks(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error) {
	args := m.Called(ctx, userID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, taskID string, input *models.TaskUpdate, timezone string) (*models.Task, error) {
	args := m.Called(ctx, taskID, input, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskService) OverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

var exportNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleTasks() []*models.Task {
	past := exportNow.Add(-24 * time.Hour)
	future := exportNow.Add(48 * time.Hour)
	desc := "pipes | and\nnewlines"
	return []*models.Task{
		{ID: "t1", Title: "Write report", UserID: "u1", Priority: models.PriorityHigh, State: models.TaskStateToDo, Deadline: &past, CreatedAt: past, UpdatedAt: past},
		{ID: "t2", Title: "Review <draft>", Description: &desc, UserID: "u1", Priority: models.PriorityLow, State: models.TaskStateInProgress, Deadline: &future, CreatedAt: past, UpdatedAt: past},
		{ID: "t3", Title: "Ship it", UserID: "u1", Priority: models.PriorityMedium, State: models.TaskStateDone, Deadline: &past, CreatedAt: past, UpdatedAt: past},
	}
}

func newTestService(t *testing.T, tasks []*models.Task) (*Service, *MockTaskService) {
	t.Helper()
	m := new(MockTaskService)
	m.On("ListTasks", mock.Anything, "u1", models.TaskListOptions{}).Return(tasks, nil)

	s := NewService(m, arbor.NewLogger())
	s.clock = func() time.Time { return exportNow }
	return s, m
}

var testUser = &models.User{ID: "u1", Username: "alice"}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    interfaces.ExportFormat
		wantErr bool
	}{
		{"", interfaces.ExportMarkdown, false},
		{"YAML", interfaces.ExportYAML, false},
		{" html ", interfaces.ExportHTML, false},
		{"pdf", interfaces.ExportPDF, false},
		{"docx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				var schemaErr *models.SchemaError
				require.ErrorAs(t, err, &schemaErr)
				assert.Equal(t, MsgUnknownFormat, schemaErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExport_Markdown(t *testing.T) {
	s, m := newTestService(t, sampleTasks())

	doc, err := s.Export(context.Background(), testUser, interfaces.ExportMarkdown)
	require.NoError(t, err)
	m.AssertExpectations(t)

	body := string(doc.Body)
	assert.Equal(t, "tasks-alice.md", doc.Filename)
	assert.Contains(t, doc.ContentType, "text/markdown")
	assert.Contains(t, body, "# Tasks for alice")
	assert.Contains(t, body, "- **Total:** 3")
	assert.Contains(t, body, "- **Overdue:** 1")
	assert.Contains(t, body, "| Write report | high | to_do | 2029-12-31 12:00 UTC (overdue) |")
	assert.Contains(t, body, `pipes \| and newlines`)
	// Done tasks are never overdue
	assert.NotContains(t, body, "Ship it | medium | done | 2029-12-31 12:00 UTC (overdue)")
}

func TestExport_YAML(t *testing.T) {
	s, _ := newTestService(t, sampleTasks())

	doc, err := s.Export(context.Background(), testUser, interfaces.ExportYAML)
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", doc.ContentType)

	var decoded struct {
		Owner   string `yaml:"owner"`
		Summary struct {
			Total   int `yaml:"total"`
			Done    int `yaml:"done"`
			Overdue int `yaml:"overdue"`
		} `yaml:"summary"`
		Tasks []struct {
			ID      string `yaml:"id"`
			Overdue bool   `yaml:"overdue"`
		} `yaml:"tasks"`
	}
	require.NoError(t, yaml.Unmarshal(doc.Body, &decoded))
	assert.Equal(t, "alice", decoded.Owner)
	assert.Equal(t, 3, decoded.Summary.Total)
	assert.Equal(t, 1, decoded.Summary.Done)
	assert.Equal(t, 1, decoded.Summary.Overdue)
	require.Len(t, decoded.Tasks, 3)
	assert.True(t, decoded.Tasks[0].Overdue)
	assert.False(t, decoded.Tasks[2].Overdue)
}

func TestExport_HTML(t *testing.T) {
	s, _ := newTestService(t, sampleTasks())

	doc, err := s.Export(context.Background(), testUser, interfaces.ExportHTML)
	require.NoError(t, err)

	body := string(doc.Body)
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "<title>Tasks for alice</title>")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "<h1")
	assert.NotContains(t, body, "<draft>")
}

func TestExport_PDF(t *testing.T) {
	s, _ := newTestService(t, sampleTasks())

	doc, err := s.Export(context.Background(), testUser, interfaces.ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "tasks-alice.pdf", doc.Filename)
	assert.True(t, strings.HasPrefix(string(doc.Body), "%PDF-"))
}

func TestExport_Empty(t *testing.T) {
	s, _ := newTestService(t, []*models.Task{})

	doc, err := s.Export(context.Background(), testUser, interfaces.ExportMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "No tasks.")

	doc, err = s.Export(context.Background(), testUser, interfaces.ExportPDF)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Body)
}

func TestExport_Errors(t *testing.T) {
	s, m := newTestService(t, nil)

	_, err := s.Export(context.Background(), testUser, "docx")
	var schemaErr *models.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	m.AssertNotCalled(t, "ListTasks", mock.Anything, mock.Anything, mock.Anything)

	failing := new(MockTaskService)
	failing.On("ListTasks", mock.Anything, "u1", models.TaskListOptions{}).Return(nil, errors.New("db down"))
	s = NewService(failing, arbor.NewLogger())

	_, err = s.Export(context.Background(), testUser, interfaces.ExportYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
