package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tasker/internal/models"
)

// UserService manages user accounts
type UserService interface {
	CreateUser(ctx context.Context, user *models.UserCreate) (*models.User, error)
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// EnsureUser creates the user unless the username or email is already registered
	EnsureUser(ctx context.Context, info *UserInfo) (*models.User, error)
}

// TaskService applies task rules on top of storage
type TaskService interface {
	CreateTask(ctx context.Context, userID string, input *models.TaskCreate) (*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error)
	UpdateTask(ctx context.Context, taskID string, input *models.TaskUpdate, timezone string) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID string) (bool, error)
	OverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error)
}

// ExportFormat names a task report format
type ExportFormat string

const (
	ExportYAML     ExportFormat = "yaml"
	ExportMarkdown ExportFormat = "markdown"
	ExportHTML     ExportFormat = "html"
	ExportPDF      ExportFormat = "pdf"
)

// ExportDocument is a rendered task report
type ExportDocument struct {
	ContentType string
	Filename    string
	Body        []byte
}

// ExportService renders a user's tasks as a downloadable report
type ExportService interface {
	Export(ctx context.Context, user *models.User, format ExportFormat) (*ExportDocument, error)
}

// SchedulerService runs periodic maintenance jobs
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}
