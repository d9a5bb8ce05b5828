package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/tasker/internal/models"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username or email is already registered
	ErrUserExists = errors.New("user already exists")
	// ErrTaskNotFound is returned when no task matches the lookup
	ErrTaskNotFound = errors.New("task not found")
	// ErrTokenRevoked is returned when a bearer token has been signed out
	ErrTokenRevoked = errors.New("token revoked")
	// ErrIntegrity is returned when a write breaks a storage constraint
	ErrIntegrity = errors.New("integrity violation")
)

// UserStorage - interface for user persistence
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TaskStorage - interface for task persistence
type TaskStorage interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// ListTasksByUser returns the user's tasks ordered by creation time
	ListTasksByUser(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error)

	// ListOverdueTasks returns unfinished tasks whose deadline is before now
	ListOverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error)
}

// TokenStorage - interface for signed-out bearer tokens
type TokenStorage interface {
	RevokeToken(ctx context.Context, token *models.RevokedToken) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)

	// PurgeExpired removes revocations whose token has expired and returns how many were removed
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	UserStorage() UserStorage
	TaskStorage() TaskStorage
	TokenStorage() TokenStorage
	Close() error
}
