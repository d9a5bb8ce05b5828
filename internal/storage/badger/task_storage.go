package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TaskStorage implements the TaskStorage interface for Badger
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if err := s.db.Store().Insert(task.ID, task); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("%w: task %s already exists", interfaces.ErrIntegrity, task.ID)
		}
		return fmt.Errorf("failed to store task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.Store().Get(id, &task); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, task *models.Task) error {
	if err := s.db.Store().Update(task.ID, task); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrTaskNotFound
		}
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Task{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *TaskStorage) ListTasksByUser(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error) {
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID")
	if opts.State != "" {
		query = query.And("State").Eq(opts.State)
	}
	if opts.Priority != "" {
		query = query.And("Priority").Eq(opts.Priority)
	}

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return sortedByCreation(tasks), nil
}

func (s *TaskStorage) ListOverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error) {
	query := badgerhold.Where("Deadline").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		switch task := ra.Record().(type) {
		case *models.Task:
			return task.IsOverdue(now), nil
		case models.Task:
			return task.IsOverdue(now), nil
		}
		return false, nil
	})

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	return sortedByCreation(tasks), nil
}

func sortedByCreation(tasks []models.Task) []*models.Task {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	result := make([]*models.Task, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result
}
