package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

const taskColumns = `id, title, description, user_id, priority, deadline, created_at, updated_at, state`

// TaskStorage implements the TaskStorage interface for Postgres
type TaskStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *PostgresDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.Title, task.Description, task.UserID, string(task.Priority),
		task.Deadline, task.CreatedAt, task.UpdatedAt, string(task.State))
	if err != nil {
		if isUniqueViolation(err) || isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", interfaces.ErrIntegrity, err)
		}
		return fmt.Errorf("failed to store task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.Pool().QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, task *models.Task) error {
	tag, err := s.db.Pool().Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, priority = $4, deadline = $5, updated_at = $6, state = $7
		 WHERE id = $1`,
		task.ID, task.Title, task.Description, string(task.Priority), task.Deadline, task.UpdatedAt, string(task.State))
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStorage) ListTasksByUser(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error) {
	sql := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []interface{}{userID}
	if opts.State != "" {
		args = append(args, string(opts.State))
		sql += ` AND state = $` + strconv.Itoa(len(args))
	}
	if opts.Priority != "" {
		args = append(args, string(opts.Priority))
		sql += ` AND priority = $` + strconv.Itoa(len(args))
	}
	sql += ` ORDER BY created_at, id`

	return s.queryTasks(ctx, sql, args...)
}

func (s *TaskStorage) ListOverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE deadline IS NOT NULL AND deadline < $1 AND state <> $2
		 ORDER BY created_at, id`,
		now, string(models.TaskStateDone))
}

func (s *TaskStorage) queryTasks(ctx context.Context, sql string, args ...interface{}) ([]*models.Task, error) {
	rows, err := s.db.Pool().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task     models.Task
		priority string
		state    string
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.UserID, &priority,
		&task.Deadline, &task.CreatedAt, &task.UpdatedAt, &state)
	if err != nil {
		return nil, err
	}
	task.Priority = models.TaskPriority(priority)
	task.State = models.TaskState(state)
	return &task, nil
}
