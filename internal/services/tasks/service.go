package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

const (
	MsgTitleRequired       = "The task must have a title."
	MsgDeadlineInPast      = "The deadline cannot be in the past."
	MsgInvalidTimezone     = "Invalid timezone."
	MsgInvalidPriority     = "Priority must be one of: low, medium, high."
	MsgInvalidState        = "Input should be 'to_do', 'in_progress' or 'done'"
	MsgIntegrityViolation  = "Error: Could not create the task due to a database integrity issue."
	MsgRequestBodyRequired = "Request body is required."
)

var (
	MsgTitleTooLong       = fmt.Sprintf("Title must be at most %d characters.", models.MaxTitleLength)
	MsgDescriptionTooLong = fmt.Sprintf("Description must be at most %d characters.", models.MaxDescriptionLength)
)

// Service applies task rules on top of TaskStorage and announces changes on the event bus
type Service struct {
	storage  interfaces.TaskStorage
	events   interfaces.EventService
	validate *validator.Validate
	logger   arbor.ILogger
	clock    func() time.Time
}

var _ interfaces.TaskService = (*Service)(nil)

// NewService creates a new task service. events may be nil.
func NewService(storage interfaces.TaskStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	validate := validator.New()
	validate.RegisterAlias("title_length", fmt.Sprintf("max=%d", models.MaxTitleLength))
	validate.RegisterAlias("description_length", fmt.Sprintf("max=%d", models.MaxDescriptionLength))

	return &Service{
		storage:  storage,
		events:   events,
		validate: validate,
		logger:   logger,
		clock:    time.Now,
	}
}

// CreateTask stores a new task owned by userID
func (s *Service) CreateTask(ctx context.Context, userID string, input *models.TaskCreate) (*models.Task, error) {
	if input == nil {
		return nil, models.NewSchemaError("body", MsgRequestBodyRequired)
	}
	create := *input
	create.Priority = unsetIfBlank(create.Priority)
	input = &create

	if err := s.checkSchema(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, models.NewValidationError(MsgTitleRequired)
	}

	now := s.clock().UTC()

	var deadline *time.Time
	if input.Deadline != nil {
		d := input.Deadline.In(time.UTC)
		if d.Before(now) {
			return nil, models.NewValidationError(MsgDeadlineInPast)
		}
		d = d.UTC()
		deadline = &d
	}

	priority := models.PriorityLow
	if input.Priority != nil {
		priority = *input.Priority
	}

	task := &models.Task{
		ID:          common.NewTaskID(),
		Title:       input.Title,
		Description: input.Description,
		UserID:      userID,
		Priority:    priority,
		Deadline:    deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       models.TaskStateToDo,
	}

	if err := s.storage.CreateTask(ctx, task); err != nil {
		if errors.Is(err, interfaces.ErrIntegrity) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Task rejected by storage constraint")
			return nil, models.NewValidationError(MsgIntegrityViolation)
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Debug().Str("task_id", task.ID).Str("user_id", userID).Msg("Task created")
	s.publish(ctx, interfaces.EventTaskCreated, task)

	return task, nil
}

// GetTask returns the task or interfaces.ErrTaskNotFound
func (s *Service) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return s.storage.GetTask(ctx, taskID)
}

// ListTasks returns the user's tasks ordered by creation time; never nil
func (s *Service) ListTasks(ctx context.Context, userID string, opts models.TaskListOptions) ([]*models.Task, error) {
	if opts.State != "" && !opts.State.Valid() {
		return nil, models.NewSchemaError("state", MsgInvalidState)
	}
	if opts.Priority != "" && !opts.Priority.Valid() {
		return nil, models.NewSchemaError("priority", MsgInvalidPriority)
	}

	tasks, err := s.storage.ListTasksByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return tasks, nil
}

// UpdateTask applies the provided fields. Naive deadlines are read in timezone (empty means UTC).
func (s *Service) UpdateTask(ctx context.Context, taskID string, input *models.TaskUpdate, timezone string) (*models.Task, error) {
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return nil, models.NewSchemaError("body", MsgRequestBodyRequired)
	}
	update := *input
	update.Priority = unsetIfBlank(update.Priority)
	input = &update

	if err := s.checkSchema(input); err != nil {
		return nil, err
	}

	task, err := s.storage.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := s.clock().In(loc)

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, models.NewValidationError(MsgTitleRequired)
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Deadline != nil {
		d := input.Deadline.In(loc)
		if d.Before(now) {
			return nil, models.NewValidationError(MsgDeadlineInPast)
		}
		d = d.UTC()
		task.Deadline = &d
	}
	if input.State != nil {
		task.State = *input.State
	}
	task.UpdatedAt = now.UTC()

	if err := s.storage.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, interfaces.ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Debug().Str("task_id", task.ID).Msg("Task updated")
	s.publish(ctx, interfaces.EventTaskUpdated, task)

	return task, nil
}

// DeleteTask removes the task and reports true, or returns interfaces.ErrTaskNotFound
func (s *Service) DeleteTask(ctx context.Context, taskID string) (bool, error) {
	task, err := s.storage.GetTask(ctx, taskID)
	if err != nil {
		return false, err
	}

	if err := s.storage.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, interfaces.ErrTaskNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Debug().Str("task_id", taskID).Msg("Task deleted")
	s.publish(ctx, interfaces.EventTaskDeleted, task)

	return true, nil
}

// OverdueTasks returns unfinished tasks whose deadline is before now
func (s *Service) OverdueTasks(ctx context.Context, now time.Time) ([]*models.Task, error) {
	tasks, err := s.storage.ListOverdueTasks(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	return tasks, nil
}

// LoadTimezone resolves an IANA zone name; empty means UTC
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, models.NewValidationError(MsgInvalidTimezone)
	}
	return loc, nil
}

// unsetIfBlank treats "priority": "" like an omitted priority
func unsetIfBlank(p *models.TaskPriority) *models.TaskPriority {
	if p != nil && strings.TrimSpace(string(*p)) == "" {
		return nil
	}
	return p
}

func (s *Service) checkSchema(input interface{}) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return models.NewSchemaError(strings.ToLower(fe.Field()), schemaMessage(fe))
	}
	return fmt.Errorf("failed to validate task: %w", err)
}

func schemaMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Title":
		return MsgTitleTooLong
	case "Description":
		return MsgDescriptionTooLong
	case "Priority":
		return MsgInvalidPriority
	case "State":
		return MsgInvalidState
	}
	return fmt.Sprintf("Invalid value for %s.", strings.ToLower(fe.Field()))
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, task *models.Task) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.TaskEvent{Type: eventType, Task: task}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Str("task_id", task.ID).Msg("Failed to publish task event")
	}
}
