package models

import (
	"time"
)

// TaskState is the lifecycle state of a task
type TaskState string

const (
	TaskStateToDo       TaskState = "to_do"
	TaskStateInProgress TaskState = "in_progress"
	TaskStateDone       TaskState = "done"
)

// Valid reports whether s is one of the known task states
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateToDo, TaskStateInProgress, TaskStateDone:
		return true
	}
	return false
}

// TaskPriority is the priority level of a task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is one of the known priorities
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Length limits in characters, enforced through the title_length and description_length
// validator aliases registered by the task service
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 255
)

// Task is a unit of work owned by a single user
type Task struct {
	ID          string       `json:"id" badgerhold:"key"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	UserID      string       `json:"user_id" badgerhold:"index"`
	Priority    TaskPriority `json:"priority"`
	Deadline    *time.Time   `json:"deadline"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	State       TaskState    `json:"state"`
}

// IsOverdue reports whether the task has a deadline before now and is not done
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.State != TaskStateDone
}

// TaskCreate is the request body for creating a task
type TaskCreate struct {
	Title       string        `json:"title" validate:"title_length"`
	Description *string       `json:"description" validate:"omitempty,description_length"`
	Priority    *TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline    *Timestamp    `json:"deadline"`
}

// TaskUpdate is the request body for a partial task update; nil fields are left untouched
type TaskUpdate struct {
	Title       *string       `json:"title" validate:"omitempty,title_length"`
	Description *string       `json:"description" validate:"omitempty,description_length"`
	Priority    *TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline    *Timestamp    `json:"deadline"`
	State       *TaskState    `json:"state" validate:"omitempty,oneof=to_do in_progress done"`
}

// TaskListOptions filters a user's task list
type TaskListOptions struct {
	State    TaskState
	Priority TaskPriority
}
