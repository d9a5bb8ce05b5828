package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/tasker/internal/models"
)

type EventType string

const (
	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"
	EventTaskOverdue EventType = "task.overdue"
)

// AllTaskEvents is what a subscription receives when it names no event types
var AllTaskEvents = []EventType{EventTaskCreated, EventTaskUpdated, EventTaskDeleted, EventTaskOverdue}

// ErrEventBusClosed is returned by Publish and Subscribe after Close
var ErrEventBusClosed = errors.New("event bus closed")

// TaskEvent describes a change to a single task. Task is a snapshot taken at publish time.
type TaskEvent struct {
	Type       EventType
	Task       *models.Task
	OccurredAt time.Time
}

type EventHandler func(ctx context.Context, event TaskEvent) error

// Subscription identifies one Subscribe call
type Subscription uint64

// EventService is the in-process task event bus
type EventService interface {
	// Subscribe registers handler for the given types, or for every task event when none are given
	Subscribe(handler EventHandler, eventTypes ...EventType) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// Publish delivers asynchronously; handlers are detached from ctx cancellation
	Publish(ctx context.Context, event TaskEvent) error
	// PublishSync waits for every handler and joins their errors
	PublishSync(ctx context.Context, event TaskEvent) error

	Close() error
}
