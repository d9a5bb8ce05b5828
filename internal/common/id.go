package common

import (
	"github.com/google/uuid"
)

// NewTaskID generates a unique task ID (plain UUIDv4, 36 characters)
func NewTaskID() string {
	return uuid.New().String()
}
