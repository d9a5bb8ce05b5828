package postgres

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

// Manager implements the StorageManager interface for Postgres
type Manager struct {
	db     *PostgresDB
	user   interfaces.UserStorage
	task   interfaces.TaskStorage
	token  interfaces.TokenStorage
	logger arbor.ILogger
}

// NewManager creates a new Postgres storage manager
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (interfaces.StorageManager, error) {
	db, err := NewPostgresDB(ctx, logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		user:   NewUserStorage(db, logger),
		task:   NewTaskStorage(db, logger),
		token:  NewTokenStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Postgres storage manager initialized")

	return manager, nil
}

// UserStorage returns the User storage interface
func (m *Manager) UserStorage() interfaces.UserStorage {
	return m.user
}

// TaskStorage returns the Task storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.task
}

// TokenStorage returns the revoked token storage interface
func (m *Manager) TokenStorage() interfaces.TokenStorage {
	return m.token
}

// Close closes the connection pool
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
