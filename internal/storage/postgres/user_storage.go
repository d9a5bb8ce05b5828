package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

const userColumns = `id, given_name, family_name, username, email, updated_at`

// UserStorage implements the UserStorage interface for Postgres
type UserStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(db *PostgresDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{
		db:     db,
		logger: logger,
	}
}

func (s *UserStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.GivenName, user.FamilyName, user.Username, user.Email, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return interfaces.ErrUserExists
		}
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *UserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *UserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStorage) queryOne(ctx context.Context, sql string, arg string) (*models.User, error) {
	var user models.User
	err := s.db.Pool().QueryRow(ctx, sql, arg).Scan(
		&user.ID, &user.GivenName, &user.FamilyName, &user.Username, &user.Email, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
