package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

// Service manages user accounts mirrored from the identity provider
type Service struct {
	storage  interfaces.UserStorage
	validate *validator.Validate
	logger   arbor.ILogger
}

var _ interfaces.UserService = (*Service)(nil)

// NewService creates a new user service
func NewService(storage interfaces.UserStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateUser registers a user; returns interfaces.ErrUserExists on a username or email collision
func (s *Service) CreateUser(ctx context.Context, input *models.UserCreate) (*models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("invalid user: %v", err))
	}

	user := &models.User{
		ID:         input.ID,
		GivenName:  input.GivenName,
		FamilyName: input.FamilyName,
		Username:   input.Username,
		Email:      input.Email,
		UpdatedAt:  time.Now().UTC(),
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, interfaces.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User created")
	return user, nil
}

// GetUser looks a user up by username
func (s *Service) GetUser(ctx context.Context, username string) (*models.User, error) {
	return s.storage.GetUserByUsername(ctx, username)
}

// GetUserByID looks a user up by identity provider subject
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.storage.GetUserByID(ctx, id)
}

// GetUserByEmail looks a user up by email address
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.storage.GetUserByEmail(ctx, email)
}

// EnsureUser returns the user known by the info's username or email, creating it when neither is registered
func (s *Service) EnsureUser(ctx context.Context, info *interfaces.UserInfo) (*models.User, error) {
	if info == nil {
		return nil, fmt.Errorf("user info is required")
	}

	username := strings.TrimSpace(info.Username)
	if username == "" {
		username = info.Sub
	}

	if user, err := s.storage.GetUserByUsername(ctx, username); err == nil {
		return user, nil
	} else if !errors.Is(err, interfaces.ErrUserNotFound) {
		return nil, err
	}

	if info.Email != "" {
		if user, err := s.storage.GetUserByEmail(ctx, info.Email); err == nil {
			return user, nil
		} else if !errors.Is(err, interfaces.ErrUserNotFound) {
			return nil, err
		}
	}

	user, err := s.CreateUser(ctx, &models.UserCreate{
		ID:         info.Sub,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Username:   username,
		Email:      info.Email,
	})
	if errors.Is(err, interfaces.ErrUserExists) {
		// Lost a race with a concurrent sign-in for the same account
		return s.storage.GetUserByID(ctx, info.Sub)
	}
	return user, err
}
