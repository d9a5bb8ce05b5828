package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// UserStorage implements the UserStorage interface for Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // serialises the uniqueness check with the insert
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{
		db:     db,
		logger: logger,
	}
}

func (s *UserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, query := range []*badgerhold.Query{
		badgerhold.Where("Username").Eq(user.Username).Index("Username"),
		badgerhold.Where("Email").Eq(user.Email).Index("Email"),
	} {
		count, err := s.db.Store().Count(&models.User{}, query)
		if err != nil {
			return fmt.Errorf("failed to check user uniqueness: %w", err)
		}
		if count > 0 {
			return interfaces.ErrUserExists
		}
	}

	if err := s.db.Store().Insert(user.ID, user); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return interfaces.ErrUserExists
		}
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *UserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.Store().Get(id, &user); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(badgerhold.Where("Username").Eq(username).Index("Username"))
}

func (s *UserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(badgerhold.Where("Email").Eq(email).Index("Email"))
}

func (s *UserStorage) findOne(query *badgerhold.Query) (*models.User, error) {
	var users []models.User
	if err := s.db.Store().Find(&users, query.Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if len(users) == 0 {
		return nil, interfaces.ErrUserNotFound
	}
	return &users[0], nil
}
