package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TokenStorage implements the TokenStorage interface for Badger
type TokenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTokenStorage creates a new TokenStorage instance
func NewTokenStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TokenStorage {
	return &TokenStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TokenStorage) RevokeToken(ctx context.Context, token *models.RevokedToken) error {
	if token.TokenHash == "" {
		return fmt.Errorf("token hash is required")
	}
	if token.RevokedAt.IsZero() {
		token.RevokedAt = time.Now().UTC()
	}
	if err := s.db.Store().Upsert(token.TokenHash, token); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

func (s *TokenStorage) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var token models.RevokedToken
	if err := s.db.Store().Get(tokenHash, &token); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get revoked token: %w", err)
	}
	return true, nil
}

func (s *TokenStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := badgerhold.Where("ExpiresAt").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		expiresAt, ok := ra.Field().(time.Time)
		if !ok {
			return false, nil
		}
		return expiresAt.Before(now), nil
	})

	var expired []models.RevokedToken
	if err := s.db.Store().Find(&expired, query); err != nil {
		return 0, fmt.Errorf("failed to find expired tokens: %w", err)
	}

	for _, token := range expired {
		if err := s.db.Store().Delete(token.TokenHash, &models.RevokedToken{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return 0, fmt.Errorf("failed to delete expired token: %w", err)
		}
	}

	if len(expired) > 0 {
		s.logger.Debug().Int("count", len(expired)).Msg("Purged expired revoked tokens")
	}
	return len(expired), nil
}
