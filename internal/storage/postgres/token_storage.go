package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

// TokenStorage implements the TokenStorage interface for Postgres
type TokenStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// NewTokenStorage creates a new TokenStorage instance
func NewTokenStorage(db *PostgresDB, logger arbor.ILogger) interfaces.TokenStorage {
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
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at, revoked_at = EXCLUDED.revoked_at`,
		token.TokenHash, token.ExpiresAt, token.RevokedAt)
	if err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

func (s *TokenStorage) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := s.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`, tokenHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return exists, nil
}

func (s *TokenStorage) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	purged := int(tag.RowsAffected())
	if purged > 0 {
		s.logger.Debug().Int("count", purged).Msg("Purged expired revoked tokens")
	}
	return purged, nil
}
