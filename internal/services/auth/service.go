package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
)

// Service signs users in through the identity provider and signs them out again
type Service struct {
	idp    interfaces.IdentityProvider
	users  interfaces.UserService
	tokens interfaces.TokenStorage
	logger arbor.ILogger
}

var _ interfaces.SessionService = (*Service)(nil)

// NewService creates a new session service
func NewService(idp interfaces.IdentityProvider, users interfaces.UserService, tokens interfaces.TokenStorage, logger arbor.ILogger) *Service {
	return &Service{
		idp:    idp,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// SignIn exchanges the code, reads the user's profile and registers the user on first sign-in
func (s *Service) SignIn(ctx context.Context, code string) (*interfaces.TokenSet, error) {
	tokens, err := s.idp.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := s.idp.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.EnsureUser(ctx, info)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrUserInfo, err)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User signed in")
	return tokens, nil
}

// SignOut revokes the token at the identity provider and blocks it locally until it expires
func (s *Service) SignOut(ctx context.Context, rawToken string, claims *interfaces.Claims) error {
	if err := s.idp.Revoke(ctx, rawToken); err != nil {
		s.logger.Warn().Err(err).Msg("Identity provider refused token revocation")
		return err
	}

	expiresAt := time.Now().UTC().Add(time.Hour)
	if claims != nil && !claims.ExpiresAt.IsZero() {
		expiresAt = claims.ExpiresAt
	}

	if err := s.tokens.RevokeToken(ctx, &models.RevokedToken{
		TokenHash: HashToken(rawToken),
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("failed to record revoked token: %w", err)
	}

	if claims != nil {
		s.logger.Info().Str("username", claims.Username).Msg("User signed out")
	}
	return nil
}
