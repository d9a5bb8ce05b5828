package interfaces

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCode is returned when the identity provider rejects an authorization code
	ErrInvalidCode = errors.New("invalid authorization code")
	// ErrUserInfo is returned when the identity provider cannot describe the user
	ErrUserInfo = errors.New("failed to retrieve user information")
	// ErrInvalidToken is returned when a bearer token fails verification
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokeFailed is returned when the identity provider refuses to revoke a token
	ErrRevokeFailed = errors.New("failed to revoke token")
)

// Claims are the verified fields of a bearer token
type Claims struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
}

// TokenSet is the result of an authorization code exchange
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// UserInfo is the identity provider's description of the signed-in user
type UserInfo struct {
	Sub           string `json:"sub"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified,omitempty"`
}

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// IdentityProvider talks to the external OAuth2 authorization server
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
	Revoke(ctx context.Context, token string) error
}

// SessionService signs users in and out
type SessionService interface {
	SignIn(ctx context.Context, code string) (*TokenSet, error)
	SignOut(ctx context.Context, rawToken string, claims *Claims) error
}
