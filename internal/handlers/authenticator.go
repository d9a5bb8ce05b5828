package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/ternarybob/tasker/internal/services/auth"
)

const (
	MsgNotAuthenticated    = "Not authenticated"
	MsgWrongAuthMethod     = "Wrong authentication method"
	MsgInvalidToken        = "JWK invalid"
	MsgUserNotFound        = "User not found."
	MsgAuthenticationError = "An error occurred while verifying credentials."
)

// Authenticator resolves the bearer token on a request to verified claims and the stored caller
type Authenticator struct {
	verifier interfaces.TokenVerifier
	users    interfaces.UserService
	logger   arbor.ILogger
}

func NewAuthenticator(verifier interfaces.TokenVerifier, users interfaces.UserService, logger arbor.ILogger) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Claims verifies the Authorization header. On failure the response is written and ok is false.
func (a *Authenticator) Claims(w http.ResponseWriter, r *http.Request) (claims *interfaces.Claims, rawToken string, ok bool) {
	rawToken, err := auth.ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		a.writeAuthError(w, err)
		return nil, "", false
	}
	return a.verify(w, r, rawToken)
}

// QueryClaims is Claims with a fallback to the ?token= query parameter, for clients that cannot set headers
func (a *Authenticator) QueryClaims(w http.ResponseWriter, r *http.Request) (*interfaces.Claims, bool) {
	if r.Header.Get("Authorization") == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			claims, _, ok := a.verify(w, r, token)
			return claims, ok
		}
	}
	claims, _, ok := a.Claims(w, r)
	return claims, ok
}

// CurrentUser verifies the token and loads the caller's account
func (a *Authenticator) CurrentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, _, ok := a.Claims(w, r)
	if !ok {
		return nil, false
	}
	return a.lookupUser(w, r, claims)
}

func (a *Authenticator) lookupUser(w http.ResponseWriter, r *http.Request, claims *interfaces.Claims) (*models.User, bool) {
	user, err := a.users.GetUser(r.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			a.logger.Warn().Str("username", claims.Username).Msg("User not found for token")
			WriteError(w, http.StatusNotFound, MsgUserNotFound)
			return nil, false
		}
		a.logger.Error().Err(err).Str("username", claims.Username).Msg("Failed to load user")
		WriteError(w, http.StatusInternalServerError, MsgAuthenticationError)
		return nil, false
	}
	return user, true
}

func (a *Authenticator) verify(w http.ResponseWriter, r *http.Request, rawToken string) (*interfaces.Claims, string, bool) {
	claims, err := a.verifier.Verify(r.Context(), rawToken)
	if err != nil {
		a.writeAuthError(w, err)
		return nil, "", false
	}
	return claims, rawToken, true
}

func (a *Authenticator) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		WriteError(w, http.StatusForbidden, MsgNotAuthenticated)
	case errors.Is(err, auth.ErrWrongScheme):
		WriteError(w, http.StatusForbidden, MsgWrongAuthMethod)
	case errors.Is(err, interfaces.ErrInvalidToken), errors.Is(err, interfaces.ErrTokenRevoked):
		a.logger.Debug().Err(err).Msg("Rejected bearer token")
		WriteError(w, http.StatusForbidden, MsgInvalidToken)
	default:
		a.logger.Error().Err(err).Msg("Token verification failed")
		WriteError(w, http.StatusInternalServerError, MsgAuthenticationError)
	}
}
