package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/interfaces"
)

const (
	MsgLoginSuccessful   = "Login successful."
	MsgLogoutSuccessful  = "Logout successful."
	MsgCodeRequired      = "Field required: code"
	MsgInvalidCode       = "Invalid authorization code."
	MsgUserInfoFailed    = "Failed to retrieve user information."
	MsgSignInFailed      = "An error occurred during sign-in."
	MsgUserLookupFailed  = "Error retrieving user information."
	MsgLogoutFailed      = "Failed to log out. Please try again."
	MsgLogoutServerError = "An internal server error occurred during logout. Please try again later."
)

// SignInRequest is the body of POST /api/auth/signin
type SignInRequest struct {
	Code string `json:"code"`
}

// AuthHandler serves sign-in, profile and sign-out
type AuthHandler struct {
	sessions interfaces.SessionService
	auth     *Authenticator
	logger   arbor.ILogger
}

func NewAuthHandler(sessions interfaces.SessionService, authenticator *Authenticator, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		auth:     authenticator,
		logger:   logger,
	}
}

// SignInHandler exchanges an authorization code for tokens and registers the user on first sign-in
func (h *AuthHandler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		WriteError(w, http.StatusUnprocessableEntity, MsgCodeRequired)
		return
	}

	tokens, err := h.sessions.SignIn(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrInvalidCode):
			h.logger.Warn().Err(err).Msg("Sign-in rejected")
			WriteError(w, http.StatusUnauthorized, MsgInvalidCode)
		case errors.Is(err, interfaces.ErrUserInfo):
			h.logger.Warn().Err(err).Msg("Sign-in rejected")
			WriteError(w, http.StatusBadRequest, MsgUserInfoFailed)
		default:
			h.logger.Error().Err(err).Msg("Unexpected error during sign-in")
			WriteError(w, http.StatusInternalServerError, MsgSignInFailed)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":   tokens,
		"message": MsgLoginSuccessful,
	})
}

// MeHandler returns the authenticated user's account
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	claims, _, ok := h.auth.Claims(w, r)
	if !ok {
		return
	}

	user, err := h.auth.users.GetUser(r.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			WriteError(w, http.StatusNotFound, MsgUserNotFound)
			return
		}
		h.logger.Error().Err(err).Str("username", claims.Username).Msg("Error retrieving user info")
		WriteError(w, http.StatusInternalServerError, MsgUserLookupFailed)
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

// LogoutHandler revokes the caller's token
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	claims, rawToken, ok := h.auth.Claims(w, r)
	if !ok {
		return
	}

	if err := h.sessions.SignOut(r.Context(), rawToken, claims); err != nil {
		if errors.Is(err, interfaces.ErrRevokeFailed) {
			WriteError(w, http.StatusBadRequest, MsgLogoutFailed)
			return
		}
		h.logger.Error().Err(err).Msg("Logout failed")
		WriteError(w, http.StatusInternalServerError, MsgLogoutServerError)
		return
	}

	WriteMessage(w, http.StatusOK, MsgLogoutSuccessful)
}
