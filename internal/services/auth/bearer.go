package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrMissingCredentials is returned when no Authorization header was sent
	ErrMissingCredentials = errors.New("not authenticated")
	// ErrWrongScheme is returned when the Authorization header is not a Bearer token
	ErrWrongScheme = errors.New("wrong authentication method")
)

// ExtractBearer returns the token from an "Authorization: Bearer <token>" header value
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredentials
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrWrongScheme
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredentials
	}
	return token, nil
}

// HashToken returns the hex SHA-256 of a raw token, used as the revocation key
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
