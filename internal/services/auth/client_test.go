package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

// newFakeProvider serves token, userinfo and revoke endpoints
func newFakeProvider(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	revoked := []string{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-123",
			"id_token":      "id-456",
			"refresh_token": "refresh-789",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/oauth2/userInfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":            "sub-1",
			"given_name":     "Ada",
			"family_name":    "Lovelace",
			"username":       "ada",
			"email":          "ada@example.com",
			"email_verified": "true",
		})
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		token := r.Form.Get("token")
		if token == "unrevokable" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		revoked = append(revoked, token)
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &revoked
}

func providerConfig(baseURL string) *common.AuthConfig {
	return &common.AuthConfig{
		ClientID:    testClientID,
		AuthURL:     baseURL + "/oauth2/authorize",
		TokenURL:    baseURL + "/oauth2/token",
		UserInfoURL: baseURL + "/oauth2/userInfo",
		RevokeURL:   baseURL + "/oauth2/revoke",
		RedirectURI: "http://localhost:8000/callback",
	}
}

func TestClient_ExchangeCode(t *testing.T) {
	server, _ := newFakeProvider(t)
	client := NewClient(providerConfig(server.URL), arbor.NewLogger())

	tokens, err := client.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-123", tokens.AccessToken)
	assert.Equal(t, "id-456", tokens.IDToken)
	assert.Equal(t, "refresh-789", tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.False(t, tokens.Expiry.IsZero())

	_, err = client.ExchangeCode(context.Background(), "bad-code")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCode)

	_, err = client.ExchangeCode(context.Background(), "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCode)
}

func TestClient_UserInfo(t *testing.T) {
	server, _ := newFakeProvider(t)
	client := NewClient(providerConfig(server.URL), arbor.NewLogger())

	info, err := client.UserInfo(context.Background(), "access-123")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", info.Sub)
	assert.Equal(t, "ada", info.Username)
	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, "Ada", info.GivenName)
	assert.Equal(t, "Lovelace", info.FamilyName)

	_, err = client.UserInfo(context.Background(), "stolen")
	assert.ErrorIs(t, err, interfaces.ErrUserInfo)
}

func TestClient_Revoke(t *testing.T) {
	server, revoked := newFakeProvider(t)
	client := NewClient(providerConfig(server.URL), arbor.NewLogger())

	require.NoError(t, client.Revoke(context.Background(), "access-123"))
	assert.Equal(t, []string{"access-123"}, *revoked)

	err := client.Revoke(context.Background(), "unrevokable")
	assert.ErrorIs(t, err, interfaces.ErrRevokeFailed)

	noRemote := NewClient(&common.AuthConfig{}, arbor.NewLogger())
	assert.NoError(t, noRemote.Revoke(context.Background(), "anything"))
}
