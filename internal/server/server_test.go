package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/app"
	"github.com/ternarybob/tasker/internal/common"
)

const (
	testKID      = "server-test-key"
	testClientID = "tasker-client"
)

// fakeIdentityProvider issues RS256 access tokens for the code "good-code"
type fakeIdentityProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newFakeIdentityProvider(t *testing.T) *fakeIdentityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &fakeIdentityProvider{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKID,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": idp.sign(t),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/userInfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":         "sub-ada",
			"given_name":  "Ada",
			"family_name": "Lovelace",
			"username":    "ada",
			"email":       "ada@example.com",
		})
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (p *fakeIdentityProvider) sign(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":       "sub-ada",
		"username":  "ada",
		"iss":       p.server.URL,
		"client_id": testClientID,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"jti":       time.Now().Format(time.RFC3339Nano),
	})
	token.Header["kid"] = testKID
	raw, err := token.SignedString(p.key)
	require.NoError(t, err)
	return raw
}

func newTestServer(t *testing.T, mutate func(cfg *common.Config)) *httptest.Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "data")
	cfg.Scheduler.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ts := httptest.NewServer(New(application).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := do(t, "GET", ts.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "badger", health["storage"])

	// Security headers from the secure middleware
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp, body = do(t, "GET", ts.URL+"/api/version", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), common.GetVersion())
}

func TestRouting_NotFoundAndMethod(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := do(t, "GET", ts.URL+"/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Not Found"}`, string(body))

	resp, _ = do(t, "GET", ts.URL+"/api/tasks/a/b", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, "PATCH", ts.URL+"/api/tasks", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, POST", resp.Header.Get("Allow"))
	assert.JSONEq(t, `{"detail":"Method Not Allowed"}`, string(body))

	resp, _ = do(t, "GET", ts.URL+"/api/tasks", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.Server.AllowedOrigins = []string{"https://app.example.com"}
	})

	req, err := http.NewRequest("OPTIONS", ts.URL+"/api/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.RateLimit = common.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.01, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		resp, _ := do(t, "GET", ts.URL+"/api/health", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := do(t, "GET", ts.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Too many requests."}`, string(body))
}

func TestTaskLifecycle(t *testing.T) {
	idp := newFakeIdentityProvider(t)
	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.Auth.Issuer = idp.server.URL
		cfg.Auth.ClientID = testClientID
		cfg.Auth.TokenURL = idp.server.URL + "/oauth2/token"
		cfg.Auth.UserInfoURL = idp.server.URL + "/oauth2/userInfo"
		cfg.Auth.RevokeURL = idp.server.URL + "/oauth2/revoke"
		cfg.Auth.RedirectURI = "http://localhost:8000/callback"
	})

	// Sign in
	resp, body := do(t, "POST", ts.URL+"/api/auth/signin", "", `{"code":"good-code"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var signIn struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &signIn))
	assert.Equal(t, "Login successful.", signIn.Message)
	token := signIn.Token.AccessToken
	require.NotEmpty(t, token)

	resp, body = do(t, "POST", ts.URL+"/api/auth/signin", "", `{"code":"bad-code"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Invalid authorization code."}`, string(body))

	// Profile
	resp, body = do(t, "GET", ts.URL+"/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"username":"ada"`)

	// Create
	resp, body = do(t, "POST", ts.URL+"/api/tasks", token, `{"title":"Write the analytical engine notes","priority":"high"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var task struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
		State  string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, "sub-ada", task.UserID)
	assert.Equal(t, "to_do", task.State)

	// Read and list
	resp, _ = do(t, "GET", ts.URL+"/api/tasks/"+task.ID, token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, "GET", ts.URL+"/api/tasks?priority=high", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), task.ID)

	// Update
	resp, body = do(t, "PUT", ts.URL+"/api/tasks/"+task.ID+"?timezone=UTC", token, `{"state":"done"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"state":"done"`)

	// Export
	resp, body = do(t, "GET", ts.URL+"/api/tasks/export?format=yaml", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "owner: ada")

	// Delete
	resp, _ = do(t, "DELETE", ts.URL+"/api/tasks/"+task.ID, token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, "GET", ts.URL+"/api/tasks/"+task.ID, token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Logout revokes the token locally
	resp, body = do(t, "GET", ts.URL+"/api/auth/logout", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"message":"Logout successful."}`, string(body))

	resp, body = do(t, "GET", ts.URL+"/api/auth/me", token, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"JWK invalid"}`, string(body))
}

func TestStartAndShutdown(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "data")
	cfg.Scheduler.Enabled = false

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := New(application)
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ := do(t, "GET", "http://"+srv.Addr()+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
