package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/models"
	"github.com/ternarybob/tasker/internal/services/events"
	"github.com/ternarybob/tasker/internal/services/export"
	"github.com/ternarybob/tasker/internal/services/tasks"
	"github.com/ternarybob/tasker/internal/services/users"
	"github.com/ternarybob/tasker/internal/storage/badger"
)

// staticVerifier accepts a fixed set of tokens
type staticVerifier map[string]*interfaces.Claims

func (v staticVerifier) Verify(ctx context.Context, rawToken string) (*interfaces.Claims, error) {
	if claims, ok := v[rawToken]; ok {
		return claims, nil
	}
	return nil, interfaces.ErrInvalidToken
}

// MockSessionService is a mock implementation of interfaces.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) SignIn(ctx context.Context, code string) (*interfaces.TokenSet, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TokenSet), args.Error(1)
}

func (m *MockSessionService) SignOut(ctx context.Context, rawToken string, claims *interfaces.Claims) error {
	return m.Called(ctx, rawToken, claims).Error(0)
}

type testEnv struct {
	events   interfaces.EventService
	users    *users.Service
	tasks    *tasks.Service
	auth     *Authenticator
	sessions *MockSessionService
	taskH    *TaskHandler
	authH    *AuthHandler
}

const (
	aliceToken   = "alice-token"
	bobToken     = "bob-token"
	ghostToken   = "ghost-token"
	aliceID      = "sub-alice"
	bobID        = "sub-bob"
	futureString = "2999-01-01T00:00:00Z"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := arbor.NewLogger()

	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	eventService := events.NewService(logger)
	t.Cleanup(func() { _ = eventService.Close() })

	userService := users.NewService(manager.UserStorage(), logger)
	taskService := tasks.NewService(manager.TaskStorage(), eventService, logger)

	ctx := context.Background()
	_, err = userService.CreateUser(ctx, &models.UserCreate{ID: aliceID, Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	_, err = userService.CreateUser(ctx, &models.UserCreate{ID: bobID, Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour)
	verifier := staticVerifier{
		aliceToken: {Subject: aliceID, Username: "alice", ExpiresAt: expires},
		bobToken:   {Subject: bobID, Username: "bob", ExpiresAt: expires},
		ghostToken: {Subject: "sub-ghost", Username: "ghost", ExpiresAt: expires},
	}

	authenticator := NewAuthenticator(verifier, userService, logger)
	sessions := new(MockSessionService)

	return &testEnv{
		events:   eventService,
		users:    userService,
		tasks:    taskService,
		auth:     authenticator,
		sessions: sessions,
		taskH:    NewTaskHandler(taskService, export.NewService(taskService, logger), authenticator, logger),
		authH:    NewAuthHandler(sessions, authenticator, logger),
	}
}

func newRequest(method, path, token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) *models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	return &task
}
