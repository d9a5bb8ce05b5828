package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Authentication
	mux.HandleFunc("/api/auth/signin", s.app.AuthHandler.SignInHandler) // POST - exchange authorization code
	mux.HandleFunc("/api/auth/me", s.app.AuthHandler.MeHandler)         // GET - current user
	mux.HandleFunc("/api/auth/logout", s.app.AuthHandler.LogoutHandler) // GET - revoke token

	// API routes - Tasks
	mux.HandleFunc("/api/tasks", s.handleTasksRoute)                          // GET (list), POST (create)
	mux.HandleFunc("/api/tasks/export", s.app.TaskHandler.ExportTasksHandler) // GET - report download
	mux.HandleFunc("/api/tasks/", s.handleTaskRoutes)                         // GET/PUT/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Everything else under /api is a JSON 404
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleTasksRoute routes /api/tasks by method
func (s *Server) handleTasksRoute(w http.ResponseWriter, r *http.Request) {
	methods{
		http.MethodGet:  s.app.TaskHandler.ListTasksHandler,
		http.MethodPost: s.app.TaskHandler.CreateTaskHandler,
	}.ServeHTTP(w, r)
}

// handleTaskRoutes routes /api/tasks/{id}; deeper paths are not found
func (s *Server) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	if _, ok := taskID(r.URL.Path); !ok {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	methods{
		http.MethodGet:    s.app.TaskHandler.GetTaskHandler,
		http.MethodPut:    s.app.TaskHandler.UpdateTaskHandler,
		http.MethodDelete: s.app.TaskHandler.DeleteTaskHandler,
	}.ServeHTTP(w, r)
}
