package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

type VersionResponse struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
}

// HealthResponse is the container smoke-test payload
type HealthResponse struct {
	Status           string `json:"status"`
	Storage          string `json:"storage"`
	SchedulerRunning bool   `json:"scheduler_running"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// APIHandler serves the unauthenticated system endpoints
type APIHandler struct {
	logger      arbor.ILogger
	storageType string
	scheduler   interfaces.SchedulerService
	startedAt   time.Time
}

func NewAPIHandler(storageType string, scheduler interfaces.SchedulerService, logger arbor.ILogger) *APIHandler {
	if storageType == "" {
		storageType = "badger"
	}
	return &APIHandler{
		logger:      logger,
		storageType: storageType,
		scheduler:   scheduler,
		startedAt:   time.Now(),
	}
}

func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, VersionResponse{
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		GitCommit: common.GetGitCommit(),
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		Storage:          h.storageType,
		SchedulerRunning: h.scheduler != nil && h.scheduler.IsRunning(),
		UptimeSeconds:    int64(time.Since(h.startedAt).Seconds()),
	})
}

// NotFoundHandler answers unknown routes with a JSON 404
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Route not found")
	WriteError(w, http.StatusNotFound, "Not Found")
}
