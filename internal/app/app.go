package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/handlers"
	"github.com/ternarybob/tasker/internal/interfaces"
	"github.com/ternarybob/tasker/internal/services/auth"
	"github.com/ternarybob/tasker/internal/services/events"
	"github.com/ternarybob/tasker/internal/services/export"
	"github.com/ternarybob/tasker/internal/services/scheduler"
	"github.com/ternarybob/tasker/internal/services/tasks"
	"github.com/ternarybob/tasker/internal/services/users"
	"github.com/ternarybob/tasker/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService

	// Domain services
	UserService   interfaces.UserService
	TaskService   interfaces.TaskService
	ExportService interfaces.ExportService

	// Authentication
	Verifier       interfaces.TokenVerifier
	SessionService interfaces.SessionService
	Authenticator  *handlers.Authenticator

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	AuthHandler *handlers.AuthHandler
	TaskHandler *handlers.TaskHandler
	WSHandler   *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Str("storage", storageType(cfg)).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("auth_configured", auth.JWKSURL(&cfg.Auth) != "").
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the configured storage backend
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", storageType(a.Config)).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes business services in dependency order
func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return err
	}

	a.UserService = users.NewService(a.StorageManager.UserStorage(), a.Logger)
	a.TaskService = tasks.NewService(a.StorageManager.TaskStorage(), a.EventService, a.Logger)
	a.ExportService = export.NewService(a.TaskService, a.Logger)

	verifier, err := auth.NewVerifier(a.ctx, &a.Config.Auth, a.StorageManager.TokenStorage(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	a.Verifier = verifier

	client := auth.NewClient(&a.Config.Auth, a.Logger)
	a.SessionService = auth.NewService(client, a.UserService, a.StorageManager.TokenStorage(), a.Logger)

	schedulerService, err := scheduler.NewService(
		a.TaskService,
		a.StorageManager.TokenStorage(),
		a.EventService,
		&a.Config.Scheduler,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	a.SchedulerService = schedulerService

	return nil
}

// initHandlers wires the HTTP handlers to the services
func (a *App) initHandlers() {
	a.Authenticator = handlers.NewAuthenticator(a.Verifier, a.UserService, a.Logger)
	a.APIHandler = handlers.NewAPIHandler(a.Config.Storage.Type, a.SchedulerService, a.Logger)
	a.AuthHandler = handlers.NewAuthHandler(a.SessionService, a.Authenticator, a.Logger)
	a.TaskHandler = handlers.NewTaskHandler(a.TaskService, a.ExportService, a.Authenticator, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Authenticator, a.Logger, &a.Config.WebSocket)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.WSHandler != nil {
		if err := a.WSHandler.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close WebSocket handler")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

func storageType(cfg *common.Config) string {
	if cfg.Storage.Type == "" {
		return "badger"
	}
	return cfg.Storage.Type
}
