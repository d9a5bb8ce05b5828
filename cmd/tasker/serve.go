package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/app"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *serveOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  `Starts the Tasker API: task CRUD, sign-in through the identity provider, export, the WebSocket event stream and the background scheduler.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// instance is one running app and its HTTP server; a config reload swaps it for a new one
type instance struct {
	app   *app.App
	srv   *server.Server
	errCh chan error
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Startup order: config (defaults -> files -> env) -> CLI flags -> logger -> banner
	paths := resolveConfigPaths(opts.configFiles)
	cfg, err := loadConfig(paths, opts)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", paths).Err(err).Msg("Failed to load configuration")
		return err
	}

	logger := common.SetupLogger(cfg)
	common.InstallCrashHandler(cfg.Logging.Dir)
	common.PrintBanner(cfg, logger)

	logger.Debug().
		Strs("config_files", paths).
		Str("storage_type", cfg.Storage.Type).
		Str("log_level", cfg.Logging.Level).
		Strs("log_output", cfg.Logging.Output).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("reload", opts.reload).
		Msg("Resolved configuration")

	inst, err := startInstance(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloadCh := make(chan struct{}, 1)
	if opts.reload {
		watchConfig(ctx, paths, reloadCh, logger)
	}

	logger.Info().
		Str("url", fmt.Sprintf("http://%s", cfg.Address())).
		Msg("Server ready - Press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Interrupt signal received")
			err := inst.stop()
			logger.Info().Msg("Server stopped")
			return err

		case err := <-inst.errCh:
			logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
			_ = inst.app.Close()
			return err

		case <-reloadCh:
			next, err := loadConfig(paths, opts)
			if err != nil {
				logger.Error().Err(err).Msg("Config reload failed, keeping current configuration")
				continue
			}

			logger.Info().Strs("config_files", paths).Msg("Configuration changed, restarting")
			if err := inst.stop(); err != nil {
				logger.Warn().Err(err).Msg("Shutdown before reload reported errors")
			}

			logger = common.SetupLogger(next)
			inst, err = startInstance(next, logger)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to restart application after reload")
				return err
			}
			logger.Info().Str("address", next.Address()).Msg("Configuration reloaded")
		}
	}
}

func loadConfig(paths []string, opts *serveOptions) (*common.Config, error) {
	cfg, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, err
	}
	common.ApplyFlagOverrides(cfg, opts.port, opts.host)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func startInstance(cfg *common.Config, logger arbor.ILogger) (*instance, error) {
	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	inst := &instance{
		app:   application,
		srv:   server.New(application),
		errCh: make(chan error, 1),
	}

	common.SafeGo(logger, "httpServer", func() {
		if err := inst.srv.Start(); err != nil {
			inst.errCh <- err
		}
	})

	return inst, nil
}

// stop drains the HTTP server then releases the app's scheduler, event bus and storage
func (i *instance) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := i.srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := i.app.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func watchConfig(ctx context.Context, paths []string, reloadCh chan<- struct{}, logger arbor.ILogger) {
	if len(paths) == 0 {
		logger.Warn().Msg("--reload given but no config file is in use, nothing to watch")
		return
	}

	watcher, err := newConfigWatcher(paths, defaultDebounce, func() {
		select {
		case reloadCh <- struct{}{}:
		default:
		}
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Config watcher unavailable, reload disabled")
		return
	}

	common.SafeGo(logger, "configWatcher", func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Config watcher stopped")
		}
	})
	logger.Info().Strs("config_files", paths).Msg("Watching configuration for changes")
}
