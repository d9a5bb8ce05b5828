package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

const (
	JobOverdueTasks       = "overdue_tasks"
	JobPurgeRevokedTokens = "purge_revoked_tokens"

	jobTimeout  = 2 * time.Minute
	stopTimeout = 30 * time.Second
)

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func(ctx context.Context) error
	cronID      cron.EntryID
	lastRun     *time.Time
	lastError   string
	isRunning   bool
}

// Service runs periodic maintenance: overdue task announcements and revoked token cleanup
type Service struct {
	tasks    interfaces.TaskService
	tokens   interfaces.TokenStorage
	events   interfaces.EventService
	cron     *cron.Cron
	logger   arbor.ILogger
	clock    func() time.Time
	jobMu    sync.Mutex
	jobs     map[string]*jobEntry
	running  bool
	notified sync.Map // task IDs already announced as overdue
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates the scheduler and registers the configured jobs
func NewService(tasks interfaces.TaskService, tokens interfaces.TokenStorage, events interfaces.EventService, config *common.SchedulerConfig, logger arbor.ILogger) (*Service, error) {
	s := &Service{
		tasks:  tasks,
		tokens: tokens,
		events: events,
		cron:   cron.New(),
		logger: logger,
		clock:  time.Now,
		jobs:   make(map[string]*jobEntry),
	}

	if err := s.RegisterJob(JobOverdueTasks, config.OverdueSchedule, "Announce tasks that passed their deadline", func(ctx context.Context) error {
		_, err := s.CheckOverdue(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.RegisterJob(JobPurgeRevokedTokens, config.TokenPurgeSchedule, "Remove expired token revocations", func(ctx context.Context) error {
		_, err := s.PurgeRevokedTokens(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running registered jobs on their schedules
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	s.jobMu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn().Msg("Scheduler jobs did not finish within timeout")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(name, schedule, description string, handler func(ctx context.Context) error) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunJob(name); err != nil {
			s.logger.Error().Err(err).Str("job_name", name).Msg("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	s.jobs[name] = &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		cronID:      cronID,
	}

	s.logger.Debug().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// RunJob executes a registered job immediately; overlapping runs of the same job are skipped
func (s *Service) RunJob(name string) (err error) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job_name", name).Msg("Job already running, skipping")
		return nil
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", name, r)
		}

		now := s.clock()
		s.jobMu.Lock()
		entry.isRunning = false
		entry.lastRun = &now
		entry.lastError = ""
		if err != nil {
			entry.lastError = err.Error()
		}
		s.jobMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	return handler(ctx)
}

// CheckOverdue publishes task.overdue once for every newly overdue task and returns how many were announced
func (s *Service) CheckOverdue(ctx context.Context) (int, error) {
	overdue, err := s.tasks.OverdueTasks(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue tasks: %w", err)
	}

	announced := 0
	for _, task := range overdue {
		if _, seen := s.notified.LoadOrStore(task.ID, struct{}{}); seen {
			continue
		}
		if s.events != nil {
			if err := s.events.Publish(ctx, interfaces.TaskEvent{Type: interfaces.EventTaskOverdue, Task: task}); err != nil {
				s.notified.Delete(task.ID)
				s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to publish overdue event")
				continue
			}
		}
		announced++
	}

	if announced > 0 {
		s.logger.Info().Int("count", announced).Msg("Overdue tasks announced")
	}
	return announced, nil
}

// PurgeRevokedTokens removes revocations whose tokens have expired
func (s *Service) PurgeRevokedTokens(ctx context.Context) (int, error) {
	purged, err := s.tokens.PurgeExpired(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return purged, nil
}
