// Package scheduler owns per-user cron jobs, mutual exclusion, cooperative
// cancellation, startup reconciliation, and missed-run catch-up.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
	"github.com/fairyhunter13/hh-autopilot/internal/usecase"
)

// catchUpWindow is how late a missed firing may be and still run at startup.
const catchUpWindow = 4 * time.Hour

// Status is the scheduler snapshot returned by GetStatus.
type Status struct {
	Running   bool       `json:"running"`
	Jobs      int        `json:"jobs"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// Service is the scheduling core. One instance per process; it owns the
// in-memory running and cancel flags, so all state transitions for a user's
// job go through it.
type Service struct {
	settings domain.SettingsRepository
	runs     domain.RunRepository
	pipeline *usecase.Pipeline
	log      *slog.Logger

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running map[string]bool
	cancel  map[string]bool
	started bool
}

// New constructs the Service. Call Start before anything else.
func New(settings domain.SettingsRepository, runs domain.RunRepository, pipeline *usecase.Pipeline, log *slog.Logger) *Service {
	return &Service{
		settings: settings,
		runs:     runs,
		pipeline: pipeline,
		log:      log,
		cron:     cron.New(),
		entries:  make(map[string]cron.EntryID),
		running:  make(map[string]bool),
		cancel:   make(map[string]bool),
	}
}

// Start reconciles stale runs, brings the trigger machinery up, installs a
// trigger per enabled user, and fires catch-up runs for schedules missed by
// less than the catch-up window.
func (s *Service) Start(ctx domain.Context) error {
	n, err := s.runs.MarkStaleRunning(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=scheduler.start: reconcile: %w", err)
	}
	if n > 0 {
		s.log.Warn("reconciled stale running rows", slog.Int64("count", n))
	}

	s.cron.Start()
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	enabled, err := s.settings.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("op=scheduler.start: load settings: %w", err)
	}
	for _, st := range enabled {
		if err := s.installTrigger(st); err != nil {
			s.log.Error("failed to install trigger",
				slog.String("user_id", st.UserID), slog.Any("error", err))
			continue
		}
		s.maybeCatchUp(ctx, st)
	}
	s.log.Info("scheduler started", slog.Int("jobs", len(enabled)))
	return nil
}

// Stop shuts the trigger machinery down without waiting for in-flight
// pipelines; they observe their cancel flag at the next checkpoint.
func (s *Service) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.log.Info("scheduler stopped")
}

// cronSpec renders the settings as a timezone-qualified cron expression.
func cronSpec(st domain.SchedulerSettings) string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * %s",
		st.Timezone, st.ScheduleMinute, st.ScheduleHour, st.ScheduleDays)
}

// installTrigger replaces the user's trigger with one matching the settings.
func (s *Service) installTrigger(st domain.SchedulerSettings) error {
	s.removeTrigger(st.UserID)
	userID := st.UserID
	snapshot := st
	id, err := s.cron.AddFunc(cronSpec(st), func() {
		s.runAutoApply(userID, snapshot, 0)
	})
	if err != nil {
		return fmt.Errorf("op=scheduler.install_trigger: %w", err)
	}
	s.mu.Lock()
	s.entries[userID] = id
	s.mu.Unlock()
	return nil
}

func (s *Service) removeTrigger(userID string) {
	s.mu.Lock()
	id, ok := s.entries[userID]
	if ok {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
	if ok {
		s.cron.Remove(id)
	}
}

// maybeCatchUp fires a run for a schedule whose instant already passed
// today, unless the miss is stale or a run already happened.
func (s *Service) maybeCatchUp(ctx domain.Context, st domain.SchedulerSettings) {
	loc, err := time.LoadLocation(st.Timezone)
	if err != nil {
		return
	}
	now := time.Now().In(loc)
	if !st.RunsOnWeekday(now.Weekday()) {
		return
	}
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), st.ScheduleHour, st.ScheduleMinute, 0, 0, loc)
	if now.Before(scheduled) {
		return
	}
	// Any run since the UTC midnight of the user's today means this firing
	// is already accounted for.
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ran, err := s.runs.HasRunSince(ctx, st.UserID, midnight)
	if err != nil {
		s.log.Warn("catch-up probe failed", slog.String("user_id", st.UserID), slog.Any("error", err))
		return
	}
	if ran {
		return
	}
	if now.Sub(scheduled) > catchUpWindow {
		s.log.Info("missed run too stale, skipping catch-up",
			slog.String("user_id", st.UserID), slog.Time("scheduled", scheduled))
		return
	}
	s.log.Info("firing catch-up run",
		slog.String("user_id", st.UserID), slog.Time("scheduled", scheduled))
	go s.runAutoApply(st.UserID, st, 0)
}

// UpdateSettings validates and upserts the settings and atomically swaps the
// user's trigger to match.
func (s *Service) UpdateSettings(ctx domain.Context, st domain.SchedulerSettings) (domain.SchedulerSettings, error) {
	st, err := domain.NewSchedulerSettings(st)
	if err != nil {
		return domain.SchedulerSettings{}, err
	}
	saved, err := s.settings.Upsert(ctx, st)
	if err != nil {
		return domain.SchedulerSettings{}, err
	}
	if saved.Enabled {
		if err := s.installTrigger(saved); err != nil {
			return domain.SchedulerSettings{}, err
		}
	} else {
		s.removeTrigger(saved.UserID)
	}
	return saved, nil
}

// GetSettings returns the stored settings plus the live trigger's next fire
// time, which accounts for DST in a way the raw cron spec cannot.
func (s *Service) GetSettings(ctx domain.Context, userID string) (domain.SchedulerSettings, *time.Time, error) {
	st, err := s.settings.Get(ctx, userID)
	if err != nil {
		return domain.SchedulerSettings{}, nil, err
	}
	return st, s.nextRun(userID), nil
}

func (s *Service) nextRun(userID string) *time.Time {
	s.mu.Lock()
	id, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	e := s.cron.Entry(id)
	if e.Next.IsZero() {
		return nil
	}
	next := e.Next
	return &next
}

// TriggerManualRun starts a pipeline for the user now. maxApplications
// overrides the stored per-run cap when positive.
func (s *Service) TriggerManualRun(ctx domain.Context, userID string, maxApplications int) error {
	s.mu.Lock()
	alreadyRunning := s.running[userID]
	s.mu.Unlock()
	if alreadyRunning {
		return fmt.Errorf("op=scheduler.trigger_manual: job already running: %w", domain.ErrConflict)
	}
	st, err := s.settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st.SearchCriteria == nil || st.SearchCriteria.Position == "" {
		return fmt.Errorf("op=scheduler.trigger_manual: settings have no search criteria: %w", domain.ErrInvalidArgument)
	}
	go s.runAutoApply(userID, st, maxApplications)
	return nil
}

// CancelRunningJob sets the user's cancel flag and reports whether a job was
// actually running.
func (s *Service) CancelRunningJob(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running[userID] {
		return false
	}
	s.cancel[userID] = true
	return true
}

// IsRunning reports whether the user has a pipeline in flight.
func (s *Service) IsRunning(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[userID]
}

// GetStatus snapshots the scheduler.
func (s *Service) GetStatus() Status {
	s.mu.Lock()
	started := s.started
	jobs := len(s.entries)
	s.mu.Unlock()

	var next *time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next == nil || e.Next.Before(*next) {
			n := e.Next
			next = &n
		}
	}
	return Status{Running: started, Jobs: jobs, NextRunAt: next}
}

// GetRunHistory returns the user's most recent runs, newest first.
func (s *Service) GetRunHistory(ctx domain.Context, userID string, limit int) ([]domain.RunHistory, error) {
	return s.runs.ListByUser(ctx, userID, limit)
}

// runAutoApply executes one pipeline run under the user's mutual-exclusion
// flag and persists progress through the run ledger.
func (s *Service) runAutoApply(userID string, st domain.SchedulerSettings, maxOverride int) {
	s.mu.Lock()
	if s.running[userID] {
		s.mu.Unlock()
		s.log.Info("run already in flight, skipping", slog.String("user_id", userID))
		return
	}
	s.running[userID] = true
	s.cancel[userID] = false
	s.mu.Unlock()

	// Both flags clear no matter how the run ends.
	defer func() {
		s.mu.Lock()
		delete(s.running, userID)
		delete(s.cancel, userID)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	log := s.log.With(slog.String("user_id", userID))

	maxApps := st.MaxApplicationsPerRun
	if maxOverride > 0 {
		maxApps = maxOverride
	}
	criteria := domain.SearchCriteria{}
	if st.SearchCriteria != nil {
		criteria = *st.SearchCriteria
	}
	resumeID := st.ResumeID
	if resumeID == "" {
		resumeID = criteria.ResumeID
	}

	runID, err := s.runs.Create(ctx, domain.RunHistory{
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Status:    domain.RunRunning,
	})
	if err != nil {
		log.Error("failed to create run row", slog.Any("error", err))
		return
	}
	log.Info("run started", slog.String("run_id", runID), slog.Int("max_applications", maxApps))

	events := s.pipeline.Run(ctx, usecase.PipelineParams{
		UserID:          userID,
		Criteria:        criteria,
		MaxApplications: maxApps,
		ResumeID:        resumeID,
		CancelRequested: func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.cancel[userID]
		},
	})

	var sent, skipped, failedN int
	var errMsg string
	var results []domain.ApplyResult
	// Cancellation is a normal way for a run to end; only the error event
	// marks the run failed.
	status := domain.RunCompleted

	for ev := range events {
		sent, skipped, failedN = ev.SuccessCount, ev.SkippedCount, ev.ErrorCount
		if ev.Result != nil {
			results = append(results, *ev.Result)
			if uerr := s.runs.UpdateCounters(ctx, runID, sent, skipped, failedN); uerr != nil {
				log.Warn("failed to persist run counters", slog.Any("error", uerr))
			}
		}
		switch ev.Event {
		case domain.EventError:
			status = domain.RunFailed
			errMsg = ev.Message
		case domain.EventCancelled:
			log.Info("run cancelled", slog.String("run_id", runID))
		}
	}

	details, merr := json.Marshal(map[string]any{"results": results})
	if merr != nil {
		details = nil
	}
	if ferr := s.runs.Finalize(ctx, runID, status, sent, skipped, failedN, errMsg, details); ferr != nil {
		log.Error("failed to finalize run", slog.Any("error", ferr))
	}
	if serr := s.settings.RecordRunStats(ctx, userID, status, sent); serr != nil {
		log.Error("failed to record run stats", slog.Any("error", serr))
	}
	log.Info("run finished",
		slog.String("run_id", runID), slog.String("status", status),
		slog.Int("sent", sent), slog.Int("skipped", skipped), slog.Int("failed", failedN))
}
