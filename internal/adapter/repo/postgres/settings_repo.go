package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// SettingsRepo persists per-user scheduler settings.
type SettingsRepo struct{ Pool PgxPool }

// NewSettingsRepo constructs a SettingsRepo with the given pool.
func NewSettingsRepo(p PgxPool) *SettingsRepo { return &SettingsRepo{Pool: p} }

const settingsCols = `user_id, enabled, schedule_hour, schedule_minute, schedule_days, timezone,
	max_applications_per_run, COALESCE(resume_id,''), search_criteria,
	last_run_at, COALESCE(last_run_status,''), last_run_applications, total_applications,
	created_at, updated_at`

func scanSettings(row pgx.Row) (domain.SchedulerSettings, error) {
	var s domain.SchedulerSettings
	var criteria []byte
	if err := row.Scan(&s.UserID, &s.Enabled, &s.ScheduleHour, &s.ScheduleMinute, &s.ScheduleDays, &s.Timezone,
		&s.MaxApplicationsPerRun, &s.ResumeID, &criteria,
		&s.LastRunAt, &s.LastRunStatus, &s.LastRunApplications, &s.TotalApplications,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.SchedulerSettings{}, err
	}
	if len(criteria) > 0 {
		var sc domain.SearchCriteria
		if err := json.Unmarshal(criteria, &sc); err != nil {
			return domain.SchedulerSettings{}, fmt.Errorf("decode search_criteria: %w", err)
		}
		s.SearchCriteria = &sc
	}
	return s, nil
}

// Get loads settings for one user.
func (r *SettingsRepo) Get(ctx domain.Context, userID string) (domain.SchedulerSettings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Get")
	defer span.End()
	q := `SELECT ` + settingsCols + ` FROM scheduler_settings WHERE user_id=$1`
	s, err := scanSettings(r.Pool.QueryRow(ctx, q, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SchedulerSettings{}, fmt.Errorf("op=settings.get: %w", domain.ErrNotFound)
		}
		return domain.SchedulerSettings{}, fmt.Errorf("op=settings.get: %w", err)
	}
	return s, nil
}

// Upsert inserts or updates the settings row and returns the stored value.
func (r *SettingsRepo) Upsert(ctx domain.Context, s domain.SchedulerSettings) (domain.SchedulerSettings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Upsert")
	defer span.End()
	var criteria []byte
	if s.SearchCriteria != nil {
		b, err := json.Marshal(s.SearchCriteria)
		if err != nil {
			return domain.SchedulerSettings{}, fmt.Errorf("op=settings.upsert: %w", err)
		}
		criteria = b
	}
	now := time.Now().UTC()
	q := `INSERT INTO scheduler_settings
		(user_id, enabled, schedule_hour, schedule_minute, schedule_days, timezone,
		 max_applications_per_run, resume_id, search_criteria, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$10)
		ON CONFLICT (user_id) DO UPDATE SET
		 enabled=EXCLUDED.enabled,
		 schedule_hour=EXCLUDED.schedule_hour,
		 schedule_minute=EXCLUDED.schedule_minute,
		 schedule_days=EXCLUDED.schedule_days,
		 timezone=EXCLUDED.timezone,
		 max_applications_per_run=EXCLUDED.max_applications_per_run,
		 resume_id=EXCLUDED.resume_id,
		 search_criteria=EXCLUDED.search_criteria,
		 updated_at=EXCLUDED.updated_at`
	_, err := r.Pool.Exec(ctx, q, s.UserID, s.Enabled, s.ScheduleHour, s.ScheduleMinute, s.ScheduleDays, s.Timezone,
		s.MaxApplicationsPerRun, s.ResumeID, criteria, now)
	if err != nil {
		return domain.SchedulerSettings{}, fmt.Errorf("op=settings.upsert: %w", err)
	}
	return r.Get(ctx, s.UserID)
}

// ListEnabled returns every settings row with enabled=true.
func (r *SettingsRepo) ListEnabled(ctx domain.Context) ([]domain.SchedulerSettings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.ListEnabled")
	defer span.End()
	q := `SELECT ` + settingsCols + ` FROM scheduler_settings WHERE enabled`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=settings.list_enabled: %w", err)
	}
	defer rows.Close()
	var out []domain.SchedulerSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("op=settings.list_enabled: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=settings.list_enabled: %w", err)
	}
	return out, nil
}

// RecordRunStats updates the last-run projection and accumulates totals.
func (r *SettingsRepo) RecordRunStats(ctx domain.Context, userID, status string, sent int) error {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.RecordRunStats")
	defer span.End()
	q := `UPDATE scheduler_settings SET
		 last_run_at=$2, last_run_status=$3, last_run_applications=$4,
		 total_applications=total_applications+$4, updated_at=$2
		WHERE user_id=$1`
	if _, err := r.Pool.Exec(ctx, q, userID, time.Now().UTC(), status, sent); err != nil {
		return fmt.Errorf("op=settings.record_run_stats: %w", err)
	}
	return nil
}
