package postgres

import (
	"context"
	"fmt"
)

// schemaDDL mirrors the migration tool's final state. EnsureSchema exists so
// a fresh deployment comes up without running migrations by hand; the
// statements are idempotent and never destructive.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS scheduler_settings (
    user_id TEXT PRIMARY KEY,
    enabled BOOLEAN NOT NULL DEFAULT FALSE,
    schedule_hour INT NOT NULL DEFAULT 9,
    schedule_minute INT NOT NULL DEFAULT 0,
    schedule_days TEXT NOT NULL DEFAULT 'mon,tue,wed,thu,fri',
    timezone TEXT NOT NULL DEFAULT 'Europe/Moscow',
    max_applications_per_run INT NOT NULL DEFAULT 10,
    resume_id TEXT,
    search_criteria JSONB,
    last_run_at TIMESTAMP,
    last_run_status TEXT,
    last_run_applications INT NOT NULL DEFAULT 0,
    total_applications INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
    updated_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
);
CREATE TABLE IF NOT EXISTS scheduler_run_history (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status TEXT NOT NULL,
    applications_sent INT NOT NULL DEFAULT 0,
    applications_skipped INT NOT NULL DEFAULT 0,
    applications_failed INT NOT NULL DEFAULT 0,
    error_message TEXT,
    details JSONB
);
CREATE INDEX IF NOT EXISTS idx_run_history_user_started
    ON scheduler_run_history (user_id, started_at DESC);
CREATE TABLE IF NOT EXISTS application_history (
    id UUID PRIMARY KEY,
    vacancy_id TEXT NOT NULL,
    resume_id TEXT NOT NULL,
    user_id TEXT,
    applied_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'success',
    hh_response JSONB
);
CREATE INDEX IF NOT EXISTS idx_application_history_pair
    ON application_history (vacancy_id, resume_id);
CREATE TABLE IF NOT EXISTS hh_tokens (
    id SERIAL PRIMARY KEY,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_in INT NOT NULL,
    obtained_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
);
CREATE TABLE IF NOT EXISTS auto_reply_settings (
    user_id TEXT PRIMARY KEY,
    enabled BOOLEAN NOT NULL DEFAULT FALSE,
    check_interval_minutes INT NOT NULL DEFAULT 60,
    timezone TEXT NOT NULL DEFAULT 'Europe/Moscow',
    active_hours_start INT NOT NULL DEFAULT 9,
    active_hours_end INT NOT NULL DEFAULT 21,
    active_days TEXT NOT NULL DEFAULT 'mon,tue,wed,thu,fri,sat,sun',
    auto_send BOOLEAN NOT NULL DEFAULT FALSE,
    last_check_at TIMESTAMP,
    total_replies_sent INT NOT NULL DEFAULT 0,
    total_messages_processed INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
    updated_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
);
CREATE TABLE IF NOT EXISTS auto_reply_history (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    negotiation_id TEXT NOT NULL,
    vacancy_id TEXT,
    employer_message TEXT NOT NULL,
    generated_reply TEXT NOT NULL,
    was_sent BOOLEAN NOT NULL DEFAULT FALSE,
    employer_name TEXT,
    vacancy_title TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
);
CREATE INDEX IF NOT EXISTS idx_auto_reply_history_user
    ON auto_reply_history (user_id, created_at DESC);
`

// EnsureSchema creates the tables this service owns if they do not exist.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("op=schema.ensure: %w", err)
	}
	return nil
}
