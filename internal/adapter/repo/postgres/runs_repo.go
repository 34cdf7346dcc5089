package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// RunRepo persists the scheduler run-history ledger.
type RunRepo struct{ Pool PgxPool }

// NewRunRepo constructs a RunRepo with the given pool.
func NewRunRepo(p PgxPool) *RunRepo { return &RunRepo{Pool: p} }

// Create inserts a new run row and returns its id.
func (r *RunRepo) Create(ctx domain.Context, h domain.RunHistory) (string, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.Create")
	defer span.End()
	id := h.ID
	if id == "" {
		id = uuid.New().String()
	}
	started := h.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	q := `INSERT INTO scheduler_run_history (id, user_id, started_at, status) VALUES ($1,$2,$3,$4)`
	if _, err := r.Pool.Exec(ctx, q, id, h.UserID, started, h.Status); err != nil {
		return "", fmt.Errorf("op=runs.create: %w", err)
	}
	return id, nil
}

// UpdateCounters writes all three counters in one statement. This is the
// Progress Ledger's single operation; a crash loses at most one vacancy's
// worth of counts.
func (r *RunRepo) UpdateCounters(ctx domain.Context, id string, sent, skipped, failed int) error {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.UpdateCounters")
	defer span.End()
	q := `UPDATE scheduler_run_history SET
		 applications_sent=$2, applications_skipped=$3, applications_failed=$4
		WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, sent, skipped, failed); err != nil {
		return fmt.Errorf("op=runs.update_counters: %w", err)
	}
	return nil
}

// Finalize closes out a run with its terminal status and detail payload.
func (r *RunRepo) Finalize(ctx domain.Context, id, status string, sent, skipped, failed int, errMsg string, details []byte) error {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.Finalize")
	defer span.End()
	q := `UPDATE scheduler_run_history SET
		 finished_at=$2, status=$3,
		 applications_sent=$4, applications_skipped=$5, applications_failed=$6,
		 error_message=NULLIF($7,''), details=$8
		WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, time.Now().UTC(), status, sent, skipped, failed, errMsg, details); err != nil {
		return fmt.Errorf("op=runs.finalize: %w", err)
	}
	return nil
}

// ListByUser returns the most recent runs for a user, newest first.
func (r *RunRepo) ListByUser(ctx domain.Context, userID string, limit int) ([]domain.RunHistory, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.ListByUser")
	defer span.End()
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, user_id, started_at, finished_at, status,
		 applications_sent, applications_skipped, applications_failed,
		 COALESCE(error_message,''), details
		FROM scheduler_run_history WHERE user_id=$1
		ORDER BY started_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=runs.list: %w", err)
	}
	defer rows.Close()
	var out []domain.RunHistory
	for rows.Next() {
		var h domain.RunHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.StartedAt, &h.FinishedAt, &h.Status,
			&h.ApplicationsSent, &h.ApplicationsSkipped, &h.ApplicationsFailed,
			&h.ErrorMessage, &h.Details); err != nil {
			return nil, fmt.Errorf("op=runs.list: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=runs.list: %w", err)
	}
	return out, nil
}

// HasRunSince reports whether any run for the user started at or after since.
func (r *RunRepo) HasRunSince(ctx domain.Context, userID string, since time.Time) (bool, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.HasRunSince")
	defer span.End()
	q := `SELECT 1 FROM scheduler_run_history WHERE user_id=$1 AND started_at >= $2 LIMIT 1`
	var one int
	if err := r.Pool.QueryRow(ctx, q, userID, since.UTC()).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("op=runs.has_run_since: %w", err)
	}
	return true, nil
}

// MarkStaleRunning rewrites running rows started before the cutoff to
// interrupted. Only the startup reconciler calls this; a live process never
// marks its own run interrupted.
func (r *RunRepo) MarkStaleRunning(ctx domain.Context, cutoff time.Time) (int64, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.MarkStaleRunning")
	defer span.End()
	q := `UPDATE scheduler_run_history SET status=$1, finished_at=$2
		WHERE status=$3 AND started_at < $4`
	tag, err := r.Pool.Exec(ctx, q, domain.RunInterrupted, time.Now().UTC(), domain.RunRunning, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=runs.mark_stale: %w", err)
	}
	return tag.RowsAffected(), nil
}
