package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// ApplicationRepo is the authoritative record of submitted applications.
type ApplicationRepo struct{ Pool PgxPool }

// NewApplicationRepo constructs an ApplicationRepo with the given pool.
func NewApplicationRepo(p PgxPool) *ApplicationRepo { return &ApplicationRepo{Pool: p} }

// Exists reports whether an application for the pair is already recorded.
func (r *ApplicationRepo) Exists(ctx domain.Context, vacancyID, resumeID string) (bool, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Exists")
	defer span.End()
	q := `SELECT 1 FROM application_history WHERE vacancy_id=$1 AND resume_id=$2 LIMIT 1`
	var one int
	if err := r.Pool.QueryRow(ctx, q, vacancyID, resumeID).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("op=applications.exists: %w", err)
	}
	return true, nil
}

// Record appends one application row.
func (r *ApplicationRepo) Record(ctx domain.Context, a domain.Application) error {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Record")
	defer span.End()
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	applied := a.AppliedAt
	if applied.IsZero() {
		applied = time.Now().UTC()
	}
	status := a.Status
	if status == "" {
		status = domain.ApplySuccess
	}
	q := `INSERT INTO application_history (id, vacancy_id, resume_id, user_id, applied_at, status, hh_response)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7)`
	if _, err := r.Pool.Exec(ctx, q, id, a.VacancyID, a.ResumeID, a.UserID, applied, status, a.BoardResponse); err != nil {
		return fmt.Errorf("op=applications.record: %w", err)
	}
	return nil
}
