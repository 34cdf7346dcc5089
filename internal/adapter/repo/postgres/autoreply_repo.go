package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// AutoReplyRepo persists auto-reply settings and generated-reply history.
type AutoReplyRepo struct{ Pool PgxPool }

// NewAutoReplyRepo constructs an AutoReplyRepo with the given pool.
func NewAutoReplyRepo(p PgxPool) *AutoReplyRepo { return &AutoReplyRepo{Pool: p} }

// GetSettings loads the auto-reply settings row for a user.
func (r *AutoReplyRepo) GetSettings(ctx domain.Context, userID string) (domain.AutoReplySettings, error) {
	tracer := otel.Tracer("repo.autoreply")
	ctx, span := tracer.Start(ctx, "autoreply.GetSettings")
	defer span.End()
	q := `SELECT user_id, enabled, check_interval_minutes, timezone,
		 active_hours_start, active_hours_end, active_days, auto_send,
		 last_check_at, total_replies_sent, total_messages_processed, created_at, updated_at
		FROM auto_reply_settings WHERE user_id=$1`
	var s domain.AutoReplySettings
	if err := r.Pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.Enabled, &s.CheckIntervalMinutes, &s.Timezone,
		&s.ActiveHoursStart, &s.ActiveHoursEnd, &s.ActiveDays, &s.AutoSend,
		&s.LastCheckAt, &s.TotalRepliesSent, &s.TotalMessagesProcessed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.AutoReplySettings{}, fmt.Errorf("op=autoreply.get_settings: %w", domain.ErrNotFound)
		}
		return domain.AutoReplySettings{}, fmt.Errorf("op=autoreply.get_settings: %w", err)
	}
	return s, nil
}

// UpsertSettings inserts or updates the auto-reply settings row.
func (r *AutoReplyRepo) UpsertSettings(ctx domain.Context, s domain.AutoReplySettings) (domain.AutoReplySettings, error) {
	tracer := otel.Tracer("repo.autoreply")
	ctx, span := tracer.Start(ctx, "autoreply.UpsertSettings")
	defer span.End()
	now := time.Now().UTC()
	q := `INSERT INTO auto_reply_settings
		(user_id, enabled, check_interval_minutes, timezone, active_hours_start, active_hours_end,
		 active_days, auto_send, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		ON CONFLICT (user_id) DO UPDATE SET
		 enabled=EXCLUDED.enabled,
		 check_interval_minutes=EXCLUDED.check_interval_minutes,
		 timezone=EXCLUDED.timezone,
		 active_hours_start=EXCLUDED.active_hours_start,
		 active_hours_end=EXCLUDED.active_hours_end,
		 active_days=EXCLUDED.active_days,
		 auto_send=EXCLUDED.auto_send,
		 updated_at=EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, s.UserID, s.Enabled, s.CheckIntervalMinutes, s.Timezone,
		s.ActiveHoursStart, s.ActiveHoursEnd, s.ActiveDays, s.AutoSend, now); err != nil {
		return domain.AutoReplySettings{}, fmt.Errorf("op=autoreply.upsert_settings: %w", err)
	}
	return r.GetSettings(ctx, s.UserID)
}

// AppendHistory records one generated reply.
func (r *AutoReplyRepo) AppendHistory(ctx domain.Context, h domain.AutoReplyHistory) error {
	tracer := otel.Tracer("repo.autoreply")
	ctx, span := tracer.Start(ctx, "autoreply.AppendHistory")
	defer span.End()
	id := h.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO auto_reply_history
		(id, user_id, negotiation_id, vacancy_id, employer_message, generated_reply, was_sent,
		 employer_name, vacancy_title, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10)`
	if _, err := r.Pool.Exec(ctx, q, id, h.UserID, h.NegotiationID, h.VacancyID, h.EmployerMessage,
		h.GeneratedReply, h.WasSent, h.EmployerName, h.VacancyTitle, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=autoreply.append_history: %w", err)
	}
	return nil
}

// ListHistory returns the most recent replies for a user, newest first.
func (r *AutoReplyRepo) ListHistory(ctx domain.Context, userID string, limit int) ([]domain.AutoReplyHistory, error) {
	tracer := otel.Tracer("repo.autoreply")
	ctx, span := tracer.Start(ctx, "autoreply.ListHistory")
	defer span.End()
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, user_id, negotiation_id, COALESCE(vacancy_id,''), employer_message, generated_reply,
		 was_sent, COALESCE(employer_name,''), COALESCE(vacancy_title,''), created_at
		FROM auto_reply_history WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=autoreply.list_history: %w", err)
	}
	defer rows.Close()
	var out []domain.AutoReplyHistory
	for rows.Next() {
		var h domain.AutoReplyHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.NegotiationID, &h.VacancyID, &h.EmployerMessage,
			&h.GeneratedReply, &h.WasSent, &h.EmployerName, &h.VacancyTitle, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=autoreply.list_history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=autoreply.list_history: %w", err)
	}
	return out, nil
}
