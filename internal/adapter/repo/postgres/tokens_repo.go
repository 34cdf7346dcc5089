package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// TokenRepo stores board OAuth tokens. The most recent row wins; Save
// replaces all previous rows in one transaction so partial states cannot
// be observed.
type TokenRepo struct{ Pool PgxPool }

// NewTokenRepo constructs a TokenRepo with the given pool.
func NewTokenRepo(p PgxPool) *TokenRepo { return &TokenRepo{Pool: p} }

// Save deletes existing tokens and inserts the new one.
func (r *TokenRepo) Save(ctx domain.Context, t domain.Token) (domain.Token, error) {
	tracer := otel.Tracer("repo.tokens")
	ctx, span := tracer.Start(ctx, "tokens.Save")
	defer span.End()
	if t.ObtainedAt.IsZero() {
		t.ObtainedAt = time.Now().UTC()
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Token{}, fmt.Errorf("op=tokens.save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM hh_tokens`); err != nil {
		return domain.Token{}, fmt.Errorf("op=tokens.save: %w", err)
	}
	q := `INSERT INTO hh_tokens (access_token, refresh_token, expires_in, obtained_at) VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, q, t.AccessToken, t.RefreshToken, t.ExpiresIn, t.ObtainedAt.UTC()); err != nil {
		return domain.Token{}, fmt.Errorf("op=tokens.save: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Token{}, fmt.Errorf("op=tokens.save: %w", err)
	}
	return t, nil
}

// GetLatest returns the most recently obtained token.
func (r *TokenRepo) GetLatest(ctx domain.Context) (domain.Token, error) {
	tracer := otel.Tracer("repo.tokens")
	ctx, span := tracer.Start(ctx, "tokens.GetLatest")
	defer span.End()
	q := `SELECT access_token, refresh_token, expires_in, obtained_at
		FROM hh_tokens ORDER BY obtained_at DESC LIMIT 1`
	var t domain.Token
	if err := r.Pool.QueryRow(ctx, q).Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresIn, &t.ObtainedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Token{}, fmt.Errorf("op=tokens.get_latest: %w", domain.ErrNotFound)
		}
		return domain.Token{}, fmt.Errorf("op=tokens.get_latest: %w", err)
	}
	return t, nil
}
