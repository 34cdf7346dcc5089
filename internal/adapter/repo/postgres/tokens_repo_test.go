package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

func TestTokenRepo_Save(t *testing.T) {
	tx := &txStub{}
	pool := &poolStub{tx: tx}
	saved, err := postgres.NewTokenRepo(pool).Save(context.Background(), domain.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresIn:    3600,
	})
	require.NoError(t, err)
	assert.Equal(t, "at", saved.AccessToken)
	assert.False(t, saved.ObtainedAt.IsZero())

	// Delete then insert, then commit; the deferred rollback is a no-op.
	require.Len(t, tx.execs, 2)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestTokenRepo_SaveBeginFailure(t *testing.T) {
	pool := &poolStub{beginErr: assert.AnError}
	_, err := postgres.NewTokenRepo(pool).Save(context.Background(), domain.Token{AccessToken: "at"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=tokens.save")
}

func TestTokenRepo_SaveExecFailureRollsBack(t *testing.T) {
	tx := &txStub{execErr: assert.AnError}
	pool := &poolStub{tx: tx}
	_, err := postgres.NewTokenRepo(pool).Save(context.Background(), domain.Token{AccessToken: "at"})
	require.Error(t, err)
	assert.Zero(t, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestTokenRepo_GetLatest(t *testing.T) {
	ctx := context.Background()

	obtained := time.Now().UTC().Add(-time.Hour)
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "at"
		*(dest[1].(*string)) = "rt"
		*(dest[2].(*int)) = 3600
		*(dest[3].(*time.Time)) = obtained
		return nil
	}}}
	tok, err := postgres.NewTokenRepo(pool).GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, obtained, tok.ObtainedAt)

	pool = &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	_, err = postgres.NewTokenRepo(pool).GetLatest(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
