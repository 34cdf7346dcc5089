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

func settingsRow(criteria []byte) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now().UTC()
		*(dest[0].(*string)) = "u1"
		*(dest[1].(*bool)) = true
		*(dest[2].(*int)) = 9
		*(dest[3].(*int)) = 30
		*(dest[4].(*string)) = "mon,tue,wed,thu,fri"
		*(dest[5].(*string)) = "Europe/Moscow"
		*(dest[6].(*int)) = 10
		*(dest[7].(*string)) = "r1"
		*(dest[8].(*[]byte)) = criteria
		*(dest[9].(**time.Time)) = nil
		*(dest[10].(*string)) = ""
		*(dest[11].(*int)) = 0
		*(dest[12].(*int)) = 0
		*(dest[13].(*time.Time)) = now
		*(dest[14].(*time.Time)) = now
		return nil
	}
}

func TestSettingsRepo_Get(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{row: rowStub{scan: settingsRow([]byte(`{"position":"Go developer","remote_only":true}`))}}
	s, err := postgres.NewSettingsRepo(pool).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.Enabled)
	assert.Equal(t, "r1", s.ResumeID)
	require.NotNil(t, s.SearchCriteria)
	assert.Equal(t, "Go developer", s.SearchCriteria.Position)
	assert.True(t, s.SearchCriteria.RemoteOnly)

	// No criteria stored leaves the pointer nil.
	pool = &poolStub{row: rowStub{scan: settingsRow(nil)}}
	s, err = postgres.NewSettingsRepo(pool).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, s.SearchCriteria)

	pool = &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	_, err = postgres.NewSettingsRepo(pool).Get(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pool = &poolStub{row: rowStub{scan: settingsRow([]byte(`{broken`))}}
	_, err = postgres.NewSettingsRepo(pool).Get(ctx, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_criteria")
}

func TestSettingsRepo_Upsert(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{row: rowStub{scan: settingsRow(nil)}}
	s, err := postgres.NewSettingsRepo(pool).Upsert(ctx, domain.SchedulerSettings{
		UserID:  "u1",
		Enabled: true,
		SearchCriteria: &domain.SearchCriteria{
			Position: "Go developer",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	require.Len(t, pool.execArgs, 1)
	// The criteria JSON travels as the ninth placeholder.
	assert.Contains(t, string(pool.execArgs[0][8].([]byte)), `"position":"Go developer"`)

	pool = &poolStub{execErr: assert.AnError}
	_, err = postgres.NewSettingsRepo(pool).Upsert(ctx, domain.SchedulerSettings{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=settings.upsert")
}

func TestSettingsRepo_ListEnabled(t *testing.T) {
	rows := &rowsStub{rows: []func(dest ...any) error{settingsRow(nil)}}
	pool := &poolStub{rows: rows}
	out, err := postgres.NewSettingsRepo(pool).ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "u1", out[0].UserID)
	assert.True(t, rows.closed)

	pool = &poolStub{queryErr: assert.AnError}
	_, err = postgres.NewSettingsRepo(pool).ListEnabled(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=settings.list_enabled")
}

func TestSettingsRepo_RecordRunStats(t *testing.T) {
	pool := &poolStub{}
	err := postgres.NewSettingsRepo(pool).RecordRunStats(context.Background(), "u1", domain.RunCompleted, 4)
	require.NoError(t, err)
	require.Len(t, pool.execArgs, 1)
	assert.Equal(t, "u1", pool.execArgs[0][0])
	assert.Equal(t, domain.RunCompleted, pool.execArgs[0][2])
	assert.Equal(t, 4, pool.execArgs[0][3])

	pool.execErr = assert.AnError
	err = postgres.NewSettingsRepo(pool).RecordRunStats(context.Background(), "u1", domain.RunFailed, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=settings.record_run_stats")
}
