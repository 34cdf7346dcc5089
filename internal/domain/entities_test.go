package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() SchedulerSettings {
	return SchedulerSettings{
		UserID:                "u1",
		Enabled:               true,
		ScheduleHour:          9,
		ScheduleMinute:        0,
		ScheduleDays:          "mon,tue,wed,thu,fri",
		Timezone:              "Europe/Moscow",
		MaxApplicationsPerRun: 10,
		SearchCriteria:        &SearchCriteria{Position: "Go developer"},
	}
}

func TestNewSchedulerSettings_Valid(t *testing.T) {
	s, err := NewSchedulerSettings(validSettings())
	require.NoError(t, err)
	assert.Equal(t, "mon,tue,wed,thu,fri", s.ScheduleDays)
}

func TestNewSchedulerSettings_DefaultsUserID(t *testing.T) {
	in := validSettings()
	in.UserID = ""
	s, err := NewSchedulerSettings(in)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserID, s.UserID)
}

func TestNewSchedulerSettings_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SchedulerSettings)
	}{
		{"hour out of range", func(s *SchedulerSettings) { s.ScheduleHour = 24 }},
		{"minute out of range", func(s *SchedulerSettings) { s.ScheduleMinute = 60 }},
		{"max too low", func(s *SchedulerSettings) { s.MaxApplicationsPerRun = 0 }},
		{"max too high", func(s *SchedulerSettings) { s.MaxApplicationsPerRun = 51 }},
		{"bad day", func(s *SchedulerSettings) { s.ScheduleDays = "mon,funday" }},
		{"empty timezone", func(s *SchedulerSettings) { s.Timezone = "" }},
		{"bad timezone", func(s *SchedulerSettings) { s.Timezone = "Mars/Olympus" }},
		{"enabled without criteria", func(s *SchedulerSettings) { s.SearchCriteria = nil }},
		{"enabled with blank position", func(s *SchedulerSettings) { s.SearchCriteria = &SearchCriteria{Position: "  "} }},
		{"bad experience level", func(s *SchedulerSettings) { s.SearchCriteria.ExperienceLevel = "senior" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSettings()
			tc.mutate(&in)
			_, err := NewSchedulerSettings(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestNewSchedulerSettings_DisabledWithoutCriteria(t *testing.T) {
	in := validSettings()
	in.Enabled = false
	in.SearchCriteria = nil
	_, err := NewSchedulerSettings(in)
	assert.NoError(t, err)
}

func TestNormalizeDays(t *testing.T) {
	got, err := NormalizeDays(" MON, wed ,fri ")
	require.NoError(t, err)
	assert.Equal(t, "mon,wed,fri", got)

	got, err = NormalizeDays("")
	require.NoError(t, err)
	assert.Equal(t, "mon,tue,wed,thu,fri", got)

	_, err = NormalizeDays("mon,xyz")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRunsOnWeekday(t *testing.T) {
	s := SchedulerSettings{ScheduleDays: "mon,sun"}
	assert.True(t, s.RunsOnWeekday(time.Monday))
	assert.True(t, s.RunsOnWeekday(time.Sunday))
	assert.False(t, s.RunsOnWeekday(time.Saturday))
	assert.Equal(t, []int{0, 6}, s.DayNumbers())
}

func TestTokenIsExpired(t *testing.T) {
	fresh := Token{ExpiresIn: 3600, ObtainedAt: time.Now()}
	assert.False(t, fresh.IsExpired(TokenExpiryBuffer))

	// Inside the 300 s safety buffer counts as expired.
	nearly := Token{ExpiresIn: 3600, ObtainedAt: time.Now().Add(-3400 * time.Second)}
	assert.True(t, nearly.IsExpired(TokenExpiryBuffer))

	stale := Token{ExpiresIn: 3600, ObtainedAt: time.Now().Add(-2 * time.Hour)}
	assert.True(t, stale.IsExpired(TokenExpiryBuffer))
}

func TestVacancyHelpers(t *testing.T) {
	v := Vacancy{Relations: []string{"favorited"}}
	assert.False(t, v.HasResponseRelation())
	v.Relations = append(v.Relations, "got_response")
	assert.True(t, v.HasResponseRelation())

	ext := Vacancy{Test: &TestInfo{URL: "https://other.example/test"}}
	assert.True(t, ext.RequiresExternalTest("hh.ru"))
	onBoard := Vacancy{Test: &TestInfo{URL: "https://hh.ru/test/1"}}
	assert.False(t, onBoard.RequiresExternalTest("hh.ru"))
	required := Vacancy{Test: &TestInfo{URL: "https://hh.ru/test/1", Required: true}}
	assert.True(t, required.RequiresExternalTest("hh.ru"))
	branded := Vacancy{BrandedTemplate: &BrandedTemplate{ExternalFormURL: "https://forms.example/x"}}
	assert.True(t, branded.RequiresExternalTest("hh.ru"))
}
