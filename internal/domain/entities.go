// Package domain holds the core entities, ports, and error taxonomy of the
// auto-apply engine. Adapters depend on this package, never the reverse.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAuthRequired    = errors.New("authentication required")
	ErrRateLimited     = errors.New("rate limited")
	ErrBlocked         = errors.New("blocked by anti-abuse protection")
	ErrUpstream        = errors.New("upstream error")
	ErrInternal        = errors.New("internal error")
)

// DefaultUserID is used for the single-user deployment this system targets.
// A user_id column exists everywhere so the data model does not need to
// change if multi-user support ever lands.
const DefaultUserID = "default"

// TokenExpiryBuffer is subtracted from the token lifetime so we refresh
// before the board actually rejects the token.
const TokenExpiryBuffer = 300 * time.Second

// Run statuses for SchedulerRunHistory rows.
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// SearchCriteria describes what vacancies to look for and how to apply.
type SearchCriteria struct {
	Position          string   `json:"position"`
	ResumeID          string   `json:"resume_id"`
	Skills            string   `json:"skills,omitempty"`
	Experience        string   `json:"experience,omitempty"`
	ExcludeCompanies  []string `json:"exclude_companies,omitempty"`
	SalaryMin         int      `json:"salary_min,omitempty"`
	RemoteOnly        bool     `json:"remote_only"`
	ExperienceLevel   string   `json:"experience_level,omitempty"`
	RequiredSkills    []string `json:"required_skills,omitempty"`
	ExcludedKeywords  []string `json:"excluded_keywords,omitempty"`
	EmploymentTypes   []string `json:"employment_types,omitempty"`
	PreferredSchedule []string `json:"preferred_schedule,omitempty"`
	UseCoverLetter    bool     `json:"use_cover_letter"`
}

// ExperienceLevels enumerates the board's experience filter values.
var ExperienceLevels = map[string]bool{
	"noExperience":  true,
	"between1And3":  true,
	"between3And6":  true,
	"moreThan6":     true,
}

// SchedulerSettings is the per-user scheduling configuration (one row per user).
type SchedulerSettings struct {
	UserID         string
	Enabled        bool
	ScheduleHour   int
	ScheduleMinute int
	// ScheduleDays is a comma-separated day list (mon..sun), lower-case.
	ScheduleDays          string
	Timezone              string
	MaxApplicationsPerRun int
	ResumeID              string
	SearchCriteria        *SearchCriteria

	LastRunAt           *time.Time
	LastRunStatus       string
	LastRunApplications int
	TotalApplications   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// dayIndex maps day tokens to cron day-of-week numbers (mon=0 .. sun=6
// in the scheduler's convention; translated at trigger-build time).
var dayIndex = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// NewSchedulerSettings validates and normalizes a settings value.
// The cross-field invariant enabled => non-empty position is enforced here
// so an invalid combination is unrepresentable downstream.
func NewSchedulerSettings(s SchedulerSettings) (SchedulerSettings, error) {
	if s.UserID == "" {
		s.UserID = DefaultUserID
	}
	if s.ScheduleHour < 0 || s.ScheduleHour > 23 {
		return SchedulerSettings{}, fmt.Errorf("%w: schedule_hour %d out of range", ErrInvalidArgument, s.ScheduleHour)
	}
	if s.ScheduleMinute < 0 || s.ScheduleMinute > 59 {
		return SchedulerSettings{}, fmt.Errorf("%w: schedule_minute %d out of range", ErrInvalidArgument, s.ScheduleMinute)
	}
	if s.MaxApplicationsPerRun < 1 || s.MaxApplicationsPerRun > 50 {
		return SchedulerSettings{}, fmt.Errorf("%w: max_applications_per_run %d out of range", ErrInvalidArgument, s.MaxApplicationsPerRun)
	}
	days, err := NormalizeDays(s.ScheduleDays)
	if err != nil {
		return SchedulerSettings{}, err
	}
	s.ScheduleDays = days
	if s.Timezone == "" {
		return SchedulerSettings{}, fmt.Errorf("%w: timezone is required", ErrInvalidArgument)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return SchedulerSettings{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidArgument, s.Timezone)
	}
	if s.Enabled {
		if s.SearchCriteria == nil || strings.TrimSpace(s.SearchCriteria.Position) == "" {
			return SchedulerSettings{}, fmt.Errorf("%w: enabled scheduler requires search criteria with a position", ErrInvalidArgument)
		}
	}
	if s.SearchCriteria != nil && s.SearchCriteria.ExperienceLevel != "" && !ExperienceLevels[s.SearchCriteria.ExperienceLevel] {
		return SchedulerSettings{}, fmt.Errorf("%w: unknown experience_level %q", ErrInvalidArgument, s.SearchCriteria.ExperienceLevel)
	}
	return s, nil
}

// NormalizeDays lower-cases, trims and validates a comma-separated day list.
// An empty input falls back to weekdays, matching the original defaults.
func NormalizeDays(days string) (string, error) {
	parts := strings.Split(strings.ToLower(days), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := dayIndex[p]; !ok {
			return "", fmt.Errorf("%w: unknown day %q", ErrInvalidArgument, p)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return "mon,tue,wed,thu,fri", nil
	}
	return strings.Join(out, ","), nil
}

// DayNumbers returns the cron day-of-week numbers (mon=0..sun=6) for the
// settings' day list. Invalid tokens were rejected at construction time.
func (s SchedulerSettings) DayNumbers() []int {
	var out []int
	for _, p := range strings.Split(s.ScheduleDays, ",") {
		if n, ok := dayIndex[strings.TrimSpace(p)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// RunsOnWeekday reports whether the schedule includes the given weekday.
func (s SchedulerSettings) RunsOnWeekday(wd time.Weekday) bool {
	// time.Weekday has Sunday=0; our convention has Monday=0.
	want := (int(wd) + 6) % 7
	for _, n := range s.DayNumbers() {
		if n == want {
			return true
		}
	}
	return false
}

// RunHistory is one append-only row per pipeline run.
type RunHistory struct {
	ID         string
	UserID     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string

	ApplicationsSent    int
	ApplicationsSkipped int
	ApplicationsFailed  int

	ErrorMessage string
	// Details carries the per-vacancy results as an opaque JSON document.
	Details []byte
}

// Application is the authoritative local record of a submitted application.
type Application struct {
	ID        string
	VacancyID string
	ResumeID  string
	UserID    string
	AppliedAt time.Time
	Status    string
	// BoardResponse is the raw JSON body the board returned on submission.
	BoardResponse []byte
}

// Token is an OAuth token row; the most recently obtained row wins.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	ObtainedAt   time.Time
}

// IsExpired reports whether the token is within buffer of its expiry.
func (t Token) IsExpired(buffer time.Duration) bool {
	expiry := t.ObtainedAt.Add(time.Duration(t.ExpiresIn)*time.Second - buffer)
	return !time.Now().Before(expiry)
}

// AutoReplySettings configures the employer-message auto-reply subsystem.
type AutoReplySettings struct {
	UserID               string `json:"user_id"`
	Enabled              bool   `json:"enabled"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
	Timezone             string `json:"timezone"`
	ActiveHoursStart     int    `json:"active_hours_start"`
	ActiveHoursEnd       int    `json:"active_hours_end"`
	ActiveDays           string `json:"active_days"`
	AutoSend             bool   `json:"auto_send"`

	LastCheckAt            *time.Time `json:"last_check_at,omitempty"`
	TotalRepliesSent       int        `json:"total_replies_sent"`
	TotalMessagesProcessed int        `json:"total_messages_processed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AutoReplyHistory records one generated (and possibly sent) reply.
type AutoReplyHistory struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	NegotiationID   string    `json:"negotiation_id"`
	VacancyID       string    `json:"vacancy_id"`
	EmployerMessage string    `json:"employer_message"`
	GeneratedReply  string    `json:"generated_reply"`
	WasSent         bool      `json:"was_sent"`
	EmployerName    string    `json:"employer_name"`
	VacancyTitle    string    `json:"vacancy_title"`
	CreatedAt       time.Time `json:"created_at"`
}

// Context is an alias so signatures in ports stay short; adapters pass
// context.Context straight through.
type Context = context.Context
