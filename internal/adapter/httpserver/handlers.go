package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/hh-autopilot/internal/config"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
	"github.com/fairyhunter13/hh-autopilot/internal/service/scheduler"
	"github.com/fairyhunter13/hh-autopilot/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Scheduler *scheduler.Service
	Applier   *usecase.Applier
	Pipeline  *usecase.Pipeline
	Board     domain.BoardClient
	OAuth     domain.OAuthClient
	Tokens    domain.TokenRepository
	States    domain.OAuthStateStore
	AutoReply domain.AutoReplyRepository
	// AuthorizeURL builds the user-facing OAuth redirect for a state value.
	AuthorizeURL func(state string) string
	// OnTokenSaved lets the board client drop its cached token.
	OnTokenSaved func()
}

var validate = validator.New()

type searchCriteriaDTO struct {
	Position          string   `json:"position" validate:"required"`
	ResumeID          string   `json:"resume_id"`
	Skills            string   `json:"skills"`
	Experience        string   `json:"experience"`
	ExcludeCompanies  []string `json:"exclude_companies"`
	SalaryMin         int      `json:"salary_min" validate:"gte=0"`
	RemoteOnly        bool     `json:"remote_only"`
	ExperienceLevel   string   `json:"experience_level" validate:"omitempty,oneof=noExperience between1And3 between3And6 moreThan6"`
	RequiredSkills    []string `json:"required_skills"`
	ExcludedKeywords  []string `json:"excluded_keywords"`
	EmploymentTypes   []string `json:"employment_types"`
	PreferredSchedule []string `json:"preferred_schedule"`
	UseCoverLetter    bool     `json:"use_cover_letter"`
}

func (d searchCriteriaDTO) toDomain() *domain.SearchCriteria {
	return &domain.SearchCriteria{
		Position:          d.Position,
		ResumeID:          d.ResumeID,
		Skills:            d.Skills,
		Experience:        d.Experience,
		ExcludeCompanies:  d.ExcludeCompanies,
		SalaryMin:         d.SalaryMin,
		RemoteOnly:        d.RemoteOnly,
		ExperienceLevel:   d.ExperienceLevel,
		RequiredSkills:    d.RequiredSkills,
		ExcludedKeywords:  d.ExcludedKeywords,
		EmploymentTypes:   d.EmploymentTypes,
		PreferredSchedule: d.PreferredSchedule,
		UseCoverLetter:    d.UseCoverLetter,
	}
}

type settingsRequest struct {
	Enabled               bool               `json:"enabled"`
	ScheduleHour          int                `json:"schedule_hour" validate:"gte=0,lte=23"`
	ScheduleMinute        int                `json:"schedule_minute" validate:"gte=0,lte=59"`
	ScheduleDays          string             `json:"schedule_days"`
	Timezone              string             `json:"timezone"`
	MaxApplicationsPerRun int                `json:"max_applications_per_run" validate:"gte=1,lte=50"`
	ResumeID              string             `json:"resume_id"`
	SearchCriteria        *searchCriteriaDTO `json:"search_criteria"`
}

type settingsResponse struct {
	UserID                string                 `json:"user_id"`
	Enabled               bool                   `json:"enabled"`
	ScheduleHour          int                    `json:"schedule_hour"`
	ScheduleMinute        int                    `json:"schedule_minute"`
	ScheduleDays          string                 `json:"schedule_days"`
	Timezone              string                 `json:"timezone"`
	MaxApplicationsPerRun int                    `json:"max_applications_per_run"`
	ResumeID              string                 `json:"resume_id,omitempty"`
	SearchCriteria        *domain.SearchCriteria `json:"search_criteria,omitempty"`
	LastRunAt             *time.Time             `json:"last_run_at,omitempty"`
	LastRunStatus         string                 `json:"last_run_status,omitempty"`
	LastRunApplications   int                    `json:"last_run_applications"`
	TotalApplications     int                    `json:"total_applications"`
	NextRunAt             *time.Time             `json:"next_run_at,omitempty"`
}

func settingsToResponse(st domain.SchedulerSettings, next *time.Time) settingsResponse {
	return settingsResponse{
		UserID:                st.UserID,
		Enabled:               st.Enabled,
		ScheduleHour:          st.ScheduleHour,
		ScheduleMinute:        st.ScheduleMinute,
		ScheduleDays:          st.ScheduleDays,
		Timezone:              st.Timezone,
		MaxApplicationsPerRun: st.MaxApplicationsPerRun,
		ResumeID:              st.ResumeID,
		SearchCriteria:        st.SearchCriteria,
		LastRunAt:             st.LastRunAt,
		LastRunStatus:         st.LastRunStatus,
		LastRunApplications:   st.LastRunApplications,
		TotalApplications:     st.TotalApplications,
		NextRunAt:             next,
	}
}

// GetSettingsHandler returns the stored settings, or the configured defaults
// when the user has none yet.
func (s *Server) GetSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, next, err := s.Scheduler.GetSettings(r.Context(), domain.DefaultUserID)
		if err != nil {
			if isNotFound(err) {
				writeJSON(w, http.StatusOK, settingsToResponse(s.defaultSettings(), nil))
				return
			}
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, settingsToResponse(st, next))
	}
}

func (s *Server) defaultSettings() domain.SchedulerSettings {
	return domain.SchedulerSettings{
		UserID:                domain.DefaultUserID,
		Enabled:               false,
		ScheduleHour:          s.Cfg.SchedulerDefaultHour,
		ScheduleMinute:        s.Cfg.SchedulerDefaultMinute,
		ScheduleDays:          s.Cfg.SchedulerDefaultDays,
		Timezone:              s.Cfg.SchedulerDefaultTimezone,
		MaxApplicationsPerRun: s.Cfg.SchedulerMaxApplications,
	}
}

// UpdateSettingsHandler upserts the settings and swaps the cron trigger.
func (s *Server) UpdateSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		st := domain.SchedulerSettings{
			UserID:                domain.DefaultUserID,
			Enabled:               req.Enabled,
			ScheduleHour:          req.ScheduleHour,
			ScheduleMinute:        req.ScheduleMinute,
			ScheduleDays:          req.ScheduleDays,
			Timezone:              req.Timezone,
			MaxApplicationsPerRun: req.MaxApplicationsPerRun,
			ResumeID:              req.ResumeID,
		}
		if st.Timezone == "" {
			st.Timezone = s.Cfg.SchedulerDefaultTimezone
		}
		if req.SearchCriteria != nil {
			st.SearchCriteria = req.SearchCriteria.toDomain()
		}
		saved, err := s.Scheduler.UpdateSettings(r.Context(), st)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		next := (*time.Time)(nil)
		if _, n, gerr := s.Scheduler.GetSettings(r.Context(), saved.UserID); gerr == nil {
			next = n
		}
		writeJSON(w, http.StatusOK, settingsToResponse(saved, next))
	}
}

// StatusHandler snapshots the scheduler and the user's job.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := s.Scheduler.GetStatus()
		writeJSON(w, http.StatusOK, map[string]any{
			"scheduler":   st,
			"job_running": s.Scheduler.IsRunning(domain.DefaultUserID),
		})
	}
}

// RunHandler triggers a manual run.
func (s *Server) RunHandler() http.HandlerFunc {
	type runRequest struct {
		MaxApplications int `json:"max_applications" validate:"gte=0,lte=50"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
				return
			}
		}
		if err := s.Scheduler.TriggerManualRun(r.Context(), domain.DefaultUserID, req.MaxApplications); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

// StopHandler requests cancellation of the running job.
func (s *Server) StopHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cancelled := s.Scheduler.CancelRunningJob(domain.DefaultUserID)
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
	}
}

type runHistoryItem struct {
	ID                  string          `json:"id"`
	StartedAt           time.Time       `json:"started_at"`
	FinishedAt          *time.Time      `json:"finished_at,omitempty"`
	Status              string          `json:"status"`
	ApplicationsSent    int             `json:"applications_sent"`
	ApplicationsSkipped int             `json:"applications_skipped"`
	ApplicationsFailed  int             `json:"applications_failed"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	Details             json.RawMessage `json:"details,omitempty"`
}

// HistoryHandler returns the most recent runs.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, r, fmt.Errorf("%w: limit must be 1..100", domain.ErrInvalidArgument), nil)
				return
			}
			limit = n
		}
		rows, err := s.Scheduler.GetRunHistory(r.Context(), domain.DefaultUserID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		items := make([]runHistoryItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, runHistoryItem{
				ID:                  row.ID,
				StartedAt:           row.StartedAt,
				FinishedAt:          row.FinishedAt,
				Status:              row.Status,
				ApplicationsSent:    row.ApplicationsSent,
				ApplicationsSkipped: row.ApplicationsSkipped,
				ApplicationsFailed:  row.ApplicationsFailed,
				ErrorMessage:        row.ErrorMessage,
				Details:             row.Details,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// ApplyHandler submits a single application.
func (s *Server) ApplyHandler() http.HandlerFunc {
	type applyRequest struct {
		VacancyID      string `json:"vacancy_id" validate:"required"`
		ResumeID       string `json:"resume_id" validate:"required"`
		CoverLetter    string `json:"cover_letter"`
		UseCoverLetter bool   `json:"use_cover_letter"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		warnings, err := usecase.ValidateApply(req.VacancyID, req.ResumeID, req.CoverLetter)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		res := s.Applier.Apply(r.Context(), usecase.ApplyRequest{
			VacancyID:      req.VacancyID,
			ResumeID:       req.ResumeID,
			UserID:         domain.DefaultUserID,
			UseCoverLetter: req.UseCoverLetter,
			CoverLetter:    req.CoverLetter,
		})
		writeJSON(w, http.StatusOK, map[string]any{"result": res, "warnings": warnings})
	}
}

// ResumesHandler lists the account's resumes.
func (s *Server) ResumesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resumes, err := s.Board.ListResumes(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": resumes})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
