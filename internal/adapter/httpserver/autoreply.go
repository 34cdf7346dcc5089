package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

type autoReplySettingsRequest struct {
	Enabled              bool   `json:"enabled"`
	CheckIntervalMinutes int    `json:"check_interval_minutes" validate:"gte=5,lte=1440"`
	Timezone             string `json:"timezone"`
	ActiveHoursStart     int    `json:"active_hours_start" validate:"gte=0,lte=23"`
	ActiveHoursEnd       int    `json:"active_hours_end" validate:"gte=0,lte=23"`
	ActiveDays           string `json:"active_days"`
	AutoSend             bool   `json:"auto_send"`
}

// GetAutoReplySettingsHandler returns the auto-reply settings, defaulting to
// a disabled configuration when none are stored.
func (s *Server) GetAutoReplySettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.AutoReply.GetSettings(r.Context(), domain.DefaultUserID)
		if err != nil {
			if isNotFound(err) {
				writeJSON(w, http.StatusOK, domain.AutoReplySettings{
					UserID:               domain.DefaultUserID,
					CheckIntervalMinutes: 30,
					Timezone:             s.Cfg.SchedulerDefaultTimezone,
					ActiveHoursStart:     9,
					ActiveHoursEnd:       21,
					ActiveDays:           "mon,tue,wed,thu,fri",
				})
				return
			}
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// UpdateAutoReplySettingsHandler upserts the auto-reply settings.
func (s *Server) UpdateAutoReplySettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req autoReplySettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		days, err := domain.NormalizeDays(req.ActiveDays)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		tz := req.Timezone
		if tz == "" {
			tz = s.Cfg.SchedulerDefaultTimezone
		}
		saved, err := s.AutoReply.UpsertSettings(r.Context(), domain.AutoReplySettings{
			UserID:               domain.DefaultUserID,
			Enabled:              req.Enabled,
			CheckIntervalMinutes: req.CheckIntervalMinutes,
			Timezone:             tz,
			ActiveHoursStart:     req.ActiveHoursStart,
			ActiveHoursEnd:       req.ActiveHoursEnd,
			ActiveDays:           days,
			AutoSend:             req.AutoSend,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// AutoReplyHistoryHandler lists the most recent generated replies.
func (s *Server) AutoReplyHistoryHandler() http.HandlerFunc {
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
		rows, err := s.AutoReply.ListHistory(r.Context(), domain.DefaultUserID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": rows})
	}
}
