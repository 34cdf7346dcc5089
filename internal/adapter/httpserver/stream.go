package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
	"github.com/fairyhunter13/hh-autopilot/internal/usecase"
)

// BulkApplyStreamHandler runs the pipeline for an ad-hoc criteria set and
// streams its progress events over server-sent events. Client disconnect
// cancels the run through the request context.
func (s *Server) BulkApplyStreamHandler() http.HandlerFunc {
	type bulkRequest struct {
		SearchCriteria  searchCriteriaDTO `json:"search_criteria" validate:"required"`
		ResumeID        string            `json:"resume_id" validate:"required"`
		MaxApplications int               `json:"max_applications" validate:"gte=1,lte=50"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: streaming unsupported", domain.ErrInternal), nil)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := s.Pipeline.Run(r.Context(), usecase.PipelineParams{
			UserID:          domain.DefaultUserID,
			Criteria:        *req.SearchCriteria.toDomain(),
			MaxApplications: req.MaxApplications,
			ResumeID:        req.ResumeID,
			CancelRequested: func() bool { return r.Context().Err() != nil },
		})
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
