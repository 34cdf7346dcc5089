package domain

// Progress event kinds emitted by the bulk-apply pipeline.
const (
	EventStart     = "start"
	EventProgress  = "progress"
	EventComplete  = "complete"
	EventCancelled = "cancelled"
	EventError     = "error"
)

// Apply outcome statuses.
const (
	ApplySuccess = "success"
	ApplySkipped = "skipped"
	ApplyError   = "error"
)

// ApplyResult is the outcome of one vacancy attempt.
type ApplyResult struct {
	VacancyID    string `json:"vacancy_id"`
	Status       string `json:"status"`
	VacancyTitle string `json:"vacancy_title,omitempty"`
	CoverLetter  string `json:"cover_letter,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}

// ProgressEvent is one element of the pipeline's event stream. Counters are
// monotonically non-decreasing across a run and always satisfy
// Success+Skipped+Errors == Current on result-bearing events.
type ProgressEvent struct {
	Event        string       `json:"event"`
	Current      int          `json:"current"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	SkippedCount int          `json:"skipped_count"`
	ErrorCount   int          `json:"error_count"`
	Result       *ApplyResult `json:"result,omitempty"`
	Message      string       `json:"message,omitempty"`
}
