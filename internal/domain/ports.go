package domain

import "time"

// Repositories (ports)

// SettingsRepository persists per-user scheduler settings.
type SettingsRepository interface {
	Get(ctx Context, userID string) (SchedulerSettings, error)
	Upsert(ctx Context, s SchedulerSettings) (SchedulerSettings, error)
	ListEnabled(ctx Context) ([]SchedulerSettings, error)
	// RecordRunStats updates last_run_* and accumulates total_applications.
	RecordRunStats(ctx Context, userID, status string, sent int) error
}

// RunRepository persists the append-only run-history ledger.
type RunRepository interface {
	Create(ctx Context, r RunHistory) (string, error)
	// UpdateCounters writes all three counters in one statement; this is the
	// Progress Ledger's single operation.
	UpdateCounters(ctx Context, id string, sent, skipped, failed int) error
	Finalize(ctx Context, id, status string, sent, skipped, failed int, errMsg string, details []byte) error
	ListByUser(ctx Context, userID string, limit int) ([]RunHistory, error)
	// HasRunSince reports whether any run for the user started at or after
	// the given instant; startup catch-up uses it to avoid double runs.
	HasRunSince(ctx Context, userID string, since time.Time) (bool, error)
	// MarkStaleRunning rewrites running rows started before the cutoff to
	// interrupted. Returns the number of rows rewritten.
	MarkStaleRunning(ctx Context, cutoff time.Time) (int64, error)
}

// ApplicationRepository is the authoritative already-applied record.
type ApplicationRepository interface {
	Exists(ctx Context, vacancyID, resumeID string) (bool, error)
	Record(ctx Context, a Application) error
}

// TokenRepository stores OAuth tokens; Save replaces all previous rows.
type TokenRepository interface {
	Save(ctx Context, t Token) (Token, error)
	GetLatest(ctx Context) (Token, error)
}

// AutoReplyRepository persists auto-reply settings and history.
type AutoReplyRepository interface {
	GetSettings(ctx Context, userID string) (AutoReplySettings, error)
	UpsertSettings(ctx Context, s AutoReplySettings) (AutoReplySettings, error)
	AppendHistory(ctx Context, h AutoReplyHistory) error
	ListHistory(ctx Context, userID string, limit int) ([]AutoReplyHistory, error)
}

// VacancyCache is the advisory processed-vacancy store (7-day TTL).
type VacancyCache interface {
	// FilterNew returns the subset of ids not currently cached.
	FilterNew(ctx Context, ids []string) ([]string, error)
	// AddMany marks each id with a fresh TTL.
	AddMany(ctx Context, ids []string) error
}

// ApplySubmission is the payload for one application POST.
type ApplySubmission struct {
	VacancyID   string
	ResumeID    string
	CoverLetter string
	Answers     []Answer
}

// BoardClient is the outbound port to the external job board. All methods
// honor context cancellation; pacing, retries, and token attachment are the
// implementation's concern.
type BoardClient interface {
	SearchVacancies(ctx Context, q SearchQuery) (SearchPage, error)
	GetVacancy(ctx Context, id string) (Vacancy, error)
	GetVacancyQuestions(ctx Context, id string) ([]Question, error)
	GetResume(ctx Context, id string) (Resume, error)
	ListResumes(ctx Context) ([]Resume, error)
	// AppliedVacancyIDs pages through the user's negotiations and returns
	// every vacancy id with an existing application. Fails open: on error
	// the set is empty and err is nil.
	AppliedVacancyIDs(ctx Context) (map[string]struct{}, error)
	Apply(ctx Context, sub ApplySubmission) ([]byte, error)
	Me(ctx Context) (BoardUser, error)
}

// OAuthClient handles the token exchange outside the bearer-authenticated
// request path.
type OAuthClient interface {
	ExchangeCode(ctx Context, code string) (Token, error)
	Refresh(ctx Context, refreshToken string) (Token, error)
}

// LLMProvider generates application artifacts. Implementations may block for
// minutes; they must honor ctx.
type LLMProvider interface {
	GenerateCoverLetter(ctx Context, v Vacancy, p Profile) (string, error)
	AnswerScreeningQuestions(ctx Context, qs []Question, v Vacancy, p Profile) ([]Answer, error)
}

// OAuthStateStore holds short-lived OAuth state tokens.
type OAuthStateStore interface {
	Set(ctx Context, state, clientHost string) error
	Take(ctx Context, state string) (string, bool, error)
}
