package usecase

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// ApplyRequest is one single-vacancy application.
type ApplyRequest struct {
	VacancyID      string
	ResumeID       string
	UserID         string
	UseCoverLetter bool
	// CoverLetter, when set, is used verbatim instead of generating one.
	CoverLetter string
	// Fallback fills profile fields the resume leaves blank.
	Fallback domain.Profile
}

// Applier performs one application end to end: eligibility, profile,
// artifacts, submission, bookkeeping. Failures never escape as errors; every
// outcome is an ApplyResult.
type Applier struct {
	board domain.BoardClient
	apps  domain.ApplicationRepository
	llm   domain.LLMProvider
	log   *slog.Logger
	// boardHost is the board's canonical host, used to classify test and
	// question URLs as external.
	boardHost string
}

// NewApplier constructs an Applier.
func NewApplier(board domain.BoardClient, apps domain.ApplicationRepository, llm domain.LLMProvider, boardHost string, log *slog.Logger) *Applier {
	if boardHost == "" {
		boardHost = "hh.ru"
	}
	return &Applier{board: board, apps: apps, llm: llm, boardHost: boardHost, log: log}
}

func skipped(vacancyID, title, reason string) domain.ApplyResult {
	return domain.ApplyResult{VacancyID: vacancyID, Status: domain.ApplySkipped, VacancyTitle: title, ErrorDetail: reason}
}

func failed(vacancyID, title, reason string) domain.ApplyResult {
	return domain.ApplyResult{VacancyID: vacancyID, Status: domain.ApplyError, VacancyTitle: title, ErrorDetail: reason}
}

// Apply runs the single-vacancy flow and returns its outcome.
func (a *Applier) Apply(ctx domain.Context, req ApplyRequest) domain.ApplyResult {
	if _, err := ValidateApply(req.VacancyID, req.ResumeID, req.CoverLetter); err != nil {
		return failed(req.VacancyID, "", err.Error())
	}

	exists, err := a.apps.Exists(ctx, req.VacancyID, req.ResumeID)
	if err != nil {
		a.log.Warn("application history lookup failed", slog.Any("error", err))
	}
	if exists {
		return skipped(req.VacancyID, "", "Already applied to this vacancy")
	}

	v, err := a.board.GetVacancy(ctx, req.VacancyID)
	if err != nil {
		return failed(req.VacancyID, "", "failed to fetch vacancy: "+err.Error())
	}

	if v.Archived {
		return skipped(v.ID, v.Name, "Vacancy is archived")
	}
	if v.HasResponseRelation() {
		return skipped(v.ID, v.Name, "Already applied (HH.ru)")
	}
	if v.ResponseLetterRequired && !req.UseCoverLetter && req.CoverLetter == "" {
		return skipped(v.ID, v.Name, "Vacancy requires a cover letter")
	}
	if v.RequiresExternalTest(a.boardHost) {
		return skipped(v.ID, v.Name, "Vacancy requires an external test")
	}

	profile := req.Fallback
	if resume, rerr := a.board.GetResume(ctx, req.ResumeID); rerr == nil {
		profile = BuildProfile(resume, req.Fallback)
	} else {
		a.log.Warn("resume fetch failed, using fallback profile",
			slog.String("resume_id", req.ResumeID), slog.Any("error", rerr))
	}

	letter := strings.TrimSpace(req.CoverLetter)
	if letter == "" && req.UseCoverLetter {
		letter, err = a.llm.GenerateCoverLetter(ctx, v, profile)
		if err != nil {
			return failed(v.ID, v.Name, "cover letter generation failed: "+err.Error())
		}
		letter = strings.TrimSpace(letter)
		if verr := ValidateCoverLetter(letter); verr != nil {
			return failed(v.ID, v.Name, "generated cover letter rejected: "+verr.Error())
		}
	}

	var answers []domain.Answer
	questions, qerr := a.board.GetVacancyQuestions(ctx, v.ID)
	if qerr != nil {
		// Non-fatal: a vacancy without reachable questions is treated as
		// having none.
		a.log.Warn("screening questions fetch failed", slog.String("vacancy_id", v.ID), slog.Any("error", qerr))
		questions = nil
	}
	if answerable := AnswerableQuestions(questions, a.boardHost); len(answerable) > 0 {
		answers, err = a.llm.AnswerScreeningQuestions(ctx, answerable, v, profile)
		if err != nil {
			return failed(v.ID, v.Name, "screening answers generation failed: "+err.Error())
		}
	}

	resp, err := a.board.Apply(ctx, domain.ApplySubmission{
		VacancyID:   v.ID,
		ResumeID:    req.ResumeID,
		CoverLetter: letter,
		Answers:     answers,
	})
	if err != nil {
		return a.classifySubmitError(v, err)
	}

	userID := req.UserID
	if userID == "" {
		userID = domain.DefaultUserID
	}
	if rerr := a.apps.Record(ctx, domain.Application{
		ID:            uuid.New().String(),
		VacancyID:     v.ID,
		ResumeID:      req.ResumeID,
		UserID:        userID,
		AppliedAt:     time.Now().UTC(),
		Status:        domain.ApplySuccess,
		BoardResponse: resp,
	}); rerr != nil {
		// The application went through; losing the local row only risks a
		// future duplicate skip on the board side.
		a.log.Error("failed to record application", slog.String("vacancy_id", v.ID), slog.Any("error", rerr))
	}
	observability.ApplicationsTotal.WithLabelValues(domain.ApplySuccess).Inc()
	return domain.ApplyResult{
		VacancyID:    v.ID,
		Status:       domain.ApplySuccess,
		VacancyTitle: v.Name,
		CoverLetter:  letter,
	}
}

func (a *Applier) classifySubmitError(v domain.Vacancy, err error) domain.ApplyResult {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, domain.ErrConflict):
		return skipped(v.ID, v.Name, "Application already exists")
	case errors.Is(err, domain.ErrNotFound):
		return failed(v.ID, v.Name, "vacancy not found (404)")
	case strings.Contains(msg, "status 400") && strings.Contains(msg, "duplicate"):
		return skipped(v.ID, v.Name, "Already applied (duplicate)")
	case strings.Contains(msg, "status 403") && strings.Contains(msg, "test"):
		return skipped(v.ID, v.Name, "Vacancy requires a test")
	case strings.Contains(msg, "status 403"):
		return failed(v.ID, v.Name, "application denied (403)")
	}
	return failed(v.ID, v.Name, "submission failed: "+err.Error())
}
