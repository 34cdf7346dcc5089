package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

type fakeBoard struct {
	mu sync.Mutex

	searchFn  func(q domain.SearchQuery) (domain.SearchPage, error)
	vacancies map[string]domain.Vacancy
	vacErrs   map[string]error
	questions map[string][]domain.Question
	qErr      error
	resume    domain.Resume
	resumeErr error
	applied   map[string]struct{}
	applyFn   func(sub domain.ApplySubmission) ([]byte, error)

	applyCalls []domain.ApplySubmission
}

func newFakeBoard(vs ...domain.Vacancy) *fakeBoard {
	b := &fakeBoard{
		vacancies: make(map[string]domain.Vacancy),
		vacErrs:   make(map[string]error),
		questions: make(map[string][]domain.Question),
		applied:   make(map[string]struct{}),
		resume:    domain.Resume{ID: "r1", Title: "Go Developer", FirstName: "Ivan"},
	}
	items := make([]domain.Vacancy, 0, len(vs))
	for _, v := range vs {
		b.vacancies[v.ID] = v
		items = append(items, v)
	}
	b.searchFn = func(domain.SearchQuery) (domain.SearchPage, error) {
		return domain.SearchPage{Items: items, Found: len(items), Pages: 1}, nil
	}
	return b
}

func (b *fakeBoard) SearchVacancies(_ domain.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	return b.searchFn(q)
}

func (b *fakeBoard) GetVacancy(_ domain.Context, id string) (domain.Vacancy, error) {
	if err := b.vacErrs[id]; err != nil {
		return domain.Vacancy{}, err
	}
	v, ok := b.vacancies[id]
	if !ok {
		return domain.Vacancy{}, fmt.Errorf("vacancy %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

func (b *fakeBoard) GetVacancyQuestions(_ domain.Context, id string) ([]domain.Question, error) {
	if b.qErr != nil {
		return nil, b.qErr
	}
	return b.questions[id], nil
}

func (b *fakeBoard) GetResume(_ domain.Context, _ string) (domain.Resume, error) {
	if b.resumeErr != nil {
		return domain.Resume{}, b.resumeErr
	}
	return b.resume, nil
}

func (b *fakeBoard) ListResumes(_ domain.Context) ([]domain.Resume, error) {
	return []domain.Resume{b.resume}, nil
}

func (b *fakeBoard) AppliedVacancyIDs(_ domain.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(b.applied))
	for k := range b.applied {
		out[k] = struct{}{}
	}
	return out, nil
}

func (b *fakeBoard) Apply(_ domain.Context, sub domain.ApplySubmission) ([]byte, error) {
	b.mu.Lock()
	b.applyCalls = append(b.applyCalls, sub)
	b.mu.Unlock()
	if b.applyFn != nil {
		return b.applyFn(sub)
	}
	return []byte(`{"id":"n1"}`), nil
}

func (b *fakeBoard) Me(_ domain.Context) (domain.BoardUser, error) {
	return domain.BoardUser{ID: "u1"}, nil
}

type fakeApps struct {
	mu        sync.Mutex
	rows      map[string]domain.Application
	recordErr error
}

func newFakeApps() *fakeApps { return &fakeApps{rows: make(map[string]domain.Application)} }

func appKey(vacancyID, resumeID string) string { return vacancyID + "|" + resumeID }

func (a *fakeApps) Exists(_ domain.Context, vacancyID, resumeID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.rows[appKey(vacancyID, resumeID)]
	return ok, nil
}

func (a *fakeApps) Record(_ domain.Context, app domain.Application) error {
	if a.recordErr != nil {
		return a.recordErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[appKey(app.VacancyID, app.ResumeID)] = app
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newFakeCache() *fakeCache { return &fakeCache{seen: make(map[string]struct{})} }

func (c *fakeCache) FilterNew(_ domain.Context, ids []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := c.seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *fakeCache) AddMany(_ domain.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.seen[id] = struct{}{}
	}
	return nil
}

type fakeLLM struct {
	letter    string
	letterErr error
	answerErr error
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{letter: strings.Repeat("Относительно вашей вакансии: мой опыт полностью подходит. ", 2)}
}

func (l *fakeLLM) GenerateCoverLetter(_ domain.Context, _ domain.Vacancy, _ domain.Profile) (string, error) {
	return l.letter, l.letterErr
}

func (l *fakeLLM) AnswerScreeningQuestions(_ domain.Context, qs []domain.Question, _ domain.Vacancy, _ domain.Profile) ([]domain.Answer, error) {
	if l.answerErr != nil {
		return nil, l.answerErr
	}
	out := make([]domain.Answer, 0, len(qs))
	for _, q := range qs {
		out = append(out, domain.Answer{QuestionID: q.ID, Text: "answer"})
	}
	return out, nil
}

func testLogger() *slog.Logger { return slog.Default() }

func noSleep(context.Context, time.Duration) error { return nil }
