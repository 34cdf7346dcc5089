package llm

import (
	"fmt"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// Stub is a deterministic provider for tests and dry runs. Its output is
// long enough to pass cover-letter validation and carries no placeholder
// phrasing.
type Stub struct{}

// NewStub constructs the stub provider.
func NewStub() *Stub { return &Stub{} }

// GenerateCoverLetter returns a fixed letter referencing the vacancy and
// candidate.
func (Stub) GenerateCoverLetter(_ domain.Context, v domain.Vacancy, p domain.Profile) (string, error) {
	name := p.Name
	if name == "" {
		name = "кандидат"
	}
	return fmt.Sprintf(
		"Здравствуйте! Меня заинтересовала вакансия %q. Мой опыт работы хорошо соответствует требованиям позиции, и я готов подробно рассказать о релевантных проектах. С уважением, %s.",
		v.Name, name), nil
}

// AnswerScreeningQuestions returns one short answer per question.
func (Stub) AnswerScreeningQuestions(_ domain.Context, qs []domain.Question, _ domain.Vacancy, _ domain.Profile) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(qs))
	for _, q := range qs {
		out = append(out, domain.Answer{QuestionID: q.ID, Text: "Да, готов обсудить детали на собеседовании."})
	}
	return out, nil
}
