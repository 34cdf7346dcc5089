package usecase

import (
	"strings"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// ShouldApply is the local filter engine. It is pure: the same vacancy and
// criteria always produce the same verdict. Server-side filters (salary,
// schedule, experience, employment) were already applied as search
// parameters and are not re-checked here.
func ShouldApply(v domain.Vacancy, c domain.SearchCriteria) (bool, string) {
	if v.Archived {
		return false, "Vacancy is archived"
	}

	employer := strings.ToLower(v.Employer.Name)
	for _, ex := range c.ExcludeCompanies {
		ex = strings.TrimSpace(ex)
		if ex != "" && strings.Contains(employer, strings.ToLower(ex)) {
			return false, "Excluded company: " + v.Employer.Name
		}
	}

	if len(c.RequiredSkills) > 0 {
		haystack := strings.ToLower(v.Name + " " + v.Description)
		var skillNames []string
		for _, s := range v.KeySkills {
			skillNames = append(skillNames, strings.ToLower(s.Name))
		}
		skills := strings.Join(skillNames, " ")
		var missing []string
		for _, req := range c.RequiredSkills {
			needle := strings.ToLower(strings.TrimSpace(req))
			if needle == "" {
				continue
			}
			if !strings.Contains(haystack, needle) && !strings.Contains(skills, needle) {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			return false, "Missing required skills: " + strings.Join(missing, ", ")
		}
	}

	if len(c.ExcludedKeywords) > 0 {
		haystack := strings.ToLower(v.Name + " " + v.Description)
		var hits []string
		for _, kw := range c.ExcludedKeywords {
			needle := strings.ToLower(strings.TrimSpace(kw))
			if needle != "" && strings.Contains(haystack, needle) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			return false, "Contains excluded keywords: " + strings.Join(hits, ", ")
		}
	}

	return true, ""
}

// linkPhrases mark screening questions that route the applicant somewhere
// else; the LLM cannot answer those.
var linkPhrases = []string{
	"пройдите тест по ссылке",
	"перейдите по ссылке",
	"complete the test at",
	"follow the link",
}

// AnswerableQuestions drops questions that cannot be answered inline: ones
// carrying an explicit URL field, a link phrase, or an off-board URL in the
// text.
func AnswerableQuestions(qs []domain.Question, boardHost string) []domain.Question {
	var out []domain.Question
	for _, q := range qs {
		if q.URL != "" || q.RequiredURL != "" {
			continue
		}
		low := strings.ToLower(q.Text)
		if containsAny(low, linkPhrases) {
			continue
		}
		if hasForeignURL(low, boardHost) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasForeignURL(text, boardHost string) bool {
	for _, marker := range []string{"http://", "https://"} {
		rest := text
		for {
			i := strings.Index(rest, marker)
			if i < 0 {
				break
			}
			tail := rest[i+len(marker):]
			end := strings.IndexAny(tail, " \t\n\"'<>)")
			if end < 0 {
				end = len(tail)
			}
			if !strings.Contains(tail[:end], boardHost) {
				return true
			}
			rest = tail[end:]
		}
	}
	return false
}
