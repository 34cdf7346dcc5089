package hh

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

const (
	negotiationsPerPage  = 100
	negotiationsMaxPages = 20
	negotiationPageSleep = 500 * time.Millisecond
)

// SearchVacancies runs one page of GET /vacancies.
func (c *Client) SearchVacancies(ctx domain.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	vals := url.Values{}
	vals.Set("text", q.Text)
	vals.Set("page", strconv.Itoa(q.Page))
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	vals.Set("per_page", strconv.Itoa(perPage))
	if q.Experience != "" {
		vals.Set("experience", q.Experience)
	}
	if q.Schedule != "" {
		vals.Set("schedule", q.Schedule)
	}
	if q.Employment != "" {
		vals.Set("employment", q.Employment)
	}
	if q.Salary > 0 {
		vals.Set("salary", strconv.Itoa(q.Salary))
		if q.OnlyWithSalary {
			vals.Set("only_with_salary", "true")
		}
	}
	body, err := c.do(ctx, request{method: "GET", path: "/vacancies", label: "vacancies.search", query: vals})
	if err != nil {
		return domain.SearchPage{}, err
	}
	var page domain.SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return domain.SearchPage{}, fmt.Errorf("op=hh.search_vacancies: decode: %w", err)
	}
	return page, nil
}

// GetVacancy fetches the full vacancy, including description and relations.
func (c *Client) GetVacancy(ctx domain.Context, id string) (domain.Vacancy, error) {
	body, err := c.do(ctx, request{method: "GET", path: "/vacancies/" + url.PathEscape(id), label: "vacancies.get"})
	if err != nil {
		return domain.Vacancy{}, err
	}
	var v domain.Vacancy
	if err := json.Unmarshal(body, &v); err != nil {
		return domain.Vacancy{}, fmt.Errorf("op=hh.get_vacancy: decode: %w", err)
	}
	return v, nil
}

// GetVacancyQuestions returns the screening questions for a vacancy, or an
// empty slice when the vacancy has none.
func (c *Client) GetVacancyQuestions(ctx domain.Context, id string) ([]domain.Question, error) {
	body, err := c.do(ctx, request{
		method: "GET",
		path:   "/vacancies/" + url.PathEscape(id) + "/questions",
		label:  "vacancies.questions",
	})
	if err != nil {
		if IsStatus(err, 404) {
			return nil, nil
		}
		return nil, err
	}
	var out struct {
		Items []domain.Question `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		// Some vacancies answer with a bare list.
		var items []domain.Question
		if lerr := json.Unmarshal(body, &items); lerr == nil {
			return items, nil
		}
		return nil, fmt.Errorf("op=hh.get_questions: decode: %w", err)
	}
	return out.Items, nil
}

// GetResume fetches one resume with its full experience and skill set.
func (c *Client) GetResume(ctx domain.Context, id string) (domain.Resume, error) {
	body, err := c.do(ctx, request{method: "GET", path: "/resumes/" + url.PathEscape(id), label: "resumes.get"})
	if err != nil {
		return domain.Resume{}, err
	}
	var r domain.Resume
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.Resume{}, fmt.Errorf("op=hh.get_resume: decode: %w", err)
	}
	return r, nil
}

// ListResumes returns the account's resumes.
func (c *Client) ListResumes(ctx domain.Context) ([]domain.Resume, error) {
	body, err := c.do(ctx, request{method: "GET", path: "/resumes/mine", label: "resumes.list"})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []domain.Resume `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("op=hh.list_resumes: decode: %w", err)
	}
	return out.Items, nil
}

// AppliedVacancyIDs pages through GET /negotiations and collects every
// vacancy id the account has already applied to. The result seeds a
// duplicate filter, so this fails open: any error yields an empty set and a
// nil error, and the authoritative local history still protects each
// application individually.
func (c *Client) AppliedVacancyIDs(ctx domain.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for page := 0; page < negotiationsMaxPages; page++ {
		vals := url.Values{}
		vals.Set("page", strconv.Itoa(page))
		vals.Set("per_page", strconv.Itoa(negotiationsPerPage))
		body, err := c.do(ctx, request{method: "GET", path: "/negotiations", label: "negotiations.list", query: vals})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("negotiations listing failed, continuing without baseline", slog.Any("error", err))
			return map[string]struct{}{}, nil
		}
		var out struct {
			Items []struct {
				Vacancy *struct {
					ID string `json:"id"`
				} `json:"vacancy"`
			} `json:"items"`
			Pages int `json:"pages"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			c.log.Warn("negotiations listing undecodable, continuing without baseline", slog.Any("error", err))
			return map[string]struct{}{}, nil
		}
		for _, it := range out.Items {
			if it.Vacancy != nil && it.Vacancy.ID != "" {
				ids[it.Vacancy.ID] = struct{}{}
			}
		}
		if len(out.Items) < negotiationsPerPage || page+1 >= out.Pages {
			break
		}
		if err := c.sleep(ctx, negotiationPageSleep); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// Apply submits one application as a form-encoded POST /negotiations. The
// raw response body is preserved for the run ledger; an empty or non-JSON
// 2xx body is normalized to a success object.
func (c *Client) Apply(ctx domain.Context, sub domain.ApplySubmission) ([]byte, error) {
	form := url.Values{}
	form.Set("vacancy_id", sub.VacancyID)
	form.Set("resume_id", sub.ResumeID)
	if sub.CoverLetter != "" {
		form.Set("message", sub.CoverLetter)
	}
	for _, a := range sub.Answers {
		form.Set("answer_"+a.QuestionID, a.Text)
	}
	body, err := c.do(ctx, request{
		method:  "POST",
		path:    "/negotiations",
		label:   "negotiations.apply",
		form:    form,
		referer: "https://hh.ru/vacancy/" + sub.VacancyID,
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 || !json.Valid(body) {
		return []byte(`{"status":"success"}`), nil
	}
	return body, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx domain.Context) (domain.BoardUser, error) {
	body, err := c.do(ctx, request{method: "GET", path: "/me", label: "me"})
	if err != nil {
		return domain.BoardUser{}, err
	}
	var u domain.BoardUser
	if err := json.Unmarshal(body, &u); err != nil {
		return domain.BoardUser{}, fmt.Errorf("op=hh.me: decode: %w", err)
	}
	return u, nil
}
