package domain

import (
	"encoding/json"
	"strings"
)

// Vacancy is one job posting as returned by the board. The payload is
// optional-everywhere JSON; fields we never read are dropped at decode time.
type Vacancy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Archived    bool      `json:"archived"`
	Description string    `json:"description"`
	Employer    Employer  `json:"employer"`
	Salary      *Salary   `json:"salary"`
	Snippet     *Snippet  `json:"snippet"`
	KeySkills   []IDName  `json:"key_skills"`
	Schedule    *IDName   `json:"schedule"`
	Employment  *IDName   `json:"employment"`
	Experience  *IDName   `json:"experience"`
	Relations   []string  `json:"relations"`
	Test        *TestInfo `json:"test"`

	ResponseLetterRequired bool `json:"response_letter_required"`

	BrandedTemplate *BrandedTemplate `json:"branded_template"`
}

// Employer identifies the posting company.
type Employer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Salary is the posted compensation range.
type Salary struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	Currency string `json:"currency"`
}

// Snippet carries the short requirement/responsibility excerpts shown in
// search results.
type Snippet struct {
	Requirement    string `json:"requirement"`
	Responsibility string `json:"responsibility"`
}

// IDName is the board's ubiquitous {id, name} pair.
type IDName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestInfo describes an attached employer test.
type TestInfo struct {
	URL      string `json:"url"`
	Required bool   `json:"required"`
}

// BrandedTemplate may redirect applicants to an external form.
type BrandedTemplate struct {
	ExternalFormURL string `json:"external_form_url"`
}

// HasResponseRelation reports whether the board already links this vacancy
// to an application by the current user.
func (v Vacancy) HasResponseRelation() bool {
	for _, r := range v.Relations {
		if r == "got_response" || r == "response" {
			return true
		}
	}
	return false
}

// RequiresExternalTest reports whether applying would route through a test
// hosted outside the board. boardHost is the board's canonical host
// (e.g. "hh.ru"); a test URL on any other host counts as external.
func (v Vacancy) RequiresExternalTest(boardHost string) bool {
	if v.Test != nil {
		if v.Test.Required {
			return true
		}
		if v.Test.URL != "" && !strings.Contains(v.Test.URL, boardHost) {
			return true
		}
	}
	return v.BrandedTemplate != nil && v.BrandedTemplate.ExternalFormURL != ""
}

// SearchPage is one page of search results.
type SearchPage struct {
	Items   []Vacancy `json:"items"`
	Found   int       `json:"found"`
	Pages   int       `json:"pages"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
}

// SearchQuery carries the server-side filters for a vacancy search.
type SearchQuery struct {
	Text           string
	Experience     string
	Schedule       string
	Employment     string
	Salary         int
	OnlyWithSalary bool
	Page           int
	PerPage        int
}

// Question is one screening question attached to a vacancy.
type Question struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	RequiredURL string `json:"required_url"`
}

// Answer pairs a screening question with generated text.
type Answer struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// Resume is the candidate profile as stored on the board.
type Resume struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Experience  []ResumeJob      `json:"experience"`
	SkillSet    SkillList        `json:"skill_set"`
	Contact     []ResumeContact  `json:"contact"`
	Education   *ResumeEducation `json:"education"`
}

// ResumeJob is one entry of the resume's experience history.
type ResumeJob struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

// ResumeContact is one contact record; email values arrive either as a plain
// string or as {formatted: ...}.
type ResumeContact struct {
	Type  IDName          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// EmailValue extracts an email address from the contact, if it is one.
func (c ResumeContact) EmailValue() string {
	if c.Type.ID != "email" {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	var obj struct {
		Formatted string `json:"formatted"`
	}
	if err := json.Unmarshal(c.Value, &obj); err == nil {
		return obj.Formatted
	}
	return ""
}

// ResumeEducation wraps the education history.
type ResumeEducation struct {
	Items []IDName `json:"items"`
}

// SkillList tolerates both encodings the board uses for skill_set:
// a list of strings and a list of {name} objects.
type SkillList []string

// UnmarshalJSON accepts ["Go", ...] as well as [{"name": "Go"}, ...].
func (s *SkillList) UnmarshalJSON(data []byte) error {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = plain
		return nil
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return err
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		if o.Name != "" {
			out = append(out, o.Name)
		}
	}
	*s = out
	return nil
}

// Profile is the flattened candidate profile fed to the LLM.
type Profile struct {
	Name       string
	Email      string
	Position   string
	Experience string
	Skills     string
	Resume     string
}

// BoardUser is the authenticated account info from GET /me.
type BoardUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
