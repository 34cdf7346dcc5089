// Package usecase contains the application core: query fanout, the filter
// engine, request validation, profile assembly, single-vacancy application,
// and the bulk-apply pipeline.
package usecase

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

var (
	parentheticalRe = regexp.MustCompile(`\(([^)]*)\)`)
	dashRe          = regexp.MustCompile("[-–—]")
	spaceRe         = regexp.MustCompile(`\s+`)
)

// roleWords are position nouns that parenthetical keywords get combined
// with, so "Python разработчик (Django)" searches "Django разработчик"
// instead of the bare framework name.
var roleWords = []string{"разработчик", "developer", "инженер", "engineer", "программист"}

// ParseQueries expands a position string into the list of search queries.
// Comma-separated tokens inside parentheses become keyword queries; the text
// outside the parentheses, with dashes normalized to spaces, is the main
// query. When the main query contains a role word, each keyword query is
// suffixed with it.
func ParseQueries(position string) []string {
	var keywords []string
	for _, m := range parentheticalRe.FindAllStringSubmatch(position, -1) {
		for _, tok := range strings.Split(m[1], ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				keywords = append(keywords, tok)
			}
		}
	}

	main := parentheticalRe.ReplaceAllString(position, " ")
	main = dashRe.ReplaceAllString(main, " ")
	main = strings.TrimSpace(spaceRe.ReplaceAllString(main, " "))

	var role string
	for _, w := range strings.Fields(main) {
		lw := strings.ToLower(w)
		for _, r := range roleWords {
			if lw == r {
				role = w
				break
			}
		}
		if role != "" {
			break
		}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	add(main)
	for _, kw := range keywords {
		if role != "" {
			add(kw + " " + role)
		} else {
			add(kw)
		}
	}
	return out
}

// BuildSearchQuery derives the server-side search parameters for one query
// string. Schedule and employment are only passed when the criteria name a
// single unambiguous value; anything broader is handled by the local filter.
func BuildSearchQuery(c domain.SearchCriteria, text string, page int) domain.SearchQuery {
	q := domain.SearchQuery{
		Text:    text,
		Page:    page,
		PerPage: 100,
	}
	if c.ExperienceLevel != "" {
		q.Experience = c.ExperienceLevel
	}
	if c.RemoteOnly {
		q.Schedule = "remote"
	} else if len(c.PreferredSchedule) == 1 {
		q.Schedule = c.PreferredSchedule[0]
	}
	if len(c.EmploymentTypes) == 1 {
		q.Employment = c.EmploymentTypes[0]
	}
	if c.SalaryMin > 0 {
		q.Salary = c.SalaryMin
		q.OnlyWithSalary = true
	}
	return q
}
