package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// BuildProfile flattens a board resume into the prompt-ready profile.
// Fields the resume leaves blank fall back to the corresponding values of
// fallback, so a sparse resume still yields a usable profile.
func BuildProfile(r domain.Resume, fallback domain.Profile) domain.Profile {
	p := domain.Profile{
		Name:     strings.TrimSpace(r.FirstName + " " + r.LastName),
		Position: r.Title,
		Resume:   r.ID,
	}

	var jobs []string
	for _, j := range r.Experience {
		var b strings.Builder
		switch {
		case j.Position != "" && j.Company != "":
			fmt.Fprintf(&b, "%s at %s", j.Position, j.Company)
		case j.Position != "":
			b.WriteString(j.Position)
		case j.Company != "":
			b.WriteString(j.Company)
		}
		if j.Start != "" {
			end := j.End
			if end == "" {
				end = "now"
			}
			fmt.Fprintf(&b, " (%s - %s)", j.Start, end)
		}
		if j.Description != "" {
			b.WriteString("\n")
			b.WriteString(j.Description)
		}
		if b.Len() > 0 {
			jobs = append(jobs, b.String())
		}
	}
	p.Experience = strings.Join(jobs, "\n\n")

	p.Skills = strings.Join(r.SkillSet, ", ")

	for _, c := range r.Contact {
		if email := c.EmailValue(); email != "" {
			p.Email = email
			break
		}
	}

	if p.Name == "" {
		p.Name = fallback.Name
	}
	if p.Email == "" {
		p.Email = fallback.Email
	}
	if p.Position == "" {
		p.Position = fallback.Position
	}
	if p.Experience == "" {
		p.Experience = fallback.Experience
	}
	if p.Skills == "" {
		p.Skills = fallback.Skills
	}
	return p
}
