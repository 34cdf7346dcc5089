// Package llm generates application artifacts: cover letters and screening
// answers. The Ollama provider talks to a local model server; the stub
// provider returns deterministic content for tests and dry runs.
package llm

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// descriptionTokenBudget caps how much of the vacancy description goes into
// a prompt. Local models degrade sharply past their context window, and the
// description is the only unbounded field.
const descriptionTokenBudget = 2000

var promptEncoding *tiktoken.Tiktoken

func init() {
	// cl100k_base over-counts slightly for most open models, which errs on
	// the safe side for a budget.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		promptEncoding = enc
	}
}

// truncateToTokens cuts s to at most max tokens. Without an encoding it
// falls back to a character budget of 4 bytes per token.
func truncateToTokens(s string, max int) string {
	if promptEncoding == nil {
		if len(s) > max*4 {
			return s[:max*4]
		}
		return s
	}
	toks := promptEncoding.Encode(s, nil, nil)
	if len(toks) <= max {
		return s
	}
	return promptEncoding.Decode(toks[:max])
}

func coverLetterPrompt(v domain.Vacancy, p domain.Profile) string {
	var b strings.Builder
	b.WriteString("You are helping a job seeker write a short cover letter in Russian for a vacancy on hh.ru.\n\n")
	fmt.Fprintf(&b, "Vacancy: %s\n", v.Name)
	if v.Employer.Name != "" {
		fmt.Fprintf(&b, "Company: %s\n", v.Employer.Name)
	}
	if desc := strings.TrimSpace(v.Description); desc != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", truncateToTokens(desc, descriptionTokenBudget))
	}
	b.WriteString("\nCandidate:\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
	}
	if p.Position != "" {
		fmt.Fprintf(&b, "Current position: %s\n", p.Position)
	}
	if p.Experience != "" {
		fmt.Fprintf(&b, "Experience:\n%s\n", truncateToTokens(p.Experience, descriptionTokenBudget))
	}
	if p.Skills != "" {
		fmt.Fprintf(&b, "Skills: %s\n", p.Skills)
	}
	b.WriteString("\nWrite 3-5 sentences addressed to the employer. ")
	b.WriteString("Reference concrete overlap between the candidate's experience and the vacancy. ")
	b.WriteString("No greetings boilerplate, no placeholders, no markdown. Output only the letter text.")
	return b.String()
}

func answersPrompt(qs []domain.Question, v domain.Vacancy, p domain.Profile) string {
	var b strings.Builder
	b.WriteString("You are helping a job seeker answer employer screening questions for a vacancy on hh.ru. Answer in Russian.\n\n")
	fmt.Fprintf(&b, "Vacancy: %s\n", v.Name)
	if desc := strings.TrimSpace(v.Description); desc != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", truncateToTokens(desc, descriptionTokenBudget))
	}
	if p.Experience != "" {
		fmt.Fprintf(&b, "\nCandidate experience:\n%s\n", truncateToTokens(p.Experience, descriptionTokenBudget))
	}
	if p.Skills != "" {
		fmt.Fprintf(&b, "Candidate skills: %s\n", p.Skills)
	}
	b.WriteString("\nQuestions:\n")
	for i, q := range qs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	fmt.Fprintf(&b, "\nReturn a JSON array of exactly %d strings, one honest answer of 1-3 sentences per question, in order. Output only the JSON array.", len(qs))
	return b.String()
}

// stripThinking removes <think>...</think> blocks some models emit before
// the answer.
func stripThinking(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(s, "</think>")
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// parseAnswers decodes a JSON string array, tolerating code fences and, as
// a last resort, splitting on lines.
func parseAnswers(raw string, want int) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var arr []string
	if err := jsonUnmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return clampAnswers(arr, want)
	}
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		ln = strings.TrimLeft(ln, "0123456789.-) ")
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return clampAnswers(lines, want)
}

func clampAnswers(in []string, want int) []string {
	if len(in) > want {
		in = in[:want]
	}
	return in
}
