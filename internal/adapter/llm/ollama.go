package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

func jsonUnmarshal(s string, v any) error { return json.Unmarshal([]byte(s), v) }

// Ollama generates artifacts through a local Ollama server's chat endpoint.
type Ollama struct {
	baseURL string
	model   string
	hc      *http.Client
	log     *slog.Logger
}

// NewOllama constructs the provider. timeout bounds a single generation,
// which on CPU-bound hosts can take minutes.
func NewOllama(baseURL, model string, timeout time.Duration, log *slog.Logger) *Ollama {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		hc:      &http.Client{Timeout: timeout},
		log:     log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

func (o *Ollama) chat(ctx context.Context, operation, prompt string) (string, error) {
	start := time.Now()
	observability.LLMRequestsTotal.WithLabelValues("ollama", operation).Inc()
	defer func() {
		observability.LLMRequestDuration.WithLabelValues("ollama", operation).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  chatOptions{Temperature: 0.7},
	})
	if err != nil {
		return "", fmt.Errorf("op=ollama.chat: %w", err)
	}

	var content string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := o.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("ollama status %d: %s", resp.StatusCode, truncate(body))
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		var cr chatResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return backoff.Permanent(fmt.Errorf("decode ollama response: %w", err))
		}
		if cr.Error != "" {
			return backoff.Permanent(fmt.Errorf("ollama error: %s", cr.Error))
		}
		content = cr.Message.Content
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("op=ollama.chat %s: %w", operation, err)
	}
	return stripThinking(content), nil
}

// GenerateCoverLetter produces the cover letter text for one vacancy.
func (o *Ollama) GenerateCoverLetter(ctx domain.Context, v domain.Vacancy, p domain.Profile) (string, error) {
	out, err := o.chat(ctx, "cover_letter", coverLetterPrompt(v, p))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// AnswerScreeningQuestions produces one answer per question, in order.
// Questions the model did not cover fall back to a short generic answer so
// the submission is never structurally incomplete.
func (o *Ollama) AnswerScreeningQuestions(ctx domain.Context, qs []domain.Question, v domain.Vacancy, p domain.Profile) ([]domain.Answer, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	out, err := o.chat(ctx, "answers", answersPrompt(qs, v, p))
	if err != nil {
		return nil, err
	}
	texts := parseAnswers(out, len(qs))
	answers := make([]domain.Answer, 0, len(qs))
	for i, q := range qs {
		text := "Готов обсудить этот вопрос на собеседовании."
		if i < len(texts) && strings.TrimSpace(texts[i]) != "" {
			text = strings.TrimSpace(texts[i])
		} else {
			o.log.Warn("screening answer missing, using fallback", slog.String("question_id", q.ID))
		}
		answers = append(answers, domain.Answer{QuestionID: q.ID, Text: text})
	}
	return answers, nil
}

func truncate(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
