package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

const (
	searchPagesPerQuery = 3
	// candidateMultiplier oversizes the candidate pool so filtering and
	// duplicate suppression still leave enough vacancies to fill the quota.
	candidateMultiplier = 3
)

// PipelineParams are the inputs of one bulk-apply run.
type PipelineParams struct {
	UserID          string
	Criteria        domain.SearchCriteria
	MaxApplications int
	ResumeID        string
	// CancelRequested is polled at every checkpoint; returning true makes
	// the pipeline emit a cancelled event and stop.
	CancelRequested func() bool
}

// Pipeline orchestrates a full run: baseline, discovery, iteration. It
// communicates exclusively through its event stream and never returns an
// error; failures surface as events.
type Pipeline struct {
	board   domain.BoardClient
	cache   domain.VacancyCache
	applier *Applier
	log     *slog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline constructs a Pipeline.
func NewPipeline(board domain.BoardClient, cache domain.VacancyCache, applier *Applier, log *slog.Logger) *Pipeline {
	return &Pipeline{
		board:   board,
		cache:   cache,
		applier: applier,
		log:     log,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Run starts the pipeline and returns its event stream. The channel is
// closed after the terminal event (complete, cancelled, or error). The
// stream always begins with start and counters never decrease.
func (p *Pipeline) Run(ctx domain.Context, params PipelineParams) <-chan domain.ProgressEvent {
	out := make(chan domain.ProgressEvent)
	go func() {
		defer close(out)
		observability.PipelineRunning.Inc()
		defer observability.PipelineRunning.Dec()
		p.run(ctx, params, out)
	}()
	return out
}

func (p *Pipeline) run(ctx domain.Context, params PipelineParams, out chan<- domain.ProgressEvent) {
	cancelled := params.CancelRequested
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	emit := func(ev domain.ProgressEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(domain.ProgressEvent{Event: domain.EventStart, Message: "searching for vacancies"}) {
		return
	}

	applied, err := p.board.AppliedVacancyIDs(ctx)
	if err != nil {
		// Only context cancellation reaches here; the client fails open on
		// everything else.
		observability.PipelineRunsTotal.WithLabelValues(domain.RunFailed).Inc()
		emit(domain.ProgressEvent{Event: domain.EventError, Message: err.Error()})
		return
	}

	candidates, err := p.discover(ctx, params)
	if err != nil {
		observability.PipelineRunsTotal.WithLabelValues(domain.RunFailed).Inc()
		emit(domain.ProgressEvent{Event: domain.EventError, Message: "Network error: " + err.Error()})
		return
	}
	total := len(candidates)
	p.log.Info("discovery finished",
		slog.String("user_id", params.UserID),
		slog.Int("candidates", total),
		slog.Int("baseline_applied", len(applied)))

	var current, success, skippedN, errorsN, consecutive int
	pace := newPacer()

	event := func(kind string, res *domain.ApplyResult, msg string) domain.ProgressEvent {
		return domain.ProgressEvent{
			Event:        kind,
			Current:      current,
			Total:        total,
			SuccessCount: success,
			SkippedCount: skippedN,
			ErrorCount:   errorsN,
			Result:       res,
			Message:      msg,
		}
	}

	for _, v := range candidates {
		if cancelled() || ctx.Err() != nil {
			observability.PipelineRunsTotal.WithLabelValues("cancelled").Inc()
			emit(event(domain.EventCancelled, nil, "run cancelled"))
			return
		}
		if success >= params.MaxApplications {
			break
		}
		if consecutive >= 3 {
			observability.PipelineRunsTotal.WithLabelValues(domain.RunFailed).Inc()
			emit(event(domain.EventError, nil, "too many consecutive errors"))
			return
		}

		var res domain.ApplyResult
		if _, dup := applied[v.ID]; dup {
			res = skipped(v.ID, v.Name, "Already applied (HH.ru)")
		} else if ok, reason := ShouldApply(v, params.Criteria); !ok {
			res = skipped(v.ID, v.Name, reason)
		} else {
			res = p.applier.Apply(ctx, ApplyRequest{
				VacancyID:      v.ID,
				ResumeID:       params.ResumeID,
				UserID:         params.UserID,
				UseCoverLetter: params.Criteria.UseCoverLetter,
			})
		}

		if err := p.cache.AddMany(ctx, []string{v.ID}); err != nil {
			p.log.Warn("cache write failed", slog.Any("error", err))
		}

		current++
		applySleep := time.Duration(0)
		switch res.Status {
		case domain.ApplySuccess:
			success++
			consecutive = 0
			applySleep = pace.afterSuccess()
		case domain.ApplySkipped:
			skippedN++
			observability.ApplicationsTotal.WithLabelValues(domain.ApplySkipped).Inc()
		default:
			errorsN++
			consecutive++
			observability.ApplicationsTotal.WithLabelValues(domain.ApplyError).Inc()
			applySleep = pace.afterError(res.ErrorDetail)
		}

		if !emit(event(domain.EventProgress, &res, "")) {
			return
		}
		if applySleep > 0 {
			if err := p.sleep(ctx, applySleep); err != nil {
				observability.PipelineRunsTotal.WithLabelValues("cancelled").Inc()
				emit(event(domain.EventCancelled, nil, "run cancelled"))
				return
			}
		}
	}

	observability.PipelineRunsTotal.WithLabelValues(domain.RunCompleted).Inc()
	emit(event(domain.EventComplete, nil, "run complete"))
}

// discover fans the position out into queries and collects unseen vacancies
// until the pool is large enough or the queries are exhausted. A search
// failure skips to the next query, but when every search fails and nothing
// was collected the first error is returned so the run is recorded as
// failed rather than as an empty success. Zero candidates from succeeding
// queries is still a valid (empty) run.
func (p *Pipeline) discover(ctx domain.Context, params PipelineParams) ([]domain.Vacancy, error) {
	target := params.MaxApplications * candidateMultiplier
	seen := make(map[string]struct{})
	var candidates []domain.Vacancy
	var searchErr error

	for _, q := range ParseQueries(params.Criteria.Position) {
		if len(candidates) >= target || ctx.Err() != nil {
			break
		}
		for page := 0; page < searchPagesPerQuery; page++ {
			sq := BuildSearchQuery(params.Criteria, q, page)
			result, err := p.board.SearchVacancies(ctx, sq)
			if err != nil {
				p.log.Warn("vacancy search failed",
					slog.String("query", q), slog.Int("page", page), slog.Any("error", err))
				if searchErr == nil {
					searchErr = err
				}
				break
			}

			ids := make([]string, 0, len(result.Items))
			byID := make(map[string]domain.Vacancy, len(result.Items))
			for _, v := range result.Items {
				if _, dup := seen[v.ID]; dup {
					continue
				}
				ids = append(ids, v.ID)
				byID[v.ID] = v
			}
			fresh, err := p.cache.FilterNew(ctx, ids)
			if err != nil {
				p.log.Warn("cache lookup failed, treating page as new", slog.Any("error", err))
				fresh = ids
			}
			for _, id := range fresh {
				seen[id] = struct{}{}
				candidates = append(candidates, byID[id])
			}

			if len(candidates) >= target || page+1 >= result.Pages {
				break
			}
		}
	}
	if len(candidates) == 0 && searchErr != nil {
		return nil, searchErr
	}
	if len(candidates) > target && target > 0 {
		candidates = candidates[:target]
	}
	return candidates, nil
}
