package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

func newTestPipeline(board *fakeBoard, cache *fakeCache, apps *fakeApps, llm *fakeLLM) *Pipeline {
	applier := NewApplier(board, apps, llm, "hh.ru", testLogger())
	p := NewPipeline(board, cache, applier, testLogger())
	p.sleep = noSleep
	return p
}

func collect(t *testing.T, ch <-chan domain.ProgressEvent) []domain.ProgressEvent {
	t.Helper()
	var out []domain.ProgressEvent
	for ev := range ch {
		out = append(out, ev)
	}
	require.NotEmpty(t, out)
	return out
}

func assertStreamInvariants(t *testing.T, events []domain.ProgressEvent) {
	t.Helper()
	require.Equal(t, domain.EventStart, events[0].Event)
	last := events[len(events)-1]
	assert.Contains(t, []string{domain.EventComplete, domain.EventCancelled, domain.EventError}, last.Event)
	prev := domain.ProgressEvent{}
	for _, ev := range events[1:] {
		assert.GreaterOrEqual(t, ev.SuccessCount, prev.SuccessCount)
		assert.GreaterOrEqual(t, ev.SkippedCount, prev.SkippedCount)
		assert.GreaterOrEqual(t, ev.ErrorCount, prev.ErrorCount)
		if ev.Result != nil {
			assert.Equal(t, prev.Current+1, ev.Current)
			assert.Equal(t, ev.Current, ev.SuccessCount+ev.SkippedCount+ev.ErrorCount)
		}
		prev = ev
	}
}

func threeVacancies() []domain.Vacancy {
	return []domain.Vacancy{
		{ID: "V1", Name: "Go Developer 1"},
		{ID: "V2", Name: "Go Developer 2"},
		{ID: "V3", Name: "Go Developer 3"},
	}
}

func TestPipelineHappyPath(t *testing.T) {
	board := newFakeBoard(threeVacancies()...)
	cache := newFakeCache()
	p := newTestPipeline(board, cache, newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python", RemoteOnly: true, UseCoverLetter: true},
		MaxApplications: 2,
		ResumeID:        "r1",
	}))
	assertStreamInvariants(t, events)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Event)
	assert.Equal(t, 2, last.SuccessCount)
	assert.Equal(t, 0, last.SkippedCount)
	assert.Equal(t, 0, last.ErrorCount)
	assert.Len(t, board.applyCalls, 2)
}

func TestPipelineBaselineDuplicateSuppression(t *testing.T) {
	board := newFakeBoard(threeVacancies()...)
	board.applied["V2"] = struct{}{}
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 2,
		ResumeID:        "r1",
	}))
	assertStreamInvariants(t, events)

	var skippedReasons []string
	for _, ev := range events {
		if ev.Result != nil && ev.Result.Status == domain.ApplySkipped {
			skippedReasons = append(skippedReasons, ev.Result.ErrorDetail)
		}
	}
	assert.Equal(t, []string{"Already applied (HH.ru)"}, skippedReasons)

	last := events[len(events)-1]
	assert.Equal(t, 2, last.SuccessCount)
	assert.Equal(t, 1, last.SkippedCount)
}

func TestPipelineBaselineWinsOverFilter(t *testing.T) {
	vs := threeVacancies()
	vs[1].Archived = true
	board := newFakeBoard(vs...)
	board.applied["V2"] = struct{}{}
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 3,
		ResumeID:        "r1",
	}))
	for _, ev := range events {
		if ev.Result != nil && ev.Result.VacancyID == "V2" {
			assert.Equal(t, "Already applied (HH.ru)", ev.Result.ErrorDetail)
		}
	}
}

func TestPipelineCircuitBreaker(t *testing.T) {
	board := newFakeBoard(
		domain.Vacancy{ID: "V1", Name: "A"},
		domain.Vacancy{ID: "V2", Name: "B"},
		domain.Vacancy{ID: "V3", Name: "C"},
		domain.Vacancy{ID: "V4", Name: "D"},
		domain.Vacancy{ID: "V5", Name: "E"},
	)
	board.applyFn = func(domain.ApplySubmission) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 5,
		ResumeID:        "r1",
	}))
	assertStreamInvariants(t, events)

	last := events[len(events)-1]
	require.Equal(t, domain.EventError, last.Event)
	assert.Equal(t, "too many consecutive errors", last.Message)
	assert.Equal(t, 3, last.ErrorCount)
}

func TestPipelineCancelledBeforeFirstVacancy(t *testing.T) {
	board := newFakeBoard(threeVacancies()...)
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 2,
		ResumeID:        "r1",
		CancelRequested: func() bool { return true },
	}))
	last := events[len(events)-1]
	require.Equal(t, domain.EventCancelled, last.Event)
	assert.Zero(t, last.SuccessCount)
	assert.Zero(t, last.SkippedCount)
	assert.Zero(t, last.ErrorCount)
	assert.Empty(t, board.applyCalls)
}

func TestPipelineMaxOneHaltsAfterFirstSuccess(t *testing.T) {
	board := newFakeBoard(threeVacancies()...)
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 1,
		ResumeID:        "r1",
	}))
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Event)
	assert.Equal(t, 1, last.SuccessCount)
	assert.Len(t, board.applyCalls, 1)
}

func TestPipelineCachesProcessedVacancies(t *testing.T) {
	board := newFakeBoard(threeVacancies()...)
	cache := newFakeCache()
	p := newTestPipeline(board, cache, newFakeApps(), newFakeLLM())

	collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 3,
		ResumeID:        "r1",
	}))

	// A second run sees every vacancy as already processed.
	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Python"},
		MaxApplications: 3,
		ResumeID:        "r1",
	}))
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Event)
	assert.Zero(t, last.Current)
}

func TestDiscoverCapsCandidatePool(t *testing.T) {
	var items []domain.Vacancy
	for i := 0; i < 20; i++ {
		items = append(items, domain.Vacancy{ID: string(rune('a' + i)), Name: "V"})
	}
	board := newFakeBoard(items...)
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	got, err := p.discover(context.Background(), PipelineParams{
		Criteria:        domain.SearchCriteria{Position: "Go developer"},
		MaxApplications: 2,
	})
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestPipelineSearchFailureFailsRun(t *testing.T) {
	board := newFakeBoard()
	board.searchFn = func(domain.SearchQuery) (domain.SearchPage, error) {
		return domain.SearchPage{}, fmt.Errorf("op=hh.search: %w", domain.ErrAuthRequired)
	}
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Go developer"},
		MaxApplications: 2,
		ResumeID:        "r1",
	}))
	assertStreamInvariants(t, events)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Event)
	assert.Contains(t, last.Message, "Network error")
	assert.Zero(t, last.SuccessCount)
	assert.Empty(t, board.applyCalls)
}

func TestPipelineToleratesPartialSearchFailure(t *testing.T) {
	board := newFakeBoard(domain.Vacancy{ID: "V1", Name: "Go Developer"})
	// Page 0 yields one vacancy; the follow-up page dies. The run keeps the
	// candidates it already has.
	board.searchFn = func(q domain.SearchQuery) (domain.SearchPage, error) {
		if q.Page > 0 {
			return domain.SearchPage{}, fmt.Errorf("op=hh.search: %w", domain.ErrUpstream)
		}
		return domain.SearchPage{
			Items: []domain.Vacancy{{ID: "V1", Name: "Go Developer"}},
			Found: 1, Pages: searchPagesPerQuery,
		}, nil
	}
	p := newTestPipeline(board, newFakeCache(), newFakeApps(), newFakeLLM())

	events := collect(t, p.Run(context.Background(), PipelineParams{
		UserID:          "default",
		Criteria:        domain.SearchCriteria{Position: "Go developer"},
		MaxApplications: 2,
		ResumeID:        "r1",
	}))
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Event)
	assert.Equal(t, 1, last.SuccessCount)
}
