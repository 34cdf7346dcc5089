package httpserver

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

func TestBulkApplyStreamFraming(t *testing.T) {
	env := newTestEnv(t)
	body := `{
		"search_criteria": {"position": "Go developer"},
		"resume_id": "r1",
		"max_applications": 2
	}`
	w := doJSON(env.srv.BulkApplyStreamHandler(), http.MethodPost, "/api/apply/bulk/stream", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	var events []domain.ProgressEvent
	sc := bufio.NewScanner(w.Body)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected frame: %q", line)
		var ev domain.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	require.NotEmpty(t, events)

	assert.Equal(t, domain.EventStart, events[0].Event)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Event)
	// The single discovered vacancy is in the board baseline.
	assert.Equal(t, 1, last.SkippedCount)
	assert.Zero(t, last.SuccessCount)
}

func TestBulkApplyStreamRejectsBadBody(t *testing.T) {
	env := newTestEnv(t)
	cases := []string{
		`{not json`,
		`{"resume_id":"r1","max_applications":2}`,
		`{"search_criteria":{"position":"Go"},"resume_id":"r1","max_applications":0}`,
		`{"search_criteria":{"position":""},"resume_id":"r1","max_applications":2}`,
	}
	for _, body := range cases {
		w := doJSON(env.srv.BulkApplyStreamHandler(), http.MethodPost, "/api/apply/bulk/stream", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	}
}
