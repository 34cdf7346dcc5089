// Package hh implements the outbound HH.ru client: bearer-token lifecycle,
// request pacing, anti-bot detection, and the per-status retry policy.
package hh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

const (
	// browserUA keeps responses consistent with what the vacancy pages serve
	// to a real browser; the API rejects some write endpoints for unknown
	// agents.
	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	maxBlockedRetries = 3
	maxGatewayRetries = 3
	maxServerRetries  = 3
	maxNetworkRetries = 3

	defaultRetryAfter = 60 * time.Second
)

// ddosMarkers are body substrings that identify an anti-bot interstitial
// served in place of an API response.
var ddosMarkers = []string{"ddos-guard", "checking your browser"}

// Config carries the client tuning knobs.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// MinInterval is the floor between consecutive outbound requests.
	MinInterval time.Duration
}

// Client is the HH.ru API client. One instance serves all users of the
// process; pacing state is shared so concurrent pipelines cannot stack
// requests.
type Client struct {
	cfg     Config
	hc      *http.Client
	tokens  domain.TokenRepository
	oauth   domain.OAuthClient
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	cached domain.Token

	// sleep is swappable in tests; it must honor ctx.
	sleep func(ctx context.Context, d time.Duration) error
	randF func() float64
}

// NewClient constructs a Client. oauth may be nil, in which case expired
// tokens are not refreshed and surface as authentication-required.
func NewClient(cfg Config, tokens domain.TokenRepository, oauth domain.OAuthClient, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hh.ru"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 100 * time.Millisecond
	}
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:  tokens,
		oauth:   oauth,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		log:     log,
		sleep:   sleepCtx,
		randF:   rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// uniform returns a random duration in [lo, hi) seconds.
func (c *Client) uniform(lo, hi float64) time.Duration {
	return time.Duration((lo + c.randF()*(hi-lo)) * float64(time.Second))
}

// ensureToken returns a bearer token that is valid for at least the expiry
// buffer. Expired durable tokens are refreshed through the OAuth client when
// possible; otherwise the caller gets authentication-required.
func (c *Client) ensureToken(ctx domain.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached.AccessToken != "" && !c.cached.IsExpired(domain.TokenExpiryBuffer) {
		return c.cached.AccessToken, nil
	}
	t, err := c.tokens.GetLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("op=hh.ensure_token: no stored token: %w", domain.ErrAuthRequired)
	}
	if !t.IsExpired(domain.TokenExpiryBuffer) {
		c.cached = t
		return t.AccessToken, nil
	}
	if t.RefreshToken != "" && c.oauth != nil {
		refreshed, rerr := c.oauth.Refresh(ctx, t.RefreshToken)
		if rerr == nil {
			saved, serr := c.tokens.Save(ctx, refreshed)
			if serr != nil {
				saved = refreshed
			}
			c.cached = saved
			return saved.AccessToken, nil
		}
		c.log.Warn("token refresh failed", slog.Any("error", rerr))
	}
	return "", fmt.Errorf("op=hh.ensure_token: token expired: %w", domain.ErrAuthRequired)
}

// InvalidateToken drops the in-memory token so the next request reloads from
// the store. The OAuth callback calls this after saving a fresh token.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.cached = domain.Token{}
	c.mu.Unlock()
}

// request describes one logical API call. The retry policy may issue it
// several times.
type request struct {
	method string
	path   string
	label  string // metric endpoint label, e.g. "vacancies.search"
	query  url.Values
	form   url.Values
	// referer mimics navigation from the vacancy page on write endpoints.
	referer string
}

func isDDoSBody(body []byte) bool {
	low := strings.ToLower(string(body))
	for _, m := range ddosMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// do issues the request with pacing and the full retry ladder and returns
// the raw response body of the first 2xx response.
func (c *Client) do(ctx domain.Context, req request) ([]byte, error) {
	// Desynchronize from any fixed cadence before the first attempt.
	if err := c.sleep(ctx, c.uniform(0.5, 2.0)); err != nil {
		return nil, fmt.Errorf("op=hh.do %s: %w", req.label, err)
	}

	var blocked, gateway, server, network int
	start := time.Now()
	defer func() {
		observability.BoardRequestDuration.WithLabelValues(req.label).Observe(time.Since(start).Seconds())
	}()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("op=hh.do %s: %w", req.label, err)
		}

		body, status, hint, err := c.once(ctx, req)
		if err != nil {
			var fatal nonRetryable
			if errors.As(err, &fatal) {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, fatal.err)
			}
			network++
			observability.BoardRetriesTotal.WithLabelValues("network").Inc()
			if network > maxNetworkRetries {
				observability.BoardRequestsTotal.WithLabelValues(req.label, "network_error").Inc()
				return nil, fmt.Errorf("op=hh.do %s: %w: %v", req.label, domain.ErrUpstream, err)
			}
			c.log.Warn("board request network error, retrying",
				slog.String("endpoint", req.label), slog.Int("attempt", network), slog.Any("error", err))
			if serr := c.sleep(ctx, backoffDelay(network-1)+c.uniform(1, 3)); serr != nil {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, serr)
			}
			continue
		}

		// Anti-bot interstitials come back with assorted statuses; the body
		// is the reliable signal.
		if isDDoSBody(body) {
			blocked++
			observability.BoardRetriesTotal.WithLabelValues("ddos_guard").Inc()
			if blocked > maxBlockedRetries {
				observability.BoardRequestsTotal.WithLabelValues(req.label, "blocked").Inc()
				return nil, fmt.Errorf("op=hh.do %s: %w: %w",
					req.label, domain.ErrBlocked,
					&APIError{Status: 429, Endpoint: req.label, Body: "blocked by DDoS protection"})
			}
			c.log.Warn("anti-bot challenge detected, backing off",
				slog.String("endpoint", req.label), slog.Int("attempt", blocked))
			if serr := c.sleep(ctx, backoffDelay(blocked-1)+c.uniform(2, 5)); serr != nil {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, serr)
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			observability.BoardRequestsTotal.WithLabelValues(req.label, "success").Inc()
			return body, nil

		case status == http.StatusTooManyRequests:
			// The server told us how long to wait; that always supersedes
			// our own budget.
			observability.BoardRetriesTotal.WithLabelValues("rate_limited").Inc()
			wait := hint
			if wait <= 0 {
				wait = defaultRetryAfter
			}
			c.log.Warn("board rate limited, waiting",
				slog.String("endpoint", req.label), slog.Duration("wait", wait))
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, serr)
			}
			continue

		case status == http.StatusRequestTimeout || status == http.StatusBadGateway ||
			status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
			gateway++
			observability.BoardRetriesTotal.WithLabelValues("gateway").Inc()
			if gateway > maxGatewayRetries {
				observability.BoardRequestsTotal.WithLabelValues(req.label, "error").Inc()
				return nil, fmt.Errorf("op=hh.do %s: %w",
					req.label, &APIError{Status: status, Endpoint: req.label, Body: truncateBody(body)})
			}
			if serr := c.sleep(ctx, backoffDelay(gateway-1)+c.uniform(1, 3)); serr != nil {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, serr)
			}
			continue

		case status >= 500:
			server++
			observability.BoardRetriesTotal.WithLabelValues("server").Inc()
			if server > maxServerRetries {
				observability.BoardRequestsTotal.WithLabelValues(req.label, "error").Inc()
				return nil, fmt.Errorf("op=hh.do %s: %w",
					req.label, &APIError{Status: status, Endpoint: req.label, Body: truncateBody(body)})
			}
			if serr := c.sleep(ctx, backoffDelay(server-1)+c.uniform(0.5, 1.5)); serr != nil {
				return nil, fmt.Errorf("op=hh.do %s: %w", req.label, serr)
			}
			continue

		default:
			// Remaining 4xx are terminal: the request itself is wrong.
			observability.BoardRequestsTotal.WithLabelValues(req.label, "error").Inc()
			return nil, fmt.Errorf("op=hh.do %s: %w",
				req.label, &APIError{Status: status, Endpoint: req.label, Body: truncateBody(body)})
		}
	}
}

// once performs a single HTTP exchange. The returned duration is the
// Retry-After hint for the 429 branch of do.
func (c *Client) once(ctx domain.Context, req request) ([]byte, int, time.Duration, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, 0, 0, nonRetryable{err}
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	var rd io.Reader
	if req.form != nil {
		rd = strings.NewReader(req.form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, rd)
	if err != nil {
		return nil, 0, 0, nonRetryable{fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", browserUA)
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	httpReq.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	if req.form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.referer != "" {
		httpReq.Header.Set("Referer", req.referer)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, 0, err
	}
	return body, resp.StatusCode, retryAfter(resp), nil
}

// nonRetryable marks errors that the retry loop must surface as-is, such as
// a missing token or a malformed request.
type nonRetryable struct{ err error }

func (n nonRetryable) Error() string { return n.err.Error() }
func (n nonRetryable) Unwrap() error { return n.err }

func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func truncateBody(b []byte) string {
	const max = 500
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
