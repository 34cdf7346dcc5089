package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// OAuth implements the authorization-code exchange and refresh grants
// against the board's token endpoint. The token endpoint sits behind the
// same anti-bot layer as the site, so exchanges retry on interstitials.
type OAuth struct {
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
	hc           *http.Client
}

// NewOAuth constructs the OAuth client.
func NewOAuth(tokenURL, clientID, clientSecret, redirectURI string, timeout time.Duration) *OAuth {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OAuth{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		hc:           &http.Client{Timeout: timeout},
	}
}

// AuthorizeURL builds the user-facing authorization redirect.
func (o *OAuth) AuthorizeURL(state string) string {
	vals := url.Values{}
	vals.Set("response_type", "code")
	vals.Set("client_id", o.clientID)
	vals.Set("state", state)
	if o.redirectURI != "" {
		vals.Set("redirect_uri", o.redirectURI)
	}
	return "https://hh.ru/oauth/authorize?" + vals.Encode()
}

// ExchangeCode trades an authorization code for a token pair.
func (o *OAuth) ExchangeCode(ctx domain.Context, code string) (domain.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("code", code)
	if o.redirectURI != "" {
		form.Set("redirect_uri", o.redirectURI)
	}
	t, err := o.grant(ctx, form)
	if err != nil {
		return domain.Token{}, fmt.Errorf("op=oauth.exchange_code: %w", err)
	}
	return t, nil
}

// Refresh trades a refresh token for a fresh token pair.
func (o *OAuth) Refresh(ctx domain.Context, refreshToken string) (domain.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	t, err := o.grant(ctx, form)
	if err != nil {
		return domain.Token{}, fmt.Errorf("op=oauth.refresh: %w", err)
	}
	return t, nil
}

func (o *OAuth) grant(ctx context.Context, form url.Values) (domain.Token, error) {
	var tok domain.Token
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", browserUA)
		req.Header.Set("Accept", "application/json")

		resp, err := o.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if isDDoSBody(body) {
			return fmt.Errorf("token endpoint behind anti-bot challenge: %w", domain.ErrBlocked)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			perr := &APIError{Status: resp.StatusCode, Endpoint: "oauth.token", Body: truncateBody(body)}
			if resp.StatusCode >= 500 {
				return perr
			}
			return backoff.Permanent(perr)
		}
		var payload struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("decode token response: %w", err))
		}
		if payload.AccessToken == "" {
			return backoff.Permanent(fmt.Errorf("token response without access_token: %w", domain.ErrUpstream))
		}
		tok = domain.Token{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			ExpiresIn:    payload.ExpiresIn,
			ObtainedAt:   time.Now().UTC(),
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return domain.Token{}, err
	}
	return tok, nil
}
