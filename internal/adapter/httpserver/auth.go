package httpserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// LoginHandler starts the OAuth flow: issue a state, remember it, redirect.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AuthorizeURL == nil {
			writeError(w, r, fmt.Errorf("%w: oauth is not configured", domain.ErrInternal), nil)
			return
		}
		state, err := randomState()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.States.Set(r.Context(), state, r.Host); err != nil {
			writeError(w, r, err, nil)
			return
		}
		http.Redirect(w, r, s.AuthorizeURL(state), http.StatusFound)
	}
}

// CallbackHandler completes the OAuth flow: verify the one-shot state,
// exchange the code, persist the token.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if state == "" || code == "" {
			writeError(w, r, fmt.Errorf("%w: missing code or state", domain.ErrInvalidArgument), nil)
			return
		}
		_, ok, err := s.States.Take(r.Context(), state)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if !ok {
			writeError(w, r, fmt.Errorf("%w: unknown or expired state", domain.ErrInvalidArgument), nil)
			return
		}
		token, err := s.OAuth.ExchangeCode(r.Context(), code)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if _, err := s.Tokens.Save(r.Context(), token); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if s.OnTokenSaved != nil {
			s.OnTokenSaved()
		}
		LoggerFrom(r).Info("oauth token saved")
		writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
	}
}

// MeHandler proxies the board's account info, mostly to verify auth works.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.Board.Me(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("op=auth.random_state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
