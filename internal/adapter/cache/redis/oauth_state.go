package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

const (
	oauthStatePrefix = "oauth_state:"
	oauthStateTTL    = 600 * time.Second
)

// OAuthStateStore holds short-lived OAuth state tokens keyed by the random
// state string issued at login time.
type OAuthStateStore struct{ rdb *redis.Client }

// NewOAuthStateStore constructs an OAuthStateStore over the given client.
func NewOAuthStateStore(rdb *redis.Client) *OAuthStateStore { return &OAuthStateStore{rdb: rdb} }

// Set stores the state with the issuing client host and the standard TTL.
func (s *OAuthStateStore) Set(ctx domain.Context, state, clientHost string) error {
	if err := s.rdb.SetEx(ctx, oauthStatePrefix+state, clientHost, oauthStateTTL).Err(); err != nil {
		return fmt.Errorf("op=oauth_state.set: %w", err)
	}
	return nil
}

// Take consumes the state: it returns the stored host and deletes the key so
// a state cannot be replayed.
func (s *OAuthStateStore) Take(ctx domain.Context, state string) (string, bool, error) {
	host, err := s.rdb.GetDel(ctx, oauthStatePrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("op=oauth_state.take: %w", err)
	}
	return host, true, nil
}
